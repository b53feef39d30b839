package qrrender

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/boombuler/barcode/qr"
)

const (
	DefaultMaxPixels = 400
	quietZone        = 4
	jpegQuality      = 95
)

var ErrEmptyContent = errors.New("qr content must not be empty")

// Artifacts 一次渲染得到的三种文件
type Artifacts struct {
	PNG []byte
	JPG []byte
	SVG []byte
}

// Renderer 以最高纠错等级生成二维码并按像素预算缩放
type Renderer struct {
	maxPixels int
}

func NewRenderer(maxPixels int) *Renderer {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Renderer{maxPixels: maxPixels}
}

// Render 渲染 PNG、JPG、SVG，相同输入得到相同输出
func (r *Renderer) Render(content string, style Style) (*Artifacts, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}

	code, err := qr.Encode(content, qr.H, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	m := newMatrix(code)

	// 模块边长随内容长度变化，保证整图不超过像素预算
	box := r.maxPixels / m.total()
	if box < 1 {
		box = 1
	}

	img := m.raster(box, style)

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	var jpgBuf bytes.Buffer
	if err := jpeg.Encode(&jpgBuf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}

	return &Artifacts{
		PNG: pngBuf.Bytes(),
		JPG: jpgBuf.Bytes(),
		SVG: []byte(m.svg(box, style)),
	}, nil
}

// matrix 带静区的模块矩阵
type matrix struct {
	size int // 不含静区
	dark [][]bool
}

func newMatrix(code image.Image) *matrix {
	b := code.Bounds()
	size := b.Dx()
	dark := make([][]bool, size)
	for y := 0; y < size; y++ {
		dark[y] = make([]bool, size)
		for x := 0; x < size; x++ {
			r, _, _, _ := code.At(b.Min.X+x, b.Min.Y+y).RGBA()
			dark[y][x] = r < 0x8000
		}
	}
	return &matrix{size: size, dark: dark}
}

func (m *matrix) total() int {
	return m.size + 2*quietZone
}

// isDark 坐标含静区，越界视为浅色
func (m *matrix) isDark(x, y int) bool {
	x -= quietZone
	y -= quietZone
	if x < 0 || y < 0 || x >= m.size || y >= m.size {
		return false
	}
	return m.dark[y][x]
}

type neighbors struct {
	up, down, left, right bool
}

func (m *matrix) neighbors(x, y int) neighbors {
	return neighbors{
		up:    m.isDark(x, y-1),
		down:  m.isDark(x, y+1),
		left:  m.isDark(x-1, y),
		right: m.isDark(x+1, y),
	}
}

func (m *matrix) raster(box int, style Style) *image.RGBA {
	px := m.total() * box
	img := image.NewRGBA(image.Rect(0, 0, px, px))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = style.Background.R
		img.Pix[i+1] = style.Background.G
		img.Pix[i+2] = style.Background.B
		img.Pix[i+3] = style.Background.A
	}

	for my := 0; my < m.total(); my++ {
		for mx := 0; mx < m.total(); mx++ {
			if !m.isDark(mx, my) {
				continue
			}
			nb := m.neighbors(mx, my)
			for dy := 0; dy < box; dy++ {
				y := my*box + dy
				fill := style.colorAt(y, px)
				for dx := 0; dx < box; dx++ {
					if covers(style.Shape, nb, dx, dy, box) {
						img.SetRGBA(mx*box+dx, y, fill)
					}
				}
			}
		}
	}
	return img
}

// colorAt 竖直渐变按行插值
func (s Style) colorAt(y, height int) color.RGBA {
	if !s.Gradient || height <= 1 {
		return s.Foreground
	}
	t := float64(y) / float64(height-1)
	lerp := func(a, b uint8) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
	}
	return color.RGBA{
		R: lerp(s.Foreground.R, s.GradientEnd.R),
		G: lerp(s.Foreground.G, s.GradientEnd.G),
		B: lerp(s.Foreground.B, s.GradientEnd.B),
		A: 0xff,
	}
}

// covers 判断模块内像素 (dx, dy) 是否属于该形状
func covers(shape Shape, nb neighbors, dx, dy, box int) bool {
	// 以像素中心计算
	fx := float64(dx) + 0.5
	fy := float64(dy) + 0.5
	b := float64(box)
	inset := b * 0.1

	switch shape {
	case ShapeCircle:
		cx, cy, r := b/2, b/2, b/2
		return (fx-cx)*(fx-cx)+(fy-cy)*(fy-cy) <= r*r
	case ShapeRounded:
		r := b * 0.35
		return !outsideCorner(fx, fy, b, r, !nb.up && !nb.left, !nb.up && !nb.right, !nb.down && !nb.left, !nb.down && !nb.right)
	case ShapeVertical:
		if fx < inset || fx > b-inset {
			return false
		}
		if !nb.up && fy < inset {
			return false
		}
		if !nb.down && fy > b-inset {
			return false
		}
		return true
	case ShapeHorizontal:
		if fy < inset || fy > b-inset {
			return false
		}
		if !nb.left && fx < inset {
			return false
		}
		if !nb.right && fx > b-inset {
			return false
		}
		return true
	default:
		return true
	}
}

// outsideCorner 像素是否落在被圆角切掉的区域
func outsideCorner(fx, fy, b, r float64, tl, tr, bl, br bool) bool {
	corner := func(cx, cy float64) bool {
		return (fx-cx)*(fx-cx)+(fy-cy)*(fy-cy) > r*r
	}
	switch {
	case tl && fx < r && fy < r:
		return corner(r, r)
	case tr && fx > b-r && fy < r:
		return corner(b-r, r)
	case bl && fx < r && fy > b-r:
		return corner(r, b-r)
	case br && fx > b-r && fy > b-r:
		return corner(b-r, b-r)
	}
	return false
}

func (m *matrix) svg(box int, style Style) string {
	total := m.total()
	px := total * box

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`+"\n", px, px, total, total)

	fill := hexString(style.Foreground)
	if style.Gradient {
		fmt.Fprintf(&sb, `<defs><linearGradient id="fg" gradientUnits="userSpaceOnUse" x1="0" y1="0" x2="0" y2="%d">`, total)
		fmt.Fprintf(&sb, `<stop offset="0" stop-color="%s"/><stop offset="1" stop-color="%s"/></linearGradient></defs>`+"\n",
			hexString(style.Foreground), hexString(style.GradientEnd))
		fill = "url(#fg)"
	}
	fmt.Fprintf(&sb, `<rect width="%d" height="%d" fill="%s"/>`+"\n", total, total, hexString(style.Background))
	fmt.Fprintf(&sb, `<g fill="%s">`+"\n", fill)

	for y := 0; y < total; y++ {
		for x := 0; x < total; x++ {
			if !m.isDark(x, y) {
				continue
			}
			nb := m.neighbors(x, y)
			switch style.Shape {
			case ShapeCircle:
				fmt.Fprintf(&sb, `<circle cx="%d.5" cy="%d.5" r="0.5"/>`, x, y)
			case ShapeRounded:
				if nb.up || nb.down || nb.left || nb.right {
					fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="1" height="1" rx="0.15"/>`, x, y)
				} else {
					fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="1" height="1" rx="0.35"/>`, x, y)
				}
			case ShapeVertical:
				top, height := 0.0, 1.0
				if !nb.up {
					top, height = 0.1, height-0.1
				}
				if !nb.down {
					height -= 0.1
				}
				fmt.Fprintf(&sb, `<rect x="%d.1" y="%g" width="0.8" height="%g"/>`, x, float64(y)+top, height)
			case ShapeHorizontal:
				left, width := 0.0, 1.0
				if !nb.left {
					left, width = 0.1, width-0.1
				}
				if !nb.right {
					width -= 0.1
				}
				fmt.Fprintf(&sb, `<rect x="%g" y="%d.1" width="%g" height="0.8"/>`, float64(x)+left, y, width)
			default:
				fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="1" height="1"/>`, x, y)
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString("</g>\n</svg>\n")
	return sb.String()
}
