package qrrender

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// Shape 模块形状
type Shape string

const (
	ShapeSquare     Shape = "square"
	ShapeRounded    Shape = "rounded"
	ShapeCircle     Shape = "circle"
	ShapeVertical   Shape = "vertical"
	ShapeHorizontal Shape = "horizontal"
)

var (
	ErrInvalidColor = errors.New("invalid color")
	ErrInvalidShape = errors.New("invalid module style")
)

// Style 渲染样式
type Style struct {
	Foreground  color.RGBA
	Background  color.RGBA
	Shape       Shape
	Gradient    bool
	GradientEnd color.RGBA // 竖直渐变的底部颜色
}

// DefaultStyle 白底黑色方块
func DefaultStyle() Style {
	return Style{
		Foreground: color.RGBA{A: 0xff},
		Background: color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		Shape:      ShapeSquare,
	}
}

// ParseStyle 解析请求中的样式参数，空值使用默认
func ParseStyle(fg, bg, shape string, gradient bool, gradientEnd string) (Style, error) {
	style := DefaultStyle()

	if fg != "" {
		c, err := ParseColor(fg)
		if err != nil {
			return Style{}, err
		}
		style.Foreground = c
	}
	if bg != "" {
		c, err := ParseColor(bg)
		if err != nil {
			return Style{}, err
		}
		style.Background = c
	}

	if shape != "" {
		switch s := Shape(strings.ToLower(shape)); s {
		case ShapeSquare, ShapeRounded, ShapeCircle, ShapeVertical, ShapeHorizontal:
			style.Shape = s
		default:
			return Style{}, fmt.Errorf("%w: %q", ErrInvalidShape, shape)
		}
	}

	if gradient {
		style.Gradient = true
		style.GradientEnd = style.Foreground
		if gradientEnd != "" {
			c, err := ParseColor(gradientEnd)
			if err != nil {
				return Style{}, err
			}
			style.GradientEnd = c
		}
	}

	return style, nil
}

// ParseColor 支持 #rgb、#rrggbb、rgb(r,g,b) 和 CSS 颜色名
func ParseColor(s string) (color.RGBA, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return color.RGBA{}, fmt.Errorf("%w: empty", ErrInvalidColor)
	}

	switch {
	case strings.HasPrefix(v, "#"):
		return parseHex(v[1:], s)
	case strings.HasPrefix(v, "rgb(") && strings.HasSuffix(v, ")"):
		return parseRGBFunc(v[4:len(v)-1], s)
	}

	if c, ok := colornames.Map[v]; ok {
		return c, nil
	}
	return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
}

func parseHex(h, orig string) (color.RGBA, error) {
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, orig)
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, orig)
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xff}, nil
}

func parseRGBFunc(body, orig string) (color.RGBA, error) {
	parts := strings.Split(body, ",")
	if len(parts) != 3 {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, orig)
	}
	var rgb [3]uint8
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, orig)
		}
		rgb[i] = uint8(n)
	}
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xff}, nil
}

// hexString SVG 使用的颜色表示
func hexString(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
