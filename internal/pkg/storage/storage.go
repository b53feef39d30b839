package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// 二维码文件扩展名
const (
	ExtPNG = ".png"
	ExtJPG = ".jpg"
	ExtSVG = ".svg"
)

var ErrNoMirror = errors.New("object storage mirror is not configured")

// Mirror 对象存储镜像（可选）
type Mirror interface {
	Put(key string, data []byte, contentType string) (string, error)
	Delete(key string) error
	URL(key string) string
}

// Files 一个二维码的三个文件
type Files struct {
	PNG []byte
	JPG []byte
	SVG []byte
}

// Paths 写入后的文件路径
type Paths struct {
	PNG string
	JPG string
	SVG string
}

func (p Paths) All() []string {
	return []string{p.PNG, p.JPG, p.SVG}
}

// LocalStore 本地文件存储，目录结构 <root>/<user id>/<public id>.<ext>
type LocalStore struct {
	root   string
	mirror Mirror
}

func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// SetMirror 设置对象存储镜像
func (s *LocalStore) SetMirror(m Mirror) {
	s.mirror = m
}

func (s *LocalStore) Root() string {
	return s.root
}

// UserDir 用户目录
func (s *LocalStore) UserDir(userID int64) string {
	return filepath.Join(s.root, strconv.FormatInt(userID, 10))
}

// Save 写入三个文件；任一失败时删除已写入的文件
func (s *LocalStore) Save(userID int64, publicID string, files *Files) (Paths, error) {
	dir := s.UserDir(userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("failed to create user dir: %w", err)
	}

	paths := Paths{
		PNG: filepath.Join(dir, publicID+ExtPNG),
		JPG: filepath.Join(dir, publicID+ExtJPG),
		SVG: filepath.Join(dir, publicID+ExtSVG),
	}
	items := []struct {
		path string
		data []byte
	}{
		{paths.PNG, files.PNG},
		{paths.JPG, files.JPG},
		{paths.SVG, files.SVG},
	}

	var written []string
	for _, it := range items {
		if err := os.WriteFile(it.path, it.data, 0o644); err != nil {
			s.removeLocal(written)
			return Paths{}, fmt.Errorf("failed to write %s: %w", filepath.Base(it.path), err)
		}
		written = append(written, it.path)
	}

	if s.mirror != nil {
		for _, it := range items {
			if _, err := s.mirror.Put(s.key(it.path), it.data, ContentType(it.path)); err != nil {
				log.WithError(err).WithField("path", it.path).Warn("Failed to mirror qr code file")
			}
		}
	}

	return paths, nil
}

// Resync 把本地已有的文件重新上传到镜像，返回上传数量；缺失的文件跳过
func (s *LocalStore) Resync(paths ...string) (int, error) {
	if s.mirror == nil {
		return 0, ErrNoMirror
	}

	uploaded := 0
	for _, p := range paths {
		if p == "" || !s.within(p) {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return uploaded, err
		}
		if _, err := s.mirror.Put(s.key(p), data, ContentType(p)); err != nil {
			return uploaded, err
		}
		uploaded++
	}
	return uploaded, nil
}

// Remove 尽力删除文件，文件不存在不算错误；返回实际删除的数量
func (s *LocalStore) Remove(paths ...string) int {
	removed := s.removeLocal(paths)
	if s.mirror != nil {
		for _, p := range paths {
			if p == "" {
				continue
			}
			if err := s.mirror.Delete(s.key(p)); err != nil {
				log.WithError(err).WithField("path", p).Warn("Failed to delete mirrored qr code file")
			}
		}
	}
	return removed
}

func (s *LocalStore) removeLocal(paths []string) int {
	removed := 0
	for _, p := range paths {
		if p == "" {
			continue
		}
		if !s.within(p) {
			log.WithField("path", p).Warn("Refusing to remove file outside storage root")
			continue
		}
		err := os.Remove(p)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, fs.ErrNotExist):
		default:
			log.WithError(err).WithField("path", p).Warn("Failed to remove qr code file")
		}
	}
	return removed
}

// AllExist 所有路径都存在且为普通文件
func (s *LocalStore) AllExist(paths ...string) bool {
	for _, p := range paths {
		if p == "" {
			return false
		}
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			return false
		}
	}
	return true
}

// Walk 遍历存储目录下所有二维码文件
func (s *LocalStore) Walk(fn func(path string, info fs.FileInfo) error) error {
	return filepath.Walk(s.root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() || !IsArtifact(path) {
			return nil
		}
		return fn(path, info)
	})
}

// MirrorURL 镜像地址，未配置镜像时为空
func (s *LocalStore) MirrorURL(path string) string {
	if s.mirror == nil || path == "" {
		return ""
	}
	return s.mirror.URL(s.key(path))
}

// UserDirs 列出所有用户目录
func (s *LocalStore) UserDirs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(s.root, e.Name()))
		}
	}
	return dirs, nil
}

func (s *LocalStore) within(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// key 镜像对象名使用相对路径
func (s *LocalStore) key(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

// IsArtifact 是否为二维码文件扩展名
func IsArtifact(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtPNG, ExtJPG, ExtSVG:
		return true
	}
	return false
}

// ContentType 按扩展名返回 Content-Type
func ContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtPNG:
		return "image/png"
	case ExtJPG:
		return "image/jpeg"
	case ExtSVG:
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}
