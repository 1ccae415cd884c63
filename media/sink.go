// Package media stores uploaded images. Images are decoded, downsized to a
// maximum width and re-encoded before they are written.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/goliatone/go-content-cache/content"
)

// MsgSaveFailed is returned for any failure while storing an upload.
const MsgSaveFailed = "Ошибка при сохранении файла"

const (
	DefaultMaxWidth    = 800
	DefaultJPEGQuality = 80
	DefaultURLPrefix   = "/uploads"
)

// Upload is an image received from a client.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Sink persists an image and returns the reference clients use to fetch it.
type Sink interface {
	Store(ctx context.Context, data []byte, originalName string) (string, error)
}

// Config controls where and how images are written.
type Config struct {
	Dir         string `mapstructure:"dir"`
	URLPrefix   string `mapstructure:"url_prefix"`
	MaxWidth    int    `mapstructure:"max_width"`
	JPEGQuality int    `mapstructure:"jpeg_quality"`
}

// DefaultConfig returns the upload defaults: 800px wide, JPEG quality 80.
func DefaultConfig() Config {
	return Config{
		Dir:         "uploads",
		URLPrefix:   DefaultURLPrefix,
		MaxWidth:    DefaultMaxWidth,
		JPEGQuality: DefaultJPEGQuality,
	}
}

// DiskSink writes images to a directory of an afero filesystem.
type DiskSink struct {
	fs     afero.Fs
	cfg    Config
	logger *slog.Logger
}

// NewDiskSink creates cfg.Dir when missing.
func NewDiskSink(fs afero.Fs, cfg Config, logger *slog.Logger) (*DiskSink, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("media: upload dir is required")
	}
	if cfg.URLPrefix == "" {
		cfg.URLPrefix = DefaultURLPrefix
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = DefaultMaxWidth
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := fs.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create %s: %w", cfg.Dir, err)
	}
	return &DiskSink{fs: fs, cfg: cfg, logger: logger}, nil
}

// FS returns the filesystem the sink writes to.
func (s *DiskSink) FS() afero.Fs { return s.fs }

// Dir returns the upload directory.
func (s *DiskSink) Dir() string { return s.cfg.Dir }

// Store decodes data, downsizes it and writes it under the upload dir.
// It returns the public reference of the written file.
func (s *DiskSink) Store(ctx context.Context, data []byte, originalName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", content.Internal(MsgSaveFailed, err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.logger.WarnContext(ctx, "image decode failed", "name", originalName, "error", err)
		return "", content.Internal(MsgSaveFailed, err)
	}

	img = downsize(img, s.cfg.MaxWidth)

	var (
		buf bytes.Buffer
		ext string
	)
	if format == "png" {
		ext = ".png"
		err = png.Encode(&buf, img)
	} else {
		ext = ".jpg"
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.cfg.JPEGQuality})
	}
	if err != nil {
		return "", content.Internal(MsgSaveFailed, err)
	}

	name := uuid.NewString() + ext
	if err := afero.WriteFile(s.fs, filepath.Join(s.cfg.Dir, name), buf.Bytes(), 0o644); err != nil {
		s.logger.ErrorContext(ctx, "image write failed", "name", name, "error", err)
		return "", content.Internal(MsgSaveFailed, err)
	}

	s.logger.InfoContext(ctx, "image stored", "name", name, "original", originalName, "format", format, "bytes", buf.Len())
	return path.Join(s.cfg.URLPrefix, name), nil
}

// downsize scales img to maxWidth keeping the aspect ratio. Narrower images
// are returned unchanged.
func downsize(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxWidth {
		return img
	}

	height := b.Dy() * maxWidth / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
