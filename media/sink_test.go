package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"path"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-content-cache/content"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newTestSink(t *testing.T) (*DiskSink, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	sink, err := NewDiskSink(fs, Config{Dir: "/srv/uploads", MaxWidth: 100}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return sink, fs
}

func readStored(t *testing.T, fs afero.Fs, ref string) image.Image {
	t.Helper()
	data, err := afero.ReadFile(fs, path.Join("/srv/uploads", path.Base(ref)))
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestDiskSink_DownsizesWideImages(t *testing.T) {
	sink, fs := newTestSink(t)

	ref, err := sink.Store(context.Background(), encodePNG(t, testImage(400, 200)), "wide.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "/uploads/"), ref)
	assert.True(t, strings.HasSuffix(ref, ".png"), ref)

	img := readStored(t, fs, ref)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestDiskSink_KeepsNarrowImages(t *testing.T) {
	sink, fs := newTestSink(t)

	ref, err := sink.Store(context.Background(), encodeJPEG(t, testImage(60, 30)), "photo.jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, ".jpg"), ref)

	img := readStored(t, fs, ref)
	assert.Equal(t, 60, img.Bounds().Dx())
	assert.Equal(t, 30, img.Bounds().Dy())
}

func TestDiskSink_UniqueNames(t *testing.T) {
	sink, _ := newTestSink(t)
	data := encodePNG(t, testImage(10, 10))

	first, err := sink.Store(context.Background(), data, "same.png")
	require.NoError(t, err)
	second, err := sink.Store(context.Background(), data, "same.png")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestDiskSink_RejectsNonImages(t *testing.T) {
	sink, _ := newTestSink(t)

	_, err := sink.Store(context.Background(), []byte("not an image"), "notes.txt")
	require.Error(t, err)
	assert.True(t, content.IsKind(err, content.KindInternal))

	var cerr *content.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, MsgSaveFailed, cerr.Message)
}

func TestDiskSink_WriteFailure(t *testing.T) {
	base := afero.NewMemMapFs()
	sink, err := NewDiskSink(base, Config{Dir: "/srv/uploads"}, nil)
	require.NoError(t, err)
	sink.fs = afero.NewReadOnlyFs(base)

	_, err = sink.Store(context.Background(), encodePNG(t, testImage(10, 10)), "a.png")
	require.Error(t, err)
	assert.True(t, content.IsKind(err, content.KindInternal))
}

func TestNewDiskSink_Defaults(t *testing.T) {
	sink, err := NewDiskSink(afero.NewMemMapFs(), Config{Dir: "up"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxWidth, sink.cfg.MaxWidth)
	assert.Equal(t, DefaultJPEGQuality, sink.cfg.JPEGQuality)
	assert.Equal(t, DefaultURLPrefix, sink.cfg.URLPrefix)

	_, err = NewDiskSink(afero.NewMemMapFs(), Config{}, nil)
	assert.Error(t, err)
}
