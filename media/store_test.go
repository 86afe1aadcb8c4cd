package media

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	ls, err := NewLocalStorage(t.TempDir(), DefaultSubDirs, zap.NewNop())
	require.NoError(t, err)
	return ls
}

func TestLocalStorage(t *testing.T) {
	ls := newTestStorage(t)

	t.Run("save and get", func(t *testing.T) {
		rel, err := ls.Save(AssetTypeFrame, "vid1", "a.jpg", bytes.NewReader([]byte("frame")))
		require.NoError(t, err)
		assert.Equal(t, "vid1/a.jpg", rel)

		rc, info, err := ls.Get(rel)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "frame", string(data))
		assert.Equal(t, int64(5), info.Size())
	})

	t.Run("thumbnails go to subdir", func(t *testing.T) {
		rel, err := ls.Save(AssetTypeThumbnail, "vid1", "a.jpg", bytes.NewReader([]byte("t")))
		require.NoError(t, err)
		assert.Equal(t, "vid1/thumbnails/a.jpg", rel)
	})

	t.Run("atomic write replaces content", func(t *testing.T) {
		_, err := ls.WriteAtomic(AssetTypeMetadata, "vid1", "metadata.json", []byte(`[1]`))
		require.NoError(t, err)
		rel, err := ls.WriteAtomic(AssetTypeMetadata, "vid1", "metadata.json", []byte(`[2]`))
		require.NoError(t, err)

		full, err := ls.GetFullPath(rel)
		require.NoError(t, err)
		data, err := os.ReadFile(full)
		require.NoError(t, err)
		assert.Equal(t, `[2]`, string(data))

		entries, err := os.ReadDir(filepath.Dir(full))
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".tmp")
		}
	})

	t.Run("failed copy leaves nothing", func(t *testing.T) {
		_, err := ls.Save(AssetTypeFrame, "vid1", "broken.jpg", io.MultiReader(bytes.NewReader([]byte("x")), errReader{}))
		require.Error(t, err)
		_, statErr := os.Stat(filepath.Join(ls.Base(), "vid1", "broken.jpg"))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		rel, err := ls.Save(AssetTypeFrame, "vid2", "b.jpg", bytes.NewReader([]byte("b")))
		require.NoError(t, err)
		require.NoError(t, ls.Delete(rel))
		require.NoError(t, ls.Delete(rel))
	})

	t.Run("delete namespace", func(t *testing.T) {
		_, err := ls.Save(AssetTypeFrame, "vid3", "c.jpg", bytes.NewReader([]byte("c")))
		require.NoError(t, err)
		require.NoError(t, ls.DeleteNamespace("vid3"))
		_, statErr := os.Stat(filepath.Join(ls.Base(), "vid3"))
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestLocalStoragePathTraversal(t *testing.T) {
	ls := newTestStorage(t)

	for _, ns := range []string{"", ".", "..", "../escape", "a/b", `a\b`} {
		_, err := ls.Save(AssetTypeFrame, ns, "x.jpg", bytes.NewReader(nil))
		assert.ErrorIs(t, err, ErrInvalidNamespace, "namespace %q", ns)
	}
	assert.ErrorIs(t, ls.DeleteNamespace(".."), ErrInvalidNamespace)

	_, err := ls.Save(AssetTypeFrame, "vid", "../x.jpg", bytes.NewReader(nil))
	assert.Error(t, err)

	for _, p := range []string{"../outside.jpg", "/etc/passwd", "vid/../../x"} {
		_, err := ls.GetFullPath(p)
		assert.Error(t, err, p)
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func TestProcessorWritesFrameAndThumbnail(t *testing.T) {
	ls := newTestStorage(t)
	p := NewProcessor(ls, zap.NewNop())

	rel, err := p.SaveFrame(testImage(640, 360), "vid", "00-00-01_abc.jpg")
	require.NoError(t, err)
	assertJPEGSize(t, ls, rel, 640, 360)

	rel, err = p.GenerateThumbnail(testImage(640, 360), "vid", "00-00-01_abc.jpg", ImageProcessingOptions{MaxWidth: 320, MaxHeight: 180, Quality: 85})
	require.NoError(t, err)
	assert.Equal(t, "vid/thumbnails/00-00-01_abc.jpg", rel)
	assertJPEGSize(t, ls, rel, 320, 180)

	// small frames are not upscaled
	rel, err = p.GenerateThumbnail(testImage(100, 50), "vid", "small.jpg", ImageProcessingOptions{})
	require.NoError(t, err)
	assertJPEGSize(t, ls, rel, 100, 50)
}

func TestProcessorRejectsEmptyImage(t *testing.T) {
	p := NewProcessor(newTestStorage(t), zap.NewNop())
	_, err := p.SaveFrame(image.NewRGBA(image.Rect(0, 0, 0, 0)), "vid", "x.jpg")
	assert.Error(t, err)
}

func TestProcessorInvalidNamespaceDoesNotBlock(t *testing.T) {
	p := NewProcessor(newTestStorage(t), zap.NewNop())
	_, err := p.SaveFrame(testImage(64, 64), "..", "x.jpg")
	assert.ErrorIs(t, err, ErrInvalidNamespace)
}

func assertJPEGSize(t *testing.T, ls *LocalStorage, rel string, w, h int) {
	t.Helper()
	rc, _, err := ls.Get(rel)
	require.NoError(t, err)
	defer rc.Close()
	cfg, err := jpeg.DecodeConfig(rc)
	require.NoError(t, err)
	assert.Equal(t, w, cfg.Width)
	assert.Equal(t, h, cfg.Height)
}

func TestIsFrameImage(t *testing.T) {
	assert.True(t, IsFrameImage("00-00-01_x.jpg"))
	assert.True(t, IsFrameImage("A.JPEG"))
	assert.False(t, IsFrameImage("metadata.json"))
	assert.False(t, IsFrameImage("clip.png"))
}
