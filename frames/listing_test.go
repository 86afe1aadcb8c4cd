package frames

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFramesMissingVideo(t *testing.T) {
	s, _ := newTestStore(t)
	listing, err := s.ListFrames("nothing", false)
	require.NoError(t, err)
	assert.Empty(t, listing.Frames)
	assert.False(t, listing.Degraded)
}

func TestListFramesFiltersStaleRecords(t *testing.T) {
	s, root := newTestStore(t)
	saved := seed(t, s, 3)

	require.NoError(t, os.Remove(filepath.Join(root, filepath.FromSlash(saved[1].FilePath))))
	require.NoError(t, os.Remove(filepath.Join(root, filepath.FromSlash(saved[2].ThumbnailPath))))

	listing, err := s.ListFrames("vid", false)
	require.NoError(t, err)
	require.Len(t, listing.Frames, 2)
	assert.False(t, listing.Degraded)
	assert.Equal(t, "f00", listing.Frames[0].ID)
	assert.Equal(t, "f02", listing.Frames[1].ID)
	assert.Empty(t, listing.Frames[1].ThumbnailPath)
	assert.NotEmpty(t, listing.Frames[0].ThumbnailPath)
}

func TestListFramesIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	seed(t, s, 5)

	first, err := s.ListFrames("vid", false)
	require.NoError(t, err)
	second, err := s.ListFrames("vid", false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestListFramesLegacyScan(t *testing.T) {
	s, root := newTestStore(t)
	dir := filepath.Join(root, "vid")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "thumbnails"), 0755))

	for _, name := range []string{"00-00-10_b.jpg", "00-00-02_a.jpg", "00-01-00_c.jpg"} {
		require.NoError(t, imaging.Save(testImage(40, 20), filepath.Join(dir, name)))
	}
	require.NoError(t, imaging.Save(testImage(8, 4), filepath.Join(dir, "thumbnails", "00-00-02_a.jpg")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	listing, err := s.ListFrames("vid", false)
	require.NoError(t, err)
	assert.True(t, listing.Degraded)
	require.Len(t, listing.Frames, 3)

	assert.Equal(t, []string{"a", "b", "c"}, []string{listing.Frames[0].ID, listing.Frames[1].ID, listing.Frames[2].ID})
	for _, f := range listing.Frames {
		assert.True(t, f.Legacy)
		assert.Zero(t, f.Metrics.QualityScore)
		assert.Zero(t, f.FrameNumber)
		assert.Equal(t, 40, f.Width)
		assert.Equal(t, 20, f.Height)
		assert.False(t, f.Selected)
	}
	assert.Equal(t, "vid/thumbnails/00-00-02_a.jpg", listing.Frames[0].ThumbnailPath)
	assert.Empty(t, listing.Frames[1].ThumbnailPath)

	selected, err := s.ListFrames("vid", true)
	require.NoError(t, err)
	assert.Empty(t, selected.Frames)

	n, err := s.DeleteFrames("vid", []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, filepath.Join(dir, "00-00-10_b.jpg"))
}
