package frames

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/camden-git/clipcraft/media"
	"github.com/facette/natsort"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Listing is the result of ListFrames. Degraded is set when the records
// were synthesized from the directory because no metadata was stored.
type Listing struct {
	VideoID  string
	Frames   []Frame
	Degraded bool
}

// ListFrames returns the stored frames for videoID in ranked order, skipping
// records whose image file has gone missing.
func (s *Store) ListFrames(videoID string, selectedOnly bool) (Listing, error) {
	listing := Listing{VideoID: videoID, Frames: []Frame{}}

	exists, err := s.VideoExists(videoID)
	if err != nil {
		return listing, err
	}
	if !exists {
		return listing, nil
	}

	records, err := s.LoadMetadata(videoID)
	if err != nil {
		s.log.Warn("frames: metadata unreadable, scanning directory", zap.String("video_id", videoID), zap.Error(err))
		records = nil
	}

	if len(records) == 0 {
		legacy, err := s.scanLegacy(videoID)
		if err != nil {
			return listing, err
		}
		listing.Degraded = len(legacy) > 0
		if !selectedOnly {
			listing.Frames = legacy
		}
		return listing, nil
	}

	for _, f := range records {
		if selectedOnly && !f.Selected {
			continue
		}
		if f.FilePath == "" || !s.fileExists(f.FilePath) {
			continue
		}
		if f.ThumbnailPath != "" && !s.fileExists(f.ThumbnailPath) {
			f.ThumbnailPath = ""
		}
		if f.VideoID == "" {
			f.VideoID = videoID
		}
		listing.Frames = append(listing.Frames, f)
	}
	SortByQuality(listing.Frames)
	return listing, nil
}

func (s *Store) fileExists(relativePath string) bool {
	full, err := s.assets.GetFullPath(relativePath)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// scanLegacy synthesizes records from the image files of a video directory
// that has no metadata. Metrics, frame numbers and timestamps are unknown.
func (s *Store) scanLegacy(videoID string) ([]Frame, error) {
	dir, err := s.assets.NamespaceDir(media.AssetTypeFrame, videoID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Frame{}, nil
		}
		return nil, fmt.Errorf("failed to read frame directory for %s: %w", videoID, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".jpg") {
			continue
		}
		names = append(names, e.Name())
	}
	natsort.Sort(names)

	thumbDir, err := s.assets.NamespaceDir(media.AssetTypeThumbnail, videoID)
	if err != nil {
		return nil, err
	}
	thumbRel, err := filepath.Rel(dir, thumbDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve thumbnail directory: %w", err)
	}

	list := make([]Frame, 0, len(names))
	for _, name := range names {
		id, ok := idFromFilename(name)
		if !ok {
			id = uuid.NewString()
		}

		f := Frame{
			ID:                 id,
			VideoID:            videoID,
			TimestampFormatted: "00:00:00",
			FilePath:           path.Join(videoID, name),
			CreatedAt:          time.Now().UTC(),
			Legacy:             true,
		}
		if _, err := os.Stat(filepath.Join(thumbDir, name)); err == nil {
			f.ThumbnailPath = path.Join(videoID, filepath.ToSlash(thumbRel), name)
		}
		f.Width, f.Height = imageSize(filepath.Join(dir, name), s.log)
		list = append(list, f)
	}

	if len(list) > 0 {
		s.log.Info("frames: listed frames from directory scan", zap.String("video_id", videoID), zap.Int("count", len(list)))
	}
	return list, nil
}

func imageSize(fullPath string, log *zap.Logger) (int, int) {
	file, err := os.Open(fullPath)
	if err != nil {
		log.Warn("frames: cannot open legacy frame", zap.String("path", fullPath), zap.Error(err))
		return 0, 0
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		log.Warn("frames: cannot read legacy frame size", zap.String("path", fullPath), zap.Error(err))
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
