package frames

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"

	"github.com/camden-git/clipcraft/media"
	"go.uber.org/zap"
)

const MetadataFilename = "metadata.json"

// Store persists frame images, thumbnails and the per-video metadata document.
// Mutations of one video's metadata are serialized.
type Store struct {
	assets media.Store
	proc   *media.Processor
	log    *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(assets media.Store, log *zap.Logger) *Store {
	return &Store{
		assets: assets,
		proc:   media.NewProcessor(assets, log),
		log:    log,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *Store) lock(videoID string) func() {
	s.mu.Lock()
	l, ok := s.locks[videoID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[videoID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Dir returns the frame directory for videoID, which may not exist.
func (s *Store) Dir(videoID string) (string, error) {
	return s.assets.NamespaceDir(media.AssetTypeFrame, videoID)
}

// VideoExists reports whether a frame directory exists for videoID.
func (s *Store) VideoExists(videoID string) (bool, error) {
	dir, err := s.Dir(videoID)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat frame directory: %w", err)
	}
	return info.IsDir(), nil
}

// FullPath resolves a stored relative path to the filesystem.
func (s *Store) FullPath(relativePath string) (string, error) {
	return s.assets.GetFullPath(relativePath)
}

// SaveFrames writes each candidate's image and thumbnail in order. A frame
// whose write fails is dropped with its partial files removed. Errors that
// would affect every write abort the batch and remove what it wrote.
func (s *Store) SaveFrames(ctx context.Context, videoID string, candidates []Candidate, thumb media.ImageProcessingOptions) ([]Frame, error) {
	saved := make([]Frame, 0, len(candidates))

	abort := func(err error) ([]Frame, error) {
		for _, f := range saved {
			s.removeFiles(f)
		}
		return nil, err
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
		if c.Image == nil {
			s.log.Warn("frames: skipping candidate without image", zap.String("frame_id", c.ID))
			continue
		}

		f := c.Frame
		name := Filename(f)

		framePath, err := s.proc.SaveFrame(c.Image, videoID, name)
		if err != nil {
			if infrastructural(err) {
				return abort(&StorageWriteError{VideoID: videoID, Err: err})
			}
			if errors.Is(err, media.ErrInvalidNamespace) {
				return abort(err)
			}
			s.log.Warn("frames: dropping frame after failed write", zap.String("frame_id", f.ID), zap.Error(err))
			continue
		}
		f.FilePath = framePath

		thumbPath, err := s.proc.GenerateThumbnail(c.Image, videoID, name, thumb)
		if err != nil {
			s.removeFiles(f)
			if infrastructural(err) {
				return abort(&StorageWriteError{VideoID: videoID, Err: err})
			}
			s.log.Warn("frames: dropping frame after failed thumbnail", zap.String("frame_id", f.ID), zap.Error(err))
			continue
		}
		f.ThumbnailPath = thumbPath

		saved = append(saved, f)
	}
	return saved, nil
}

func (s *Store) removeFiles(f Frame) {
	for _, p := range []string{f.FilePath, f.ThumbnailPath} {
		if p == "" {
			continue
		}
		if err := s.assets.Delete(p); err != nil {
			s.log.Warn("frames: failed to remove file", zap.String("path", p), zap.Error(err))
		}
	}
}

// LoadMetadata returns the stored records for videoID. A missing document
// is an empty set.
func (s *Store) LoadMetadata(videoID string) ([]Frame, error) {
	rc, _, err := s.assets.Get(path.Join(videoID, MetadataFilename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Frame{}, nil
		}
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata for %s: %w", videoID, err)
	}
	var list []Frame
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode metadata for %s: %w", videoID, err)
	}
	if list == nil {
		list = []Frame{}
	}
	return list, nil
}

func (s *Store) writeMetadata(videoID string, list []Frame) error {
	if list == nil {
		list = []Frame{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", videoID, err)
	}
	if _, err := s.assets.WriteAtomic(media.AssetTypeMetadata, videoID, MetadataFilename, data); err != nil {
		if infrastructural(err) {
			return &StorageWriteError{VideoID: videoID, Err: err}
		}
		return err
	}
	return nil
}

// SaveMetadata atomically replaces the metadata document for videoID.
func (s *Store) SaveMetadata(videoID string, list []Frame) error {
	defer s.lock(videoID)()
	return s.writeMetadata(videoID, list)
}

// ReplaceFrames publishes a new extraction result for videoID and removes
// the files of records that are no longer part of it.
func (s *Store) ReplaceFrames(videoID string, list []Frame) error {
	defer s.lock(videoID)()

	previous, err := s.LoadMetadata(videoID)
	if err != nil {
		s.log.Warn("frames: previous metadata unreadable, replacing", zap.String("video_id", videoID), zap.Error(err))
		previous = nil
	}
	if err := s.writeMetadata(videoID, list); err != nil {
		return err
	}

	keep := make(map[string]bool, len(list))
	for _, f := range list {
		keep[f.ID] = true
	}
	for _, f := range previous {
		if !keep[f.ID] {
			s.removeFiles(f)
		}
	}
	return nil
}

// UpdateSelection sets the selected flag on the given frames and returns how
// many records matched.
func (s *Store) UpdateSelection(videoID string, ids []string, selected bool) (int, error) {
	defer s.lock(videoID)()

	exists, err := s.VideoExists(videoID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrVideoNotFound
	}

	list, err := s.LoadMetadata(videoID)
	if err != nil {
		return 0, err
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	matched := 0
	for i := range list {
		if want[list[i].ID] {
			list[i].Selected = selected
			matched++
		}
	}
	if matched == 0 {
		return 0, ErrNoFramesMatched
	}

	if err := s.writeMetadata(videoID, list); err != nil {
		return 0, err
	}
	return matched, nil
}

// DeleteFrames removes the given frames, or every frame of the video when
// ids is nil, and returns how many records were removed. File removal is
// best effort.
func (s *Store) DeleteFrames(videoID string, ids []string) (int, error) {
	defer s.lock(videoID)()

	exists, err := s.VideoExists(videoID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrVideoNotFound
	}

	list, err := s.LoadMetadata(videoID)
	if err != nil {
		if ids != nil {
			return 0, err
		}
		list = nil
	}

	if ids == nil {
		if err := s.assets.DeleteNamespace(videoID); err != nil {
			return 0, err
		}
		return len(list), nil
	}

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	remaining := make([]Frame, 0, len(list))
	var removed []Frame
	for _, f := range list {
		if drop[f.ID] {
			removed = append(removed, f)
			continue
		}
		remaining = append(remaining, f)
	}
	if len(removed) > 0 {
		if err := s.writeMetadata(videoID, remaining); err != nil {
			return 0, err
		}
		for _, f := range removed {
			s.removeFiles(f)
		}
	}

	// frames written before metadata existed are only known by filename
	count := len(removed)
	if len(list) == 0 {
		count += s.deleteLegacy(videoID, ids)
	}

	s.log.Info("frames: deleted frames", zap.String("video_id", videoID), zap.Int("count", count))
	return count, nil
}

func (s *Store) deleteLegacy(videoID string, ids []string) int {
	legacy, err := s.scanLegacy(videoID)
	if err != nil {
		s.log.Warn("frames: directory scan failed during delete", zap.String("video_id", videoID), zap.Error(err))
		return 0
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	count := 0
	for _, f := range legacy {
		if drop[f.ID] {
			s.removeFiles(f)
			count++
		}
	}
	return count
}
