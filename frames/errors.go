package frames

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

var (
	// ErrVideoNotFound means no frame directory exists for the video.
	ErrVideoNotFound = errors.New("no frames stored for video")
	// ErrNoFramesMatched means none of the requested frame ids exist.
	ErrNoFramesMatched = errors.New("no matching frames")
)

// StorageWriteError aborts a batch when the filesystem itself is unusable.
type StorageWriteError struct {
	VideoID string
	Err     error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("storage write failed for video %s: %v", e.VideoID, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// infrastructural reports errors that will affect every later write too.
func infrastructural(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EROFS) ||
		errors.Is(err, fs.ErrPermission)
}
