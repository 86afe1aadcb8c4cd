package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/facette/natsort"
)

var ErrVideoFileNotFound = errors.New("video file not found")

var supportedVideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
	".m4v":  true,
	".mpg":  true,
	".mpeg": true,
}

// IsVideoFile checks if the filename has a known video container extension
func IsVideoFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedVideoExtensions[ext]
}

// ValidID rejects identifiers that could escape a directory or act as a glob.
func ValidID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\*?[]`)
}

// ResolveVideoPath finds the uploaded file for id in dir. A file named
// <id>.<ext> wins; otherwise the first file whose name contains id.
func ResolveVideoPath(dir, id string) (string, error) {
	if !ValidID(id) {
		return "", fmt.Errorf("%w: invalid id %q", ErrVideoFileNotFound, id)
	}

	exact, err := filepath.Glob(filepath.Join(dir, id+".*"))
	if err != nil {
		return "", fmt.Errorf("failed to glob video directory: %w", err)
	}
	if len(exact) > 0 {
		natsort.Sort(exact)
		return exact[0], nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrVideoFileNotFound
		}
		return "", fmt.Errorf("failed to read video directory %s: %w", dir, err)
	}
	var partial []string
	for _, e := range entries {
		if !e.IsDir() && strings.Contains(e.Name(), id) {
			partial = append(partial, e.Name())
		}
	}
	if len(partial) == 0 {
		return "", ErrVideoFileNotFound
	}
	natsort.Sort(partial)
	return filepath.Join(dir, partial[0]), nil
}

// SaveStream copies data into dir/filename through a temp file. Nothing is
// left behind on failure.
func SaveStream(data io.Reader, dir, filename string) (int64, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("failed to write %s: %w", filename, err)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, filename)); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("failed to move upload into place: %w", err)
	}
	return written, nil
}

// RemoveVideoFiles deletes every file in dir whose name starts with id and
// returns the removed names.
func RemoveVideoFiles(dir, id string) ([]string, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("invalid id %q", id)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read video directory %s: %w", dir, err)
	}

	var removed []string
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), id) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, e.Name())
	}
	return removed, errors.Join(errs...)
}
