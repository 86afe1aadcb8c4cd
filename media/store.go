package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var ErrInvalidNamespace = errors.New("invalid namespace")

// Store saves, retrieves and deletes assets grouped by namespace (one per video).
type Store interface {
	// Save writes data under namespace and returns the path relative to the store root
	Save(assetType AssetType, namespace string, filename string, data io.Reader) (string, error)
	// WriteAtomic replaces a file under namespace without exposing a partial write
	WriteAtomic(assetType AssetType, namespace string, filename string, data []byte) (string, error)
	Get(relativePath string) (io.ReadCloser, os.FileInfo, error)
	Delete(relativePath string) error
	// DeleteNamespace removes everything stored under namespace
	DeleteNamespace(namespace string) error
	GetFullPath(relativePath string) (string, error)
	// NamespaceDir returns the absolute directory of an asset type within namespace
	NamespaceDir(assetType AssetType, namespace string) (string, error)
}

// LocalStorage implements Store on the local filesystem as
// <basePath>/<namespace>/<subdir>/<filename>.
type LocalStorage struct {
	basePath  string
	subDirMap map[AssetType]string
	log       *zap.Logger
}

func NewLocalStorage(basePath string, subDirs map[AssetType]string, log *zap.Logger) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	for assetType, subDir := range subDirs {
		if subDir == "" {
			continue
		}
		if filepath.IsAbs(subDir) || strings.Contains(filepath.Clean(subDir), "..") {
			return nil, fmt.Errorf("invalid subdirectory configuration for '%s': '%s'", assetType, subDir)
		}
	}

	log.Info("media.store: initialized local storage", zap.String("path", absBasePath))
	return &LocalStorage{
		basePath:  absBasePath,
		subDirMap: subDirs,
		log:       log,
	}, nil
}

// Base returns the absolute store root.
func (ls *LocalStorage) Base() string { return ls.basePath }

func validNamespace(namespace string) error {
	if namespace == "" || namespace == "." || namespace == ".." ||
		strings.ContainsAny(namespace, `/\`) || strings.ContainsRune(namespace, 0) {
		return fmt.Errorf("%w: '%s'", ErrInvalidNamespace, namespace)
	}
	return nil
}

func (ls *LocalStorage) NamespaceDir(assetType AssetType, namespace string) (string, error) {
	if err := validNamespace(namespace); err != nil {
		return "", err
	}
	subDir, ok := ls.subDirMap[assetType]
	if !ok {
		return "", fmt.Errorf("asset type '%s' not configured", assetType)
	}
	dirPath := filepath.Join(ls.basePath, namespace, subDir)
	if !strings.HasPrefix(filepath.Clean(dirPath), ls.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("asset type '%s' resolves outside base path", assetType)
	}
	return dirPath, nil
}

func (ls *LocalStorage) ensureDir(assetType AssetType, namespace string) (string, error) {
	dirPath, err := ls.NamespaceDir(assetType, namespace)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure directory '%s': %w", dirPath, err)
	}
	return dirPath, nil
}

func (ls *LocalStorage) target(assetType AssetType, namespace, filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return "", fmt.Errorf("invalid filename '%s'", filename)
	}
	dir, err := ls.ensureDir(assetType, namespace)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filename), nil
}

func (ls *LocalStorage) relative(fullPath string) (string, error) {
	relativePath, err := filepath.Rel(ls.basePath, fullPath)
	if err != nil {
		return "", fmt.Errorf("internal error calculating relative path: %w", err)
	}
	return filepath.ToSlash(relativePath), nil
}

// Save copies data into a new file. A failed copy leaves nothing behind.
func (ls *LocalStorage) Save(assetType AssetType, namespace string, filename string, data io.Reader) (string, error) {
	fullSavePath, err := ls.target(assetType, namespace, filename)
	if err != nil {
		return "", err
	}

	outFile, err := os.Create(fullSavePath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file '%s': %w", fullSavePath, err)
	}

	if _, err := io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}
	if err := outFile.Close(); err != nil {
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to close '%s': %w", fullSavePath, err)
	}

	ls.log.Debug("media.store: saved asset", zap.String("path", fullSavePath))
	return ls.relative(fullSavePath)
}

// WriteAtomic writes to a temp file in the target directory, syncs it, then
// renames it over the destination.
func (ls *LocalStorage) WriteAtomic(assetType AssetType, namespace string, filename string, data []byte) (string, error) {
	fullPath, err := ls.target(assetType, namespace, filename)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), "."+filename+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for '%s': %w", fullPath, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write temp file for '%s': %w", fullPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to sync temp file for '%s': %w", fullPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close temp file for '%s': %w", fullPath, err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to replace '%s': %w", fullPath, err)
	}

	return ls.relative(fullPath)
}

func (ls *LocalStorage) Get(relativePath string) (io.ReadCloser, os.FileInfo, error) {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("asset not found at '%s': %w", relativePath, err)
		}
		return nil, nil, fmt.Errorf("failed to open asset '%s': %w", relativePath, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to stat asset '%s': %w", relativePath, err)
	}

	return file, info, nil
}

// Delete removes an asset file. A missing file is not an error.
func (ls *LocalStorage) Delete(relativePath string) error {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset '%s': %w", relativePath, err)
	}
	if err == nil {
		ls.log.Debug("media.store: deleted asset", zap.String("path", fullPath))
	}
	return nil
}

func (ls *LocalStorage) DeleteNamespace(namespace string) error {
	if err := validNamespace(namespace); err != nil {
		return err
	}
	dir := filepath.Join(ls.basePath, namespace)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete '%s': %w", dir, err)
	}
	ls.log.Info("media.store: deleted namespace", zap.String("path", dir))
	return nil
}

// GetFullPath resolves a store-relative path, refusing anything outside the root.
func (ls *LocalStorage) GetFullPath(relativePath string) (string, error) {
	if filepath.IsAbs(relativePath) {
		return "", fmt.Errorf("invalid path: access denied for '%s'", relativePath)
	}
	cleanRelativePath := filepath.Clean(filepath.FromSlash(relativePath))

	absFullPath, err := filepath.Abs(filepath.Join(ls.basePath, cleanRelativePath))
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", relativePath, err)
	}

	if !strings.HasPrefix(absFullPath, ls.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: access denied for '%s'", relativePath)
	}

	return absFullPath, nil
}
