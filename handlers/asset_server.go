package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AssetServer serves files below baseDir for requests under routePrefix.
// example usage:
//
//	r.Get("/results/*", AssetServer("/results/", cfg.ResultsDir, log))
func AssetServer(routePrefix, baseDir string, log *zap.Logger) http.HandlerFunc {
	baseDir = filepath.Clean(baseDir)
	log.Info("serving assets", zap.String("route", routePrefix+"*"), zap.String("dir", baseDir))

	return func(w http.ResponseWriter, r *http.Request) {
		// e.g. for /results/frames/vid/a.jpg extract "frames/vid/a.jpg"
		relativePath := strings.TrimPrefix(r.URL.Path, routePrefix)

		if relativePath == "" || strings.Contains(relativePath, "..") {
			http.Error(w, "Invalid asset path", http.StatusBadRequest)
			return
		}

		cleanedAssetPath := filepath.Clean(filepath.Join(baseDir, filepath.FromSlash(relativePath)))
		if !strings.HasPrefix(cleanedAssetPath, baseDir+string(filepath.Separator)) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			log.Warn("asset access outside designated directory",
				zap.String("request", r.URL.Path),
				zap.String("resolved", cleanedAssetPath),
			)
			return
		}

		info, err := os.Stat(cleanedAssetPath)
		if os.IsNotExist(err) || (err == nil && info.IsDir()) {
			http.NotFound(w, r)
			return
		} else if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			log.Error("failed to stat asset", zap.String("path", cleanedAssetPath), zap.Error(err))
			return
		}

		cacheDuration := time.Hour
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(cacheDuration.Seconds())))
		w.Header().Set("Expires", time.Now().Add(cacheDuration).Format(http.TimeFormat))

		http.ServeFile(w, r, cleanedAssetPath)
	}
}
