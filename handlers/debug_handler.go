package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/clipcraft/frames"
	"github.com/camden-git/clipcraft/utils"
)

// Debug reports what is on disk for a video.
func (h *FramesHandler) Debug(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "video_id")
	dir, err := h.Frames.Dir(videoID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := map[string]any{
		"video_id":        videoID,
		"directory_path":  dir,
		"frames_base_dir": h.Cfg.FramesPath,
		"upload_dir":      h.Cfg.VideosPath,
	}

	files := []string{}
	if entries, err := os.ReadDir(dir); err == nil {
		for _, e := range entries {
			files = append(files, e.Name())
		}
	}
	resp["directory_exists"] = dirExists(dir)
	resp["files_in_directory"] = files

	metadataPath := filepath.Join(dir, frames.MetadataFilename)
	_, statErr := os.Stat(metadataPath)
	resp["metadata_path"] = metadataPath
	resp["metadata_exists"] = statErr == nil
	if statErr == nil {
		if records, err := h.Frames.LoadMetadata(videoID); err != nil {
			resp["metadata_error"] = err.Error()
		} else {
			resp["metadata_records"] = len(records)
		}
	}

	videoDirs := []string{}
	if entries, err := os.ReadDir(h.Cfg.FramesPath); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				videoDirs = append(videoDirs, e.Name())
			}
		}
	}
	resp["all_video_dirs"] = videoDirs

	videoFiles := []string{}
	if utils.ValidID(videoID) {
		if matches, err := filepath.Glob(filepath.Join(h.Cfg.VideosPath, videoID+".*")); err == nil {
			videoFiles = append(videoFiles, matches...)
		}
	}
	resp["video_files_found"] = videoFiles
	resp["video_files_exist"] = len(videoFiles) > 0
	resp["upload_dir_exists"] = dirExists(h.Cfg.VideosPath)

	writeJSON(w, http.StatusOK, resp)
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
