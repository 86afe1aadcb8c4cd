package handlers

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/camden-git/clipcraft/config"
	"github.com/camden-git/clipcraft/database"
	"github.com/camden-git/clipcraft/models"
	"github.com/camden-git/clipcraft/utils"
	"github.com/camden-git/clipcraft/video"
)

const defaultVideoExtension = ".mp4"

type VideosHandler struct {
	Index *sql.DB
	Cfg   config.Config
	Log   *zap.Logger
	// Probe reads container properties; video.Probe when nil.
	Probe func(path string) (video.Info, error)
}

type UploadResponse struct {
	ID               string `json:"id"`
	Filename         string `json:"filename"`
	OriginalFilename string `json:"original_filename"`
	UploadTime       string `json:"upload_time"`
	Size             int64  `json:"size"`
	Status           string `json:"status"`
}

type VideoResponse struct {
	models.Video
	Duration          float64 `json:"duration"`
	DurationFormatted string  `json:"duration_formatted"`
}

func (h *VideosHandler) probe(path string) (video.Info, error) {
	if h.Probe != nil {
		return h.Probe(path)
	}
	return video.Probe(path)
}

// Upload streams the multipart "file" field into the upload directory under
// a fresh id, keeping the original extension.
func (h *VideosHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Cfg.MaxUploadSize)

	mr, err := r.MultipartReader()
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Expected a multipart upload: "+err.Error())
		return
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Missing 'file' field")
			return
		}
		if err != nil {
			h.writeUploadError(w, err)
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		h.saveUpload(w, part.FileName(), part.Header.Get("Content-Type"), part)
		part.Close()
		return
	}
}

func (h *VideosHandler) saveUpload(w http.ResponseWriter, originalName, contentType string, data io.Reader) {
	if !strings.HasPrefix(contentType, "video/") && !utils.IsVideoFile(originalName) {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "File must be a video")
		return
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = defaultVideoExtension
	}
	id := uuid.NewString()
	filename := id + ext

	start := time.Now()
	size, err := utils.SaveStream(data, h.Cfg.VideosPath, filename)
	if err != nil {
		h.Log.Error("upload: failed to save video", zap.String("filename", originalName), zap.Error(err))
		h.writeUploadError(w, err)
		return
	}

	fullPath := filepath.Join(h.Cfg.VideosPath, filename)
	row := models.Video{
		ID:           id,
		Path:         fullPath,
		OriginalName: originalName,
		Extension:    ext,
		Size:         size,
		UploadedAt:   time.Now().Unix(),
	}
	if info, err := h.probe(fullPath); err != nil {
		h.Log.Warn("upload: could not probe video", zap.String("video_id", id), zap.Error(err))
	} else {
		row.Width, row.Height, row.FPS, row.FrameCount = info.Width, info.Height, info.FPS, info.FrameCount
	}
	if err := database.RegisterVideo(h.Index, row); err != nil {
		h.Log.Error("upload: failed to index video", zap.String("video_id", id), zap.Error(err))
	}

	h.Log.Info("upload: video saved",
		zap.String("video_id", id),
		zap.String("original_filename", originalName),
		zap.Int64("size", size),
		zap.Duration("elapsed", time.Since(start)),
	)
	writeJSON(w, http.StatusOK, UploadResponse{
		ID:               id,
		Filename:         filename,
		OriginalFilename: originalName,
		UploadTime:       time.Unix(row.UploadedAt, 0).UTC().Format(time.RFC3339),
		Size:             size,
		Status:           "uploaded",
	})
}

func (h *VideosHandler) writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		WriteAPIError(w, http.StatusRequestEntityTooLarge, CodeUploadTooLarge, "Upload exceeds the maximum allowed size")
		return
	}
	WriteAPIError(w, http.StatusInternalServerError, CodeUploadFailed, "Upload failed: "+err.Error())
}

func (h *VideosHandler) List(w http.ResponseWriter, r *http.Request) {
	videos, err := database.ListVideos(h.Index)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"videos": videos, "count": len(videos)})
}

// Get returns the indexed properties of a video, probing and indexing files
// that were placed in the upload directory directly.
func (h *VideosHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "video_id")

	row, err := database.GetVideo(h.Index, id)
	if errors.Is(err, database.ErrVideoNotIndexed) {
		row, err = h.indexFromDisk(id)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := VideoResponse{Video: row}
	if row.FPS > 0 {
		resp.Duration = float64(row.FrameCount) / row.FPS
		resp.DurationFormatted = video.FormatDuration(resp.Duration)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *VideosHandler) indexFromDisk(id string) (models.Video, error) {
	fullPath, err := utils.ResolveVideoPath(h.Cfg.VideosPath, id)
	if err != nil {
		return models.Video{}, err
	}
	info, err := h.probe(fullPath)
	if err != nil {
		return models.Video{}, err
	}
	row := models.Video{
		ID:         id,
		Path:       fullPath,
		Extension:  strings.ToLower(filepath.Ext(fullPath)),
		Width:      info.Width,
		Height:     info.Height,
		FPS:        info.FPS,
		FrameCount: info.FrameCount,
		UploadedAt: time.Now().Unix(),
	}
	if st, err := os.Stat(fullPath); err == nil {
		row.Size = st.Size()
		row.UploadedAt = st.ModTime().Unix()
	}
	if err := database.RegisterVideo(h.Index, row); err != nil {
		h.Log.Warn("videos: failed to index video", zap.String("video_id", id), zap.Error(err))
	}
	return row, nil
}

// Delete removes the uploaded source file; extracted frames are kept.
func (h *VideosHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "video_id")
	if !utils.ValidID(id) {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid video id")
		return
	}

	removed, err := utils.RemoveVideoFiles(h.Cfg.VideosPath, id)
	if err != nil {
		h.Log.Error("videos: failed to delete video files", zap.String("video_id", id), zap.Error(err))
		writeDomainError(w, err)
		return
	}
	indexed, err := database.DeleteVideo(h.Index, id)
	if err != nil {
		h.Log.Warn("videos: failed to remove index row", zap.String("video_id", id), zap.Error(err))
	}
	if len(removed) == 0 && !indexed {
		WriteAPIError(w, http.StatusNotFound, CodeVideoNotFound, "Video "+id+" not found")
		return
	}

	h.Log.Info("videos: deleted source", zap.String("video_id", id), zap.Strings("files", removed))
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Video " + id + " deleted successfully",
		"deleted_files": removed,
	})
}

// locateVideo returns the upload path for id, preferring the index.
func locateVideo(index *sql.DB, videosDir, id string, log *zap.Logger) (string, error) {
	if index != nil {
		row, err := database.GetVideo(index, id)
		switch {
		case err == nil:
			if _, statErr := os.Stat(row.Path); statErr == nil {
				return row.Path, nil
			}
			log.Warn("indexed video file is missing", zap.String("video_id", id), zap.String("path", row.Path))
		case !errors.Is(err, database.ErrVideoNotIndexed):
			log.Warn("video index lookup failed", zap.String("video_id", id), zap.Error(err))
		}
	}
	return utils.ResolveVideoPath(videosDir, id)
}
