package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/camden-git/clipcraft/config"
	"github.com/camden-git/clipcraft/extraction"
	"github.com/camden-git/clipcraft/frames"
	"github.com/camden-git/clipcraft/utils"
)

type FramesHandler struct {
	Service *extraction.Service
	Frames  *frames.Store
	Index   *sql.DB
	Cfg     config.Config
	Log     *zap.Logger
}

type ExtractRequest struct {
	VideoID string             `json:"video_id"`
	Config  *extraction.Config `json:"config,omitempty"`
}

type SelectionRequest struct {
	VideoID  string   `json:"video_id"`
	FrameIDs []string `json:"frame_ids"`
}

type SelectionResponse struct {
	VideoID        string   `json:"video_id"`
	SelectedFrames int      `json:"selected_frames"`
	FrameIDs       []string `json:"frame_ids"`
}

// FrameResponse is a stored frame with retrievable URLs.
type FrameResponse struct {
	frames.Frame
	FileURL      string `json:"file_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

type FramesListResponse struct {
	VideoID     string          `json:"video_id"`
	FramesCount int             `json:"frames_count"`
	Frames      []FrameResponse `json:"frames"`
	Degraded    bool            `json:"degraded,omitempty"`
}

// Extract starts an extraction task for an uploaded video.
func (h *FramesHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}
	if !utils.ValidID(req.VideoID) {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "A valid video_id is required")
		return
	}

	videoPath, err := locateVideo(h.Index, h.Cfg.VideosPath, req.VideoID, h.Log)
	if err != nil {
		h.Log.Warn("extract: video not found", zap.String("video_id", req.VideoID), zap.Error(err))
		writeDomainError(w, err)
		return
	}

	var cfg extraction.Config
	if req.Config != nil {
		cfg = *req.Config
	}
	task, err := h.Service.CreateTask(r.Context(), req.VideoID, videoPath, cfg)
	if err != nil {
		h.Log.Error("extract: failed to create task", zap.String("video_id", req.VideoID), zap.Error(err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *FramesHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.Service.GetTask(r.Context(), chi.URLParam(r, "task_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ListFrames handles GET /frames/{video_id}?selected_only=true.
func (h *FramesHandler) ListFrames(w http.ResponseWriter, r *http.Request) {
	selectedOnly := false
	if raw := r.URL.Query().Get("selected_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "selected_only must be a boolean")
			return
		}
		selectedOnly = v
	}
	h.list(w, r, selectedOnly)
}

func (h *FramesHandler) ListSelected(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *FramesHandler) list(w http.ResponseWriter, r *http.Request, selectedOnly bool) {
	videoID := chi.URLParam(r, "video_id")
	listing, err := h.Frames.ListFrames(videoID, selectedOnly)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	base := baseURL(r)
	resp := FramesListResponse{
		VideoID:     videoID,
		FramesCount: len(listing.Frames),
		Frames:      make([]FrameResponse, 0, len(listing.Frames)),
		Degraded:    listing.Degraded,
	}
	for _, f := range listing.Frames {
		resp.Frames = append(resp.Frames, FrameResponse{
			Frame:        f,
			FileURL:      h.assetURL(base, f.FilePath),
			ThumbnailURL: h.assetURL(base, f.ThumbnailPath),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *FramesHandler) Select(w http.ResponseWriter, r *http.Request) {
	h.updateSelection(w, r, true)
}

func (h *FramesHandler) Unselect(w http.ResponseWriter, r *http.Request) {
	h.updateSelection(w, r, false)
}

func (h *FramesHandler) updateSelection(w http.ResponseWriter, r *http.Request, selected bool) {
	var req SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.VideoID == "" || len(req.FrameIDs) == 0 {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "video_id and frame_ids are required")
		return
	}

	n, err := h.Frames.UpdateSelection(req.VideoID, req.FrameIDs, selected)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.Log.Info("frames: selection updated",
		zap.String("video_id", req.VideoID),
		zap.Bool("selected", selected),
		zap.Int("matched", n),
	)
	writeJSON(w, http.StatusOK, SelectionResponse{
		VideoID:        req.VideoID,
		SelectedFrames: n,
		FrameIDs:       req.FrameIDs,
	})
}

// DeleteFrames removes the frames named by frame_ids, or every frame of the
// video when none are given. frame_ids may repeat or be comma separated.
func (h *FramesHandler) DeleteFrames(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "video_id")

	rawIDs, targeted := r.URL.Query()["frame_ids"]
	var ids []string
	for _, raw := range rawIDs {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	if targeted && len(ids) == 0 {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "frame_ids must not be empty")
		return
	}

	n, err := h.Frames.DeleteFrames(videoID, ids)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if ids == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"message": fmt.Sprintf("Deleted all frames for video %s", videoID),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        fmt.Sprintf("Deleted %d frames", n),
		"deleted_frames": n,
	})
}

// assetURL maps a store-relative path to its URL under /results.
func (h *FramesHandler) assetURL(base, relativePath string) string {
	if relativePath == "" {
		return ""
	}
	return base + path.Join("/results", h.Cfg.FramesDir, filepath.ToSlash(relativePath))
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
