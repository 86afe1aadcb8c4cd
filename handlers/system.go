package handlers

import (
	"net/http"
	"time"

	"github.com/camden-git/clipcraft/config"
)

const serviceName = "clipcraft-api"

type ConfigResponse struct {
	AvailableSampleRates []int   `json:"available_sample_rates"`
	DefaultSampleRate    int     `json:"default_sample_rate"`
	MaxFrames            int     `json:"max_frames"`
	MinQualityScore      float64 `json:"min_quality_score"`
	UIMaxDisplayFrames   int     `json:"ui_max_display_frames"`
	MaxUploadSize        int64   `json:"max_upload_size"`
}

// ConfigHandler exposes the settings a client needs to build requests.
func ConfigHandler(cfg config.Config) http.HandlerFunc {
	resp := ConfigResponse{
		AvailableSampleRates: cfg.AvailableSampleRates,
		DefaultSampleRate:    cfg.DefaultSampleRate,
		MaxFrames:            cfg.MaxFrames,
		MinQualityScore:      cfg.MinQualityScore,
		UIMaxDisplayFrames:   cfg.UIMaxDisplayFrames,
		MaxUploadSize:        cfg.MaxUploadSize,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, resp)
	}
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   serviceName,
		"timestamp": float64(time.Now().UnixNano()) / 1e9,
	})
}
