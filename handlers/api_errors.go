package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/camden-git/clipcraft/extraction"
	"github.com/camden-git/clipcraft/frames"
	"github.com/camden-git/clipcraft/media"
	"github.com/camden-git/clipcraft/utils"
	"github.com/camden-git/clipcraft/video"
)

// error codes returned in APIErrorDetail.Code
const (
	CodeInvalidRequest  = "invalid_request"
	CodeInvalidConfig   = "invalid_config"
	CodeVideoNotFound   = "video_not_found"
	CodeFramesNotFound  = "frames_not_found"
	CodeTaskNotFound    = "task_not_found"
	CodeVideoInfoError  = "video_info_error"
	CodeUploadFailed    = "upload_failed"
	CodeUploadTooLarge  = "upload_too_large"
	CodeProcessingError = "processing_error"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	resp := APIErrorResponse{
		Errors: []APIErrorDetail{
			{
				Code:   code,
				Status: strconv.Itoa(httpStatus),
				Detail: detail,
			},
		},
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// writeDomainError maps errors from the core packages onto API errors.
func writeDomainError(w http.ResponseWriter, err error) {
	var openErr *video.OpenError
	switch {
	case errors.Is(err, media.ErrInvalidNamespace):
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	case errors.Is(err, extraction.ErrInvalidConfig):
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidConfig, err.Error())
	case errors.Is(err, extraction.ErrTaskNotFound):
		WriteAPIError(w, http.StatusNotFound, CodeTaskNotFound, err.Error())
	case errors.Is(err, utils.ErrVideoFileNotFound):
		WriteAPIError(w, http.StatusNotFound, CodeVideoNotFound, err.Error())
	case errors.Is(err, frames.ErrVideoNotFound), errors.Is(err, frames.ErrNoFramesMatched):
		WriteAPIError(w, http.StatusNotFound, CodeFramesNotFound, err.Error())
	case errors.As(err, &openErr):
		WriteAPIError(w, http.StatusUnprocessableEntity, CodeVideoInfoError, err.Error())
	default:
		WriteAPIError(w, http.StatusInternalServerError, CodeProcessingError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
