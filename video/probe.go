package video

import (
	"fmt"
	"math"
	"os"

	"gocv.io/x/gocv"
)

// Info describes a video as reported by the container.
type Info struct {
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	FPS               float64 `json:"fps"`
	FrameCount        int     `json:"frame_count"`
	Duration          float64 `json:"duration"`
	DurationFormatted string  `json:"duration_formatted"`
}

// Probe opens path just long enough to read its properties.
func Probe(path string) (Info, error) {
	capture, info, err := openCapture(path)
	if err != nil {
		return Info{}, err
	}
	capture.Close()
	return info, nil
}

func openCapture(path string) (*gocv.VideoCapture, Info, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, Info{}, &OpenError{Path: path, Reason: err.Error()}
	}

	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, Info{}, &OpenError{Path: path, Reason: err.Error()}
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, Info{}, &OpenError{Path: path, Reason: "capture not opened"}
	}

	fps := capture.Get(gocv.VideoCaptureFPS)
	count := int(capture.Get(gocv.VideoCaptureFrameCount))
	if count <= 0 {
		capture.Close()
		return nil, Info{}, &OpenError{Path: path, Reason: "video reports no frames"}
	}
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		capture.Close()
		return nil, Info{}, &OpenError{Path: path, Reason: fmt.Sprintf("invalid frame rate %v", fps)}
	}

	duration := float64(count) / fps
	info := Info{
		Width:             int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:            int(capture.Get(gocv.VideoCaptureFrameHeight)),
		FPS:               fps,
		FrameCount:        count,
		Duration:          duration,
		DurationFormatted: FormatDuration(duration),
	}
	return capture, info, nil
}

// FormatDuration renders seconds as MM:SS, or HH:MM:SS past the hour.
func FormatDuration(seconds float64) string {
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FormatTimestamp renders seconds as HH:MM:SS.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
