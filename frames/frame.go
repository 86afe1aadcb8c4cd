package frames

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/camden-git/clipcraft/quality"
	"github.com/camden-git/clipcraft/video"
)

// Frame is the durable record of one extracted frame.
type Frame struct {
	ID                 string          `json:"frame_id"`
	VideoID            string          `json:"video_id"`
	FrameNumber        int             `json:"frame_number"`
	Timestamp          float64         `json:"timestamp"`
	TimestampFormatted string          `json:"timestamp_formatted"`
	Metrics            quality.Metrics `json:"metrics"`
	Width              int             `json:"width"`
	Height             int             `json:"height"`
	FilePath           string          `json:"file_path,omitempty"`
	ThumbnailPath      string          `json:"thumbnail_path,omitempty"`
	Selected           bool            `json:"selected"`
	CreatedAt          time.Time       `json:"created_at"`
	Legacy             bool            `json:"legacy,omitempty"`
}

// Candidate is a scored frame that has not been persisted yet. Image is nil
// for rejected frames.
type Candidate struct {
	Frame
	Verdict quality.Verdict
	Reason  quality.Reason
	Image   image.Image
}

// NewCandidate builds the record for a frame scored at fps.
func NewCandidate(id, videoID string, frameNumber int, fps float64, width, height int, res quality.Result, img image.Image) Candidate {
	ts := 0.0
	if fps > 0 {
		ts = float64(frameNumber) / fps
	}
	c := Candidate{
		Frame: Frame{
			ID:                 id,
			VideoID:            videoID,
			FrameNumber:        frameNumber,
			Timestamp:          ts,
			TimestampFormatted: video.FormatTimestamp(ts),
			Metrics:            res.Metrics,
			Width:              width,
			Height:             height,
			CreatedAt:          time.Now().UTC(),
		},
		Verdict: res.Verdict,
		Reason:  res.Reason,
	}
	if res.Accepted() {
		c.Image = img
	}
	return c
}

// Filename is "<HH-MM-SS>_<frame_id>.jpg".
func Filename(f Frame) string {
	return fmt.Sprintf("%s_%s.jpg", strings.ReplaceAll(video.FormatTimestamp(f.Timestamp), ":", "-"), f.ID)
}

// idFromFilename recovers the frame id from a stored filename.
func idFromFilename(name string) (string, bool) {
	base := strings.TrimSuffix(name, ".jpg")
	if base == name {
		base = strings.TrimSuffix(name, ".jpeg")
	}
	_, id, ok := strings.Cut(base, "_")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
