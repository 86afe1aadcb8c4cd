package models

// Video is a row of the uploaded video index kept in the 'videos' table.
type Video struct {
	ID           string  `json:"video_id"`
	Path         string  `json:"-"`
	OriginalName string  `json:"original_name"`
	Extension    string  `json:"extension"`
	Size         int64   `json:"size"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	FPS          float64 `json:"fps"`
	FrameCount   int     `json:"frame_count"`
	UploadedAt   int64   `json:"uploaded_at"` // Unix timestamp
}
