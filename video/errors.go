package video

import "fmt"

// OpenError is returned when a video cannot be opened or reports no frames.
type OpenError struct {
	Path   string
	Reason string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("could not open video '%s': %s", e.Path, e.Reason)
}

// DecodeError is returned when a frame fails to decode before end of stream.
type DecodeError struct {
	Path        string
	FrameNumber int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode frame %d of '%s'", e.FrameNumber, e.Path)
}
