package video

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

var ErrSamplerClosed = errors.New("sampler closed")

// Sample is one decoded frame. The caller owns Mat and must Close it.
type Sample struct {
	Mat         gocv.Mat
	FrameNumber int
	FPS         float64
}

// Sampler yields every Nth frame of a video in ascending order. It is not
// restartable and not safe for concurrent use.
type Sampler struct {
	path    string
	rate    int
	capture *gocv.VideoCapture
	scratch gocv.Mat
	info    Info
	next    int
	done    bool
	closed  bool
}

// Open starts a sampler over path that yields frames 0, rate, 2*rate, ...
func Open(path string, rate int) (*Sampler, error) {
	if rate < 1 {
		return nil, fmt.Errorf("sample rate must be at least 1, got %d", rate)
	}

	capture, info, err := openCapture(path)
	if err != nil {
		return nil, err
	}

	return &Sampler{
		path:    path,
		rate:    rate,
		capture: capture,
		scratch: gocv.NewMat(),
		info:    info,
	}, nil
}

// Info returns the properties read when the video was opened.
func (s *Sampler) Info() Info { return s.info }

// Next decodes forward to the next sampled frame. ok is false once the
// stream is exhausted.
func (s *Sampler) Next() (Sample, bool, error) {
	if s.closed {
		return Sample{}, false, ErrSamplerClosed
	}
	if s.done {
		return Sample{}, false, nil
	}

	for {
		if !s.capture.Read(&s.scratch) {
			s.done = true
			return Sample{}, false, nil
		}
		n := s.next
		s.next++

		if n%s.rate != 0 {
			continue
		}
		if s.scratch.Empty() || s.scratch.Cols() <= 0 || s.scratch.Rows() <= 0 {
			s.done = true
			return Sample{}, false, &DecodeError{Path: s.path, FrameNumber: n}
		}

		return Sample{Mat: s.scratch.Clone(), FrameNumber: n, FPS: s.info.FPS}, true, nil
	}
}

// Close releases the capture. Safe to call more than once.
func (s *Sampler) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.scratch.Close(); err != nil {
		s.capture.Close()
		return fmt.Errorf("failed to release frame buffer: %w", err)
	}
	if err := s.capture.Close(); err != nil {
		return fmt.Errorf("failed to release video capture: %w", err)
	}
	return nil
}
