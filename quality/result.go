package quality

import (
	"errors"
	"math"
)

// thresholds for the quick check, evaluated on the 320x180 downsample
const (
	QuickCheckWidth  = 320
	QuickCheckHeight = 180

	MinBrightness = 30.0
	MaxBrightness = 220.0
	MinSharpness  = 15.0
)

// composite weights
const (
	sharpnessWeight  = 0.7
	brightnessWeight = 0.2
	contrastWeight   = 0.1

	contrastScale = 0.5
	midGray       = 128.0
)

var ErrInvalidFrame = errors.New("invalid frame")

type Verdict int

const (
	Accepted Verdict = iota + 1
	Rejected
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Reason explains a rejection; empty for accepted frames.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonTooDark   Reason = "too_dark"
	ReasonTooBright Reason = "too_bright"
	ReasonBlurry    Reason = "blurry"
)

type Metrics struct {
	Sharpness    float64 `json:"sharpness"`
	Brightness   float64 `json:"brightness"`
	Contrast     float64 `json:"contrast"`
	QualityScore float64 `json:"quality_score"`
}

// Result is the outcome of scoring a single frame. Rejected results carry
// only the brightness measured by the quick check.
type Result struct {
	Verdict Verdict
	Reason  Reason
	Metrics Metrics
}

func (r Result) Accepted() bool { return r.Verdict == Accepted }

func reject(reason Reason, brightness float64) Result {
	return Result{Verdict: Rejected, Reason: reason, Metrics: Metrics{Brightness: brightness}}
}

// QuickCheck applies the stage-one thresholds to the downsampled luminance
// mean and Laplacian variance.
func QuickCheck(brightness, lapVar float64) (Reason, bool) {
	if reason, ok := checkBrightness(brightness); !ok {
		return reason, false
	}
	if lapVar < MinSharpness {
		return ReasonBlurry, false
	}
	return ReasonNone, true
}

func checkBrightness(brightness float64) (Reason, bool) {
	switch {
	case brightness < MinBrightness:
		return ReasonTooDark, false
	case brightness > MaxBrightness:
		return ReasonTooBright, false
	}
	return ReasonNone, true
}

// Compose builds the full metric set. brightness and lapVar come from the
// quick check; stdDev is measured on the full-resolution luminance.
func Compose(brightness, lapVar, stdDev float64) Metrics {
	sharpness := clamp(lapVar)
	contrast := clamp(stdDev * contrastScale)
	brightnessScore := clamp(100 - math.Abs(brightness-midGray)*100/midGray)

	score := sharpnessWeight*sharpness + brightnessWeight*brightnessScore + contrastWeight*contrast

	return Metrics{
		Sharpness:    sharpness,
		Brightness:   brightness,
		Contrast:     contrast,
		QualityScore: clamp(score),
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
