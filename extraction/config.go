package extraction

import (
	"errors"
	"fmt"

	"github.com/camden-git/clipcraft/config"
)

var ErrInvalidConfig = errors.New("invalid extraction config")

// Config is the per-request override set. Nil fields fall back to Settings
// defaults.
type Config struct {
	SampleRate       *int     `json:"sample_rate,omitempty"`
	MaxFrames        *int     `json:"max_frames,omitempty"`
	MinQualityScore  *float64 `json:"min_quality_score,omitempty"`
	UseParallel      *bool    `json:"use_parallel,omitempty"`
	MaxWorkers       *int     `json:"max_workers,omitempty"`
	ThumbnailSize    *[2]int  `json:"thumbnail_size,omitempty"`
	ThumbnailQuality *int     `json:"thumbnail_quality,omitempty"`
}

// Settings is a fully resolved, immutable extraction configuration.
type Settings struct {
	SampleRate        int     `json:"sample_rate"`
	MaxFrames         int     `json:"max_frames"`
	MinQualityScore   float64 `json:"min_quality_score"`
	UseParallel       bool    `json:"use_parallel"`
	MaxWorkers        int     `json:"max_workers"`
	ParallelThreshold int     `json:"-"`
	ThumbnailSize     [2]int  `json:"thumbnail_size"`
	ThumbnailQuality  int     `json:"thumbnail_quality"`
}

// DefaultSettings takes the process-wide defaults from cfg.
func DefaultSettings(cfg config.Config) Settings {
	return Settings{
		SampleRate:        cfg.DefaultSampleRate,
		MaxFrames:         cfg.MaxFrames,
		MinQualityScore:   cfg.MinQualityScore,
		UseParallel:       cfg.UseParallel,
		MaxWorkers:        cfg.ResolvedWorkers,
		ParallelThreshold: cfg.ParallelThreshold,
		ThumbnailSize:     [2]int{cfg.ThumbnailWidth, cfg.ThumbnailHeight},
		ThumbnailQuality:  cfg.ThumbnailQuality,
	}
}

// Resolve overlays c on defaults and validates the result.
func (c Config) Resolve(defaults Settings) (Settings, error) {
	s := defaults
	if c.SampleRate != nil {
		s.SampleRate = *c.SampleRate
	}
	if c.MaxFrames != nil {
		s.MaxFrames = *c.MaxFrames
	}
	if c.MinQualityScore != nil {
		s.MinQualityScore = *c.MinQualityScore
	}
	if c.UseParallel != nil {
		s.UseParallel = *c.UseParallel
	}
	if c.MaxWorkers != nil && *c.MaxWorkers > 0 {
		s.MaxWorkers = *c.MaxWorkers
	}
	if c.ThumbnailSize != nil {
		s.ThumbnailSize = *c.ThumbnailSize
	}
	if c.ThumbnailQuality != nil {
		s.ThumbnailQuality = *c.ThumbnailQuality
	}

	if s.SampleRate < 1 {
		return Settings{}, fmt.Errorf("%w: sample_rate must be at least 1", ErrInvalidConfig)
	}
	if s.ThumbnailSize[0] <= 0 || s.ThumbnailSize[1] <= 0 {
		return Settings{}, fmt.Errorf("%w: thumbnail_size must be positive", ErrInvalidConfig)
	}
	if s.ThumbnailQuality < 1 || s.ThumbnailQuality > 100 {
		return Settings{}, fmt.Errorf("%w: thumbnail_quality must be within 1..100", ErrInvalidConfig)
	}
	return s, nil
}

// ExpectedSamples is the number of frames a sampler will yield for total
// frames at the configured rate.
func (s Settings) ExpectedSamples(total int) int {
	if total <= 0 || s.SampleRate <= 0 {
		return 0
	}
	return (total + s.SampleRate - 1) / s.SampleRate
}
