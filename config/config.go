package config

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/caarlos0/env/v11"
)

// uploaded videos live under <UPLOAD_DIR>/videos
const DefaultVideosSubDir = "videos"

const defaultParallelThreshold = 100

type Config struct {
	Port     string `env:"PORT"      envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// database path for task snapshots and the video index
	DatabasePath string `env:"DATABASE_PATH" envDefault:"clipcraft.db"`

	// storage roots, made absolute by LoadConfig
	UploadDir  string `env:"UPLOAD_DIR"  envDefault:"uploads"`
	ResultsDir string `env:"RESULTS_DIR" envDefault:"results"`
	FramesDir  string `env:"FRAMES_DIR"  envDefault:"frames"`

	// extraction defaults applied when a request leaves a field unset
	DefaultSampleRate int     `env:"DEFAULT_SAMPLE_RATE" envDefault:"24"`
	MaxFrames         int     `env:"MAX_FRAMES"          envDefault:"100"`
	MinQualityScore   float64 `env:"MIN_QUALITY_SCORE"   envDefault:"30.0"`
	UseParallel       bool    `env:"USE_PARALLEL"        envDefault:"true"`
	MaxWorkers        int     `env:"MAX_WORKERS"         envDefault:"0"`
	ParallelThreshold int     `env:"PARALLEL_THRESHOLD"  envDefault:"100"`
	ThumbnailWidth    int     `env:"THUMBNAIL_WIDTH"     envDefault:"320"`
	ThumbnailHeight   int     `env:"THUMBNAIL_HEIGHT"    envDefault:"180"`
	ThumbnailQuality  int     `env:"THUMBNAIL_QUALITY"   envDefault:"85"`

	// values surfaced to clients via /api/config
	AvailableSampleRates []int `env:"AVAILABLE_SAMPLE_RATES" envDefault:"1,2,5,10,15,24,30" envSeparator:","`
	UIMaxDisplayFrames   int   `env:"UI_MAX_DISPLAY_FRAMES"  envDefault:"50"`

	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"http://localhost:5173,http://localhost:3000" envSeparator:","`

	// 10GB
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10737418240"`

	// derived paths
	VideosPath      string `env:"-"`
	FramesPath      string `env:"-"`
	ResolvedWorkers int    `env:"-"`
}

// LoadConfig reads the environment and resolves storage roots to absolute paths.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg.resolve()
}

func (c Config) resolve() (Config, error) {
	absUploads, err := filepath.Abs(c.UploadDir)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for upload directory '%s': %w", c.UploadDir, err)
	}
	absResults, err := filepath.Abs(c.ResultsDir)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for results directory '%s': %w", c.ResultsDir, err)
	}
	if c.FramesDir == "" || c.FramesDir == "." || c.FramesDir == ".." || filepath.IsAbs(c.FramesDir) || filepath.Clean(c.FramesDir) != filepath.Base(c.FramesDir) {
		return Config{}, fmt.Errorf("frames directory '%s' must be a single relative path segment", c.FramesDir)
	}

	c.UploadDir = absUploads
	c.ResultsDir = absResults
	c.VideosPath = filepath.Join(absUploads, DefaultVideosSubDir)
	c.FramesPath = filepath.Join(absResults, c.FramesDir)

	if c.DefaultSampleRate <= 0 {
		return Config{}, fmt.Errorf("DEFAULT_SAMPLE_RATE must be positive, got %d", c.DefaultSampleRate)
	}
	if c.ThumbnailWidth <= 0 || c.ThumbnailHeight <= 0 {
		return Config{}, fmt.Errorf("invalid thumbnail size %dx%d", c.ThumbnailWidth, c.ThumbnailHeight)
	}
	if c.ThumbnailQuality < 1 || c.ThumbnailQuality > 100 {
		return Config{}, fmt.Errorf("THUMBNAIL_QUALITY must be within 1..100, got %d", c.ThumbnailQuality)
	}
	if c.MaxUploadSize <= 0 {
		return Config{}, fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got %d", c.MaxUploadSize)
	}
	if c.ParallelThreshold <= 0 {
		c.ParallelThreshold = defaultParallelThreshold
	}

	c.ResolvedWorkers = c.MaxWorkers
	if c.ResolvedWorkers <= 0 {
		c.ResolvedWorkers = runtime.NumCPU()
	}
	return c, nil
}
