package extraction

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/camden-git/clipcraft/frames"
	"github.com/camden-git/clipcraft/media"
	"github.com/camden-git/clipcraft/metrics"
	"github.com/camden-git/clipcraft/quality"
	"github.com/camden-git/clipcraft/realtime"
	"github.com/camden-git/clipcraft/video"
	"github.com/camden-git/clipcraft/workers"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sampler is the part of *video.Sampler the pipeline uses.
type Sampler interface {
	Next() (video.Sample, bool, error)
	Close() error
}

// Publisher receives task status events.
type Publisher interface {
	Broadcast(event realtime.Event)
}

type nopPublisher struct{}

func (nopPublisher) Broadcast(realtime.Event) {}

// Service creates extraction tasks and runs them in the background.
type Service struct {
	tasks    TaskStore
	frames   *frames.Store
	defaults Settings
	events   Publisher
	log      *zap.Logger

	probe   func(path string) (video.Info, error)
	open    func(path string, rate int) (Sampler, error)
	analyze func(sample video.Sample) (quality.Result, image.Image, error)

	wg sync.WaitGroup
}

func NewService(tasks TaskStore, store *frames.Store, defaults Settings, events Publisher, log *zap.Logger) *Service {
	if events == nil {
		events = nopPublisher{}
	}
	return &Service{
		tasks:    tasks,
		frames:   store,
		defaults: defaults,
		events:   events,
		log:      log,
		probe:    video.Probe,
		open: func(path string, rate int) (Sampler, error) {
			return video.Open(path, rate)
		},
		analyze: analyzeSample,
	}
}

// Defaults returns the settings applied to fields a request leaves unset.
func (s *Service) Defaults() Settings { return s.defaults }

// CreateTask probes the video, records a pending task and starts the run on
// its own goroutine. The returned snapshot is the pending state.
func (s *Service) CreateTask(ctx context.Context, videoID, videoPath string, cfg Config) (Task, error) {
	settings, err := cfg.Resolve(s.defaults)
	if err != nil {
		return Task{}, err
	}

	info, err := s.probe(videoPath)
	if err != nil {
		return Task{}, err
	}

	task := NewTask(videoID, info.FrameCount, settings)
	if err := s.tasks.Create(ctx, task); err != nil {
		return Task{}, fmt.Errorf("failed to store task: %w", err)
	}
	s.publish(task)

	s.log.Info("extraction: task created",
		zap.String("task_id", task.ID),
		zap.String("video_id", videoID),
		zap.Int("total_frames", info.FrameCount),
		zap.Int("sample_rate", settings.SampleRate),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// the run outlives the request that created it
		s.Run(context.WithoutCancel(ctx), task.ID, videoPath)
	}()

	return task, nil
}

// GetTask returns a snapshot of the task.
func (s *Service) GetTask(ctx context.Context, id string) (Task, error) {
	return s.tasks.Get(ctx, id)
}

// Wait blocks until every started run has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Run executes a pending task to a terminal state.
func (s *Service) Run(ctx context.Context, taskID, videoPath string) {
	log := s.log.With(zap.String("task_id", taskID))

	task, err := s.tasks.Update(ctx, taskID, func(t *Task) error { return t.Start() })
	if err != nil {
		log.Error("extraction: cannot start task", zap.Error(err))
		return
	}
	log = log.With(zap.String("video_id", task.VideoID))
	s.publish(task)

	metrics.ActiveTasks.Inc()
	defer metrics.ActiveTasks.Dec()
	started := time.Now()

	extracted, err := s.extract(ctx, task, videoPath, log)
	if err != nil {
		log.Error("extraction: task failed", zap.Error(err))
		failed, uerr := s.tasks.Update(ctx, taskID, func(t *Task) error { return t.Fail(err.Error()) })
		if uerr != nil {
			log.Error("extraction: cannot record failure", zap.Error(uerr))
			return
		}
		metrics.TasksTotal.WithLabelValues(string(StatusFailed)).Inc()
		s.publish(failed)
		return
	}

	done, err := s.tasks.Update(ctx, taskID, func(t *Task) error { return t.Complete(extracted) })
	if err != nil {
		log.Error("extraction: cannot record completion", zap.Error(err))
		return
	}
	metrics.TasksTotal.WithLabelValues(string(StatusCompleted)).Inc()
	metrics.TaskStageDuration.WithLabelValues("total").Observe(time.Since(started).Seconds())
	s.publish(done)

	log.Info("extraction: task completed",
		zap.Int("frames_extracted", extracted),
		zap.Duration("elapsed", time.Since(started)),
	)
}

func (s *Service) extract(ctx context.Context, task Task, videoPath string, log *zap.Logger) (int, error) {
	settings := task.Config
	if settings.ParallelThreshold == 0 {
		settings.ParallelThreshold = s.defaults.ParallelThreshold
	}

	sampler, err := s.open(videoPath, settings.SampleRate)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := sampler.Close(); err != nil {
			log.Warn("extraction: failed to release sampler", zap.Error(err))
		}
	}()

	score := func(_ context.Context, sample video.Sample) (frames.Candidate, error) {
		defer sample.Mat.Close()
		width, height := sample.Mat.Cols(), sample.Mat.Rows()

		res, img, err := s.analyze(sample)
		if err != nil {
			return frames.Candidate{}, fmt.Errorf("frame %d: %w", sample.FrameNumber, err)
		}
		metrics.FramesScoredTotal.WithLabelValues(res.Verdict.String()).Inc()
		return frames.NewCandidate(uuid.NewString(), task.VideoID, sample.FrameNumber, sample.FPS, width, height, res, img), nil
	}

	expected := settings.ExpectedSamples(task.TotalFrames)
	opts := workers.Options{
		UseParallel: settings.UseParallel,
		MaxWorkers:  settings.MaxWorkers,
		Threshold:   settings.ParallelThreshold,
		Logger:      log,
		Discard: func(item any) {
			if sample, ok := item.(video.Sample); ok {
				sample.Mat.Close()
			}
		},
	}

	stage := time.Now()
	scored, err := workers.Run[video.Sample, frames.Candidate](ctx, sampler.Next, expected, score, opts)
	if err != nil {
		return 0, err
	}
	metrics.TaskStageDuration.WithLabelValues("score").Observe(time.Since(stage).Seconds())

	ranked := frames.Rank(scored, settings.MinQualityScore, settings.MaxFrames)
	log.Info("extraction: frames ranked",
		zap.Int("sampled", len(scored)),
		zap.Int("selected", len(ranked)),
		zap.Bool("parallel", opts.Parallel(expected)),
	)

	stage = time.Now()
	thumb := media.ImageProcessingOptions{
		MaxWidth:  settings.ThumbnailSize[0],
		MaxHeight: settings.ThumbnailSize[1],
		Quality:   settings.ThumbnailQuality,
	}
	saved, err := s.frames.SaveFrames(ctx, task.VideoID, ranked, thumb)
	if err != nil {
		return 0, err
	}
	if err := s.frames.ReplaceFrames(task.VideoID, saved); err != nil {
		return 0, err
	}
	metrics.TaskStageDuration.WithLabelValues("store").Observe(time.Since(stage).Seconds())
	metrics.FramesExtractedTotal.Add(float64(len(saved)))

	return len(saved), nil
}

// RecoverInterrupted fails tasks left pending or processing by a previous
// process, since their runs no longer exist.
func (s *Service) RecoverInterrupted(ctx context.Context) (int, error) {
	list, err := s.tasks.List(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, t := range list {
		if t.Status.Terminal() {
			continue
		}
		_, err := s.tasks.Update(ctx, t.ID, func(t *Task) error { return t.Fail("interrupted by service restart") })
		if err != nil && !errors.Is(err, ErrInvalidTransition) {
			return count, err
		}
		count++
	}
	if count > 0 {
		s.log.Warn("extraction: marked interrupted tasks failed", zap.Int("count", count))
	}
	return count, nil
}

func (s *Service) publish(t Task) {
	s.events.Broadcast(realtime.Event{
		Type:    realtime.EventTaskStatus,
		TaskID:  t.ID,
		VideoID: t.VideoID,
		Status:  string(t.Status),
		Error:   t.Error,
		Extra: map[string]interface{}{
			"total_frames":     t.TotalFrames,
			"frames_processed": t.FramesProcessed,
			"frames_extracted": t.FramesExtracted,
		},
		Timestamp: t.UpdatedAt.Unix(),
	})
}

// analyzeSample scores the frame and, when accepted, converts it to an
// image for persistence.
func analyzeSample(sample video.Sample) (quality.Result, image.Image, error) {
	res, err := quality.Score(sample.Mat)
	if err != nil {
		return quality.Result{}, nil, err
	}
	if !res.Accepted() {
		return res, nil, nil
	}
	img, err := sample.Mat.ToImage()
	if err != nil {
		return quality.Result{}, nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	return res, img, nil
}
