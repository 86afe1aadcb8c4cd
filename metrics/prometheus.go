package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipcraft_tasks_total",
		Help: "Extraction tasks that reached a terminal state, by status",
	}, []string{"status"})

	TaskStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clipcraft_task_stage_duration_seconds",
		Help:    "Duration of extraction pipeline stages",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesScoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipcraft_frames_scored_total",
		Help: "Sampled frames scored, by verdict",
	}, []string{"verdict"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipcraft_frames_extracted_total",
		Help: "Frames persisted across all tasks",
	})

	ActiveTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clipcraft_active_tasks",
		Help: "Extraction tasks currently processing",
	})
)
