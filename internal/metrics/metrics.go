package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kickflip_submissions_total",
		Help: "Total number of submissions finished, by terminal state",
	}, []string{"state"})

	SubmissionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kickflip_submission_stage_duration_seconds",
		Help:    "Duration of each submission stage",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 180},
	}, []string{"stage"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kickflip_frames_extracted_total",
		Help: "Total number of frames captured across all submissions",
	})

	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kickflip_upstream_requests_total",
		Help: "Total number of vision API requests, by outcome",
	}, []string{"outcome"})

	UpstreamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kickflip_upstream_request_duration_seconds",
		Help:    "Duration of vision API requests",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	ActiveSubmissions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kickflip_active_submissions",
		Help: "Number of submissions currently in flight",
	})

	TempFilesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kickflip_temp_files_swept_total",
		Help: "Total number of orphaned temp videos removed by the janitor",
	})
)
