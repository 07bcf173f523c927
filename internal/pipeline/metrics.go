package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petalscan_pages_processed_total",
		Help: "Pages extracted, by text source.",
	}, []string{"source"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "petalscan_stage_duration_seconds",
		Help:    "Time spent per pipeline stage and page.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"stage"})

	itemsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "petalscan_items_extracted_total",
		Help: "Line items extracted from all pages.",
	})

	diagnosticsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petalscan_diagnostics_total",
		Help: "Extraction diagnostics, by code.",
	}, []string{"code"})

	documentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petalscan_documents_total",
		Help: "Documents processed, by kind and outcome.",
	}, []string{"kind", "status"})
)

const (
	stageRender    = "render"
	stageRecognize = "recognize"
	stageTextLayer = "text_layer"
	stageExtract   = "extract"
)
