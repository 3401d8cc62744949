package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// modelSelectionTotal counts resolved and stored global model selections.
	modelSelectionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ai_stylist_model_selection_total",
		Help: "Global model selection reads and writes by operation, model and source",
	}, []string{"operation", "model", "source"})

	sessionsSavedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ai_stylist_sessions_saved_total",
		Help: "Chat session save attempts by result",
	}, []string{"result"})

	summariesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ai_stylist_session_summaries_total",
		Help: "Chat session summaries by outcome (generated or fallback)",
	}, []string{"outcome"})

	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ai_stylist_generation_duration_seconds",
		Help:    "Text/vision generation latency by provider",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~32s
	}, []string{"provider"})
)
