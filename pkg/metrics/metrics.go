// Package metrics exposes the assistant's Prometheus collectors and a
// per-turn latency collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Turns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jarvis_turns_total",
			Help: "Total number of processed user turns",
		},
		[]string{"route", "outcome"},
	)

	DroppedTranscripts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jarvis_dropped_transcripts_total",
			Help: "Final transcripts dropped while a turn was processing",
		},
	)

	DialogueRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jarvis_dialogue_requests_total",
			Help: "Dialogue backend attempts by outcome",
		},
		[]string{"outcome"},
	)

	KeyRotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jarvis_dialogue_key_rotations_total",
			Help: "Number of times the dialogue key pool advanced",
		},
	)

	DialogueLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jarvis_dialogue_latency_seconds",
			Help:    "Latency of a dialogue send including key rotation retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	ToolInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jarvis_tool_invocations_total",
			Help: "Local tool invocations by tag and outcome",
		},
		[]string{"tag", "outcome"},
	)

	SpeechQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jarvis_speech_queue_depth",
			Help: "Utterances waiting for the output channel",
		},
	)

	PlaybackFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jarvis_playback_failures_total",
			Help: "Synthesis or playback failures",
		},
		[]string{"stage"},
	)

	RecognitionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jarvis_recognition_errors_total",
			Help: "Speech recognition errors by code",
		},
		[]string{"code"},
	)

	ConnectedDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jarvis_connected_devices",
			Help: "Number of connected recognition/playback devices",
		},
	)
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
