// Package metrics exposes prometheus counters for reply activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RepliesTotal counts completed streaming replies by outcome.
	RepliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catgpt",
		Name:      "replies_total",
		Help:      "Completed streaming replies by outcome.",
	}, []string{"outcome"})

	// EditsTotal counts live message edits issued while streaming.
	EditsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "catgpt",
		Name:      "message_edits_total",
		Help:      "Live message edits issued while streaming replies.",
	})

	// BackoffsTotal counts pacing adjustments by cause.
	BackoffsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catgpt",
		Name:      "edit_backoffs_total",
		Help:      "Pacing adjustments caused by platform edit errors.",
	}, []string{"cause"})

	// OverflowsTotal counts replies that exceeded the platform message size.
	OverflowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "catgpt",
		Name:      "reply_overflows_total",
		Help:      "Replies that exceeded the platform message size.",
	})
)
