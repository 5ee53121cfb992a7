package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Review loop metrics, exposed on the admin server's /metrics endpoint.
var (
	ReviewsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "review_users_processed_total",
		Help: "Users processed by the review pipeline, by outcome.",
	}, []string{"outcome"})

	PhotosRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "review_photos_rejected_total",
		Help: "Photos rejected by the review pipeline.",
	})

	PhotosApproved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "review_photos_approved_total",
		Help: "Photos approved by the review pipeline.",
	})

	VendorErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "review_vendor_errors_total",
		Help: "Moderation vendor call failures, by endpoint.",
	}, []string{"endpoint"})

	ReviewDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "review_user_duration_seconds",
		Help:    "Wall time spent reviewing one user.",
		Buckets: prometheus.DefBuckets,
	})
)

// Outcome labels for ReviewsProcessed.
const (
	OutcomeApproved  = "approved"
	OutcomeRejected  = "rejected"
	OutcomeSuspended = "suspended"
	OutcomeFlagged   = "flagged"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)
