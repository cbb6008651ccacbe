package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the slug allocation and redirect paths. Registered on the
// default registry and exposed through GET /metrics.
var (
	// LinksCreatedTotal counts successfully persisted short links.
	LinksCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shortener",
		Name:      "links_created_total",
		Help:      "Short links created, partitioned by slug origin.",
	}, []string{"origin"}) // "generated" or "custom_alias"

	// RedirectsTotal counts successfully resolved redirects.
	RedirectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shortener",
		Name:      "redirects_total",
		Help:      "Redirects resolved against the link store.",
	})

	// SlugCollisionsTotal counts primary-strategy candidates that were
	// already taken and forced a fallback attempt.
	SlugCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shortener",
		Name:      "slug_collisions_total",
		Help:      "Generated slug candidates that collided with an existing link.",
	})

	// RareCollisionsTotal counts double collisions, where both generation
	// attempts hit existing rows. Any non-zero rate is worth alerting on:
	// it means the 62^6 keyspace assumption no longer holds.
	RareCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shortener",
		Name:      "slug_rare_collisions_total",
		Help:      "Slug generation requests where both attempts collided.",
	})
)
