// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes Prometheus metrics for the API list pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apilist_entries_total",
		Help: "Number of entries in the last generated API list",
	})

	entriesByType = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "apilist_entries_by_type",
		Help: "Entries in the last generated API list by entity type",
	}, []string{"entity_type"})

	highEntropyEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apilist_high_entropy_entries",
		Help: "Entries flagged as entropy sources in the last generated list",
	})

	updateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "apilist_update_duration_seconds",
		Help:    "Duration of complete update cycles",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apilist_updates_total",
		Help: "Update cycles by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	buildErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apilist_build_errors_total",
		Help: "Failures of the external list build target",
	})

	listChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apilist_list_changes_total",
		Help: "Member-level changes observed between generations",
	}, []string{"kind"}) // kind=added|removed|changed

	commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apilist_commits_total",
		Help: "Commit attempts in the target repository by outcome",
	}, []string{"outcome"}) // outcome=committed|noop|refused|error

	snapshotsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apilist_snapshots_stored_total",
		Help: "Snapshots written to the history store",
	})

	lastUpdateTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apilist_last_update_timestamp_seconds",
		Help: "Unix time of the last successful update",
	})
)

// RecordListStats sets the per-generation gauges.
func RecordListStats(total, highEntropy int, byType map[string]int) {
	entriesTotal.Set(float64(total))
	highEntropyEntries.Set(float64(highEntropy))
	entriesByType.Reset()
	for entityType, n := range byType {
		entriesByType.WithLabelValues(entityType).Set(float64(n))
	}
}

// RecordUpdate records one update cycle.
func RecordUpdate(duration time.Duration, err error) {
	updateDuration.Observe(duration.Seconds())
	if err != nil {
		updatesTotal.WithLabelValues("failure").Inc()
		return
	}
	updatesTotal.WithLabelValues("success").Inc()
	lastUpdateTimestamp.SetToCurrentTime()
}

// RecordBuildError counts a failed external build.
func RecordBuildError() {
	buildErrors.Inc()
}

// RecordDelta counts member-level changes between two generations.
func RecordDelta(added, removed, changed int) {
	listChanges.WithLabelValues("added").Add(float64(added))
	listChanges.WithLabelValues("removed").Add(float64(removed))
	listChanges.WithLabelValues("changed").Add(float64(changed))
}

// RecordCommit counts a commit attempt by outcome.
func RecordCommit(outcome string) {
	commitsTotal.WithLabelValues(outcome).Inc()
}

// RecordSnapshot counts a stored snapshot.
func RecordSnapshot() {
	snapshotsStored.Inc()
}
