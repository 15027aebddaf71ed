// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.
package evmdb

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports the activity of a database to Prometheus. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	reads          *prometheus.CounterVec
	slotUpdates    *prometheus.CounterVec
	commits        prometheus.Counter
	commitFailures prometheus.Counter
	batchSize      prometheus.Histogram
}

// NewMetrics creates the metrics of a database and registers them with the
// given registerer. Metrics already registered by another database are
// shared.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	res := &Metrics{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evmdb",
			Name:      "storage_reads_total",
			Help:      "Number of storage reads by cache outcome.",
		}, []string{"cache"}),
		slotUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evmdb",
			Name:      "slot_updates_total",
			Help:      "Number of committed storage slot updates by kind.",
		}, []string{"kind"}),
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evmdb",
			Name:      "commits_total",
			Help:      "Number of applied commits.",
		}),
		commitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evmdb",
			Name:      "commit_failures_total",
			Help:      "Number of failed commits.",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "evmdb",
			Name:      "commit_batch_operations",
			Help:      "Number of operations in the batch of a commit.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	if registerer == nil {
		return res, nil
	}
	var err error
	res.reads, err = register(registerer, res.reads)
	if err != nil {
		return nil, err
	}
	res.slotUpdates, err = register(registerer, res.slotUpdates)
	if err != nil {
		return nil, err
	}
	res.commits, err = register(registerer, res.commits)
	if err != nil {
		return nil, err
	}
	res.commitFailures, err = register(registerer, res.commitFailures)
	if err != nil {
		return nil, err
	}
	res.batchSize, err = register(registerer, res.batchSize)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) (C, error) {
	err := registerer.Register(collector)
	if err == nil {
		return collector, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return collector, err
}

func (m *Metrics) observeRead(warm bool) {
	if m == nil {
		return
	}
	if warm {
		m.reads.WithLabelValues("warm").Inc()
	} else {
		m.reads.WithLabelValues("cold").Inc()
	}
}

func (m *Metrics) observeCommit(counts slotCounts, operations int) {
	if m == nil {
		return
	}
	m.commits.Inc()
	m.batchSize.Observe(float64(operations))
	m.slotUpdates.WithLabelValues("set").Add(float64(counts.set))
	m.slotUpdates.WithLabelValues("reset").Add(float64(counts.reset))
	m.slotUpdates.WithLabelValues("release").Add(float64(counts.release))
	m.slotUpdates.WithLabelValues("clean").Add(float64(counts.clean))
}

func (m *Metrics) observeCommitFailure() {
	if m == nil {
		return
	}
	m.commitFailures.Inc()
}
