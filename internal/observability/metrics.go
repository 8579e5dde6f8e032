// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the authgate-specific collectors. It satisfies
// auth.Recorder.
type Metrics struct {
	AuthAttempts         *prometheus.CounterVec
	CredentialMigrations *prometheus.CounterVec
	StoreBackend         *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_auth_attempts_total",
				Help: "Authentication attempts by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		CredentialMigrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_credential_migrations_total",
				Help: "Legacy plaintext credentials replaced by hashes, by result",
			},
			[]string{"result"},
		),
		StoreBackend: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "authgate_store_backend",
				Help: "Set to 1 for the credential store backend in use",
			},
			[]string{"backend"},
		),
	}

	reg.MustRegister(m.AuthAttempts, m.CredentialMigrations, m.StoreBackend)
	return m
}

// RecordAttempt counts one login or signup attempt.
func (m *Metrics) RecordAttempt(operation, outcome string) {
	m.AuthAttempts.WithLabelValues(operation, outcome).Inc()
}

// RecordMigration counts one credential migration.
func (m *Metrics) RecordMigration(result string) {
	m.CredentialMigrations.WithLabelValues(result).Inc()
}

// SetStoreBackend marks backend as the active store.
func (m *Metrics) SetStoreBackend(backend string) {
	m.StoreBackend.Reset()
	m.StoreBackend.WithLabelValues(backend).Set(1)
}
