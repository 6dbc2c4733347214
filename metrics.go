/*
 * Copyright (c) 2025 ivfzhou
 * blob-uploader is licensed under Mulan PSL v2.
 * You can use this software according to the terms and conditions of the Mulan PSL v2.
 * You may obtain a copy of Mulan PSL v2 at:
 *          http://license.coscl.org.cn/MulanPSL2
 * THIS SOFTWARE IS PROVIDED ON AN "AS IS" BASIS, WITHOUT WARRANTIES OF ANY KIND,
 * EITHER EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO NON-INFRINGEMENT,
 * MERCHANTABILITY OR FIT FOR A PARTICULAR PURPOSE.
 * See the Mulan PSL v2 for more details.
 */

package blob

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess      = "success"
	outcomeClientError  = "client_error"
	outcomeServerError  = "server_error"
	outcomeNetworkError = "network_error"
)

// Metrics 请求执行的指标。为 nil 时不记录。
type Metrics struct {
	Attempts *prometheus.CounterVec
	Retries  *prometheus.CounterVec
	Bytes    prometheus.Counter
	Latency  *prometheus.HistogramVec
}

// NewMetrics 创建指标并注册到 reg。reg 为空时不注册。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blob",
			Subsystem: "client",
			Name:      "request_attempts_total",
			Help:      "Blob API request attempts by operation and outcome.",
		}, []string{"op", "outcome"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blob",
			Subsystem: "client",
			Name:      "request_retries_total",
			Help:      "Blob API request retries by operation.",
		}, []string{"op"}),
		Bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blob",
			Subsystem: "client",
			Name:      "uploaded_bytes_total",
			Help:      "Request payload bytes accepted by the blob API.",
		}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blob",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Blob API request attempt latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.Attempts, m.Retries, m.Bytes, m.Latency)
	}
	return m
}

func (m *Metrics) observeAttempt(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(op, outcome).Inc()
	m.Latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) observeRetry(op string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(op).Inc()
}

func (m *Metrics) addBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Bytes.Add(float64(n))
}
