// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const registryMetricNamePrefix = "degree_registry_"

type programMetrics struct {
	instructions   *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	activeDiplomas prometheus.Gauge
}

func (p *Program) initMetrics() {
	if p.promRegistry == nil {
		return
	}
	factory := promauto.With(p.promRegistry)
	p.metrics = &programMetrics{
		instructions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: registryMetricNamePrefix + "instructions_total",
				Help: "Executed instructions, by instruction and result",
			},
			[]string{"instruction", "result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    registryMetricNamePrefix + "instruction_duration_seconds",
				Help:    "Time spent executing an instruction",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"instruction"},
		),
		activeDiplomas: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: registryMetricNamePrefix + "active_diplomas",
				Help: "Verified diplomas according to the registry counter",
			},
		),
	}
}

func (p *Program) observeInstruction(
	tag InstructionTag,
	err error,
	seconds float64,
) {
	if p.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = ErrorName(err)
	}
	p.metrics.instructions.WithLabelValues(tag.String(), result).Inc()
	p.metrics.duration.WithLabelValues(tag.String()).Observe(seconds)
}

func (p *Program) setActiveDiplomas(count uint64) {
	if p.metrics == nil {
		return
	}
	p.metrics.activeDiplomas.Set(float64(count))
}
