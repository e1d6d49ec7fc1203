// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package metrics exposes shake engine counters two ways at once: a
// process-local github.com/rcrowley/go-metrics registry for in-process
// inspection/logging, and a github.com/prometheus/client_golang
// collector that mirrors the same counters for scraping.
package metrics

import (
	"math"
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	gometrics "github.com/rcrowley/go-metrics"
)

// Registry is the process-wide go-metrics registry the engine's
// collaborators register into.
var Registry = gometrics.NewRegistry()

var (
	shakesCreated   = gometrics.NewRegisteredCounter("shake/created", Registry)
	shakesReleased  = gometrics.NewRegisteredCounter("shake/released", Registry)
	shakesRefunded  = gometrics.NewRegisteredCounter("shake/refunded", Registry)
	shakesDisputed  = gometrics.NewRegisteredCounter("shake/disputed", Registry)
	feesCollected   = gometrics.NewRegisteredCounter("shake/fees_collected", Registry)
	ledgerPullFails = gometrics.NewRegisteredCounter("shake/ledger_pull_failures", Registry)
	ledgerPushFails = gometrics.NewRegisteredCounter("shake/ledger_push_failures", Registry)
	childDepth      = gometrics.NewRegisteredHistogram("shake/child_depth", Registry, gometrics.NewUniformSample(1028))
)

// promCounters mirrors the go-metrics counters above as prometheus
// collectors so a host can register them with an http.Handler via
// promhttp without the escrow package importing prometheus directly.
var promCounters = struct {
	created   prometheus.Counter
	released  prometheus.Counter
	refunded  prometheus.Counter
	disputed  prometheus.Counter
	fees      prometheus.Counter
	pullFails prometheus.Counter
	pushFails prometheus.Counter
	depth     prometheus.Histogram
}{
	created:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "shake", Name: "created_total", Help: "Shakes created."}),
	released:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "shake", Name: "released_total", Help: "Shakes released."}),
	refunded:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "shake", Name: "refunded_total", Help: "Shakes refunded."}),
	disputed:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "shake", Name: "disputed_total", Help: "Shakes disputed."}),
	fees:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "shake", Name: "fees_collected_total", Help: "Protocol fee collected, in the ledger's base unit."}),
	pullFails: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "shake", Name: "ledger_pull_failures_total", Help: "Failed ledger Pull calls."}),
	pushFails: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "shake", Name: "ledger_push_failures_total", Help: "Failed ledger Push calls."}),
	depth:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "shake", Name: "child_depth", Help: "Depth of a shake at settlement time.", Buckets: prometheus.LinearBuckets(0, 1, 10)}),
}

// Collectors returns every prometheus.Collector this package owns, for
// a host to pass to prometheus.MustRegister.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		promCounters.created,
		promCounters.released,
		promCounters.refunded,
		promCounters.disputed,
		promCounters.fees,
		promCounters.pullFails,
		promCounters.pushFails,
		promCounters.depth,
	}
}

func IncShakesCreated() {
	shakesCreated.Inc(1)
	promCounters.created.Inc()
}

func IncShakesReleased() {
	shakesReleased.Inc(1)
	promCounters.released.Inc()
}

func IncShakesRefunded() {
	shakesRefunded.Inc(1)
	promCounters.refunded.Inc()
}

func IncShakesDisputed() {
	shakesDisputed.Inc(1)
	promCounters.disputed.Inc()
}

var maxInt64Big = big.NewInt(math.MaxInt64)

// AddFeeCollected records a settled fee. Fees are tracked as int64 units
// in both registries, since both backing histogram/counter
// implementations are int64-based; a *big.Int fee beyond int64 range is
// clamped to math.MaxInt64 rather than passed to big.Int.Int64, whose
// result is undefined once the value overflows.
func AddFeeCollected(fee *big.Int) {
	v := fee.Int64()
	if fee.Cmp(maxInt64Big) > 0 {
		v = math.MaxInt64
	}
	feesCollected.Inc(v)
	promCounters.fees.Add(float64(v))
}

func IncLedgerPullFailure() {
	ledgerPullFails.Inc(1)
	promCounters.pullFails.Inc()
}

func IncLedgerPushFailure() {
	ledgerPushFails.Inc(1)
	promCounters.pushFails.Inc()
}

func ObserveSettlementDepth(depth int) {
	childDepth.Update(int64(depth))
	promCounters.depth.Observe(float64(depth))
}
