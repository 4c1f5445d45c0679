// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validators

import (
	"github.com/vechain/thor-relayer/metrics"
)

var (
	metricReplayCount    = metrics.LazyLoadCounterVec("validators_replay_count", []string{"direction", "status"})
	metricReplayDuration = metrics.LazyLoadHistogramVec("validators_replay_duration_ms", []string{"direction"}, metrics.BucketReplayMs)
	metricSetHeight      = metrics.LazyLoadGauge("validators_set_height")
	metricSetSize        = metrics.LazyLoadGauge("validators_set_size")
	metricPeekCache      = metrics.LazyLoadCounterVec("validators_peek_cache_count", []string{"event"})
)

func recordReplay(dir direction, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	metricReplayCount().AddWithLabel(1, map[string]string{"direction": dir.String(), "status": status})
}
