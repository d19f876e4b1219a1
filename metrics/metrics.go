// Package metrics exposes shmcomm channel statistics as Prometheus
// metrics, the way adred-codev-ws_poc's go-server/internal/metrics and
// src/metrics.go expose WebSocket server counters: package-level
// descriptors registered once, scraped on demand. Because shmcomm's
// Stats() snapshots are pulled from shared-memory headers rather than
// pushed from call sites, each channel is wired in as a
// prometheus.Collector that reads its segment's header at scrape time.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot mirrors a producer's stats shape (msg_count, drop_count,
// num_slots, slot_size, head); broadcast.Stats and workqueue.Stats both
// convert into it.
type Snapshot struct {
	MsgCount  uint64
	DropCount uint64
	NumSlots  uint64
	SlotSize  uint64
	Head      uint64
}

// StatsFunc polls a live channel for its current Snapshot. Producers are
// polled lazily (only on scrape), since Stats() just reads atomic header
// fields and has no side effects to batch.
type StatsFunc func() Snapshot

var (
	msgCountDesc = prometheus.NewDesc(
		"shmcomm_msg_count_total", "Total successful writes to a channel's segment.",
		[]string{"channel"}, nil)
	dropCountDesc = prometheus.NewDesc(
		"shmcomm_drop_count_total", "Total overwrites (broadcast) or blocked-drops (work-queue).",
		[]string{"channel"}, nil)
	numSlotsDesc = prometheus.NewDesc(
		"shmcomm_num_slots", "Ring depth of a channel's segment.",
		[]string{"channel"}, nil)
	slotSizeDesc = prometheus.NewDesc(
		"shmcomm_slot_size_bytes", "Slot size in bytes of a channel's segment.",
		[]string{"channel"}, nil)
	headDesc = prometheus.NewDesc(
		"shmcomm_head", "Current HEAD index of a channel's segment.",
		[]string{"channel"}, nil)
)

// ChannelCollector adapts one or more named channels into a
// prometheus.Collector, polled at scrape time the way go-server's
// internal/metrics package polls connection/queue state.
type ChannelCollector struct {
	channels map[string]StatsFunc
}

// NewChannelCollector builds a collector over the given name->poller map.
func NewChannelCollector(channels map[string]StatsFunc) *ChannelCollector {
	return &ChannelCollector{channels: channels}
}

func (c *ChannelCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- msgCountDesc
	ch <- dropCountDesc
	ch <- numSlotsDesc
	ch <- slotSizeDesc
	ch <- headDesc
}

func (c *ChannelCollector) Collect(ch chan<- prometheus.Metric) {
	for name, poll := range c.channels {
		s := poll()
		ch <- prometheus.MustNewConstMetric(msgCountDesc, prometheus.CounterValue, float64(s.MsgCount), name)
		ch <- prometheus.MustNewConstMetric(dropCountDesc, prometheus.CounterValue, float64(s.DropCount), name)
		ch <- prometheus.MustNewConstMetric(numSlotsDesc, prometheus.GaugeValue, float64(s.NumSlots), name)
		ch <- prometheus.MustNewConstMetric(slotSizeDesc, prometheus.GaugeValue, float64(s.SlotSize), name)
		ch <- prometheus.MustNewConstMetric(headDesc, prometheus.GaugeValue, float64(s.Head), name)
	}
}
