package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestChannelCollectorExportsSnapshot(t *testing.T) {
	collector := NewChannelCollector(map[string]StatsFunc{
		"ticks": func() Snapshot {
			return Snapshot{MsgCount: 42, DropCount: 3, NumSlots: 64, SlotSize: 4096, Head: 42}
		},
	})

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(collector))

	out, err := testutil.GatherAndCount(registry)
	require.NoError(t, err)
	require.Equal(t, 5, out)

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range metricFamilies {
		if strings.HasSuffix(mf.GetName(), "shmcomm_msg_count_total") {
			found = true
			require.Equal(t, float64(42), mf.Metric[0].GetCounter().GetValue())
		}
	}
	require.True(t, found)
}
