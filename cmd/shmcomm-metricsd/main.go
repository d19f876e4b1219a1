// Command shmcomm-metricsd polls one or more broadcast/work-queue
// channels described in a TOML manifest and serves their stats on
// /metrics, the way adred-codev-ws_poc/go-server serves connection/queue
// metrics for Prometheus scraping.
package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/aleph-ipc/shmcomm/broadcast"
	"github.com/aleph-ipc/shmcomm/config"
	"github.com/aleph-ipc/shmcomm/metrics"
	"github.com/aleph-ipc/shmcomm/workqueue"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "channels.toml", "TOML channel manifest")
	addr := flag.String("addr", ":9108", "listen address for /metrics")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("shmcomm-metricsd: %v", err)
	}

	pollers := map[string]metrics.StatsFunc{}
	for name, ch := range cfg.Channels {
		name, ch := name, ch
		connectTimeout, err := ch.ConnectTimeout()
		if err != nil {
			log.Fatalf("shmcomm-metricsd: %s: %v", name, err)
		}

		switch ch.Pattern {
		case "broadcast":
			sub, err := broadcast.NewSubscriber(name, broadcast.SubscriberOptions{TimeoutConnect: connectTimeout})
			if err != nil {
				log.Fatalf("shmcomm-metricsd: attach %s: %v", name, err)
			}
			pollers[name] = func() metrics.Snapshot {
				s := sub.SegmentStats()
				return metrics.Snapshot{MsgCount: s.MsgCount, DropCount: s.DropCount, NumSlots: s.NumSlots, SlotSize: s.SlotSize, Head: s.Head}
			}

		case "workqueue":
			puller, err := workqueue.NewPuller(name, workqueue.PullerOptions{TimeoutConnect: connectTimeout})
			if err != nil {
				log.Fatalf("shmcomm-metricsd: attach %s: %v", name, err)
			}
			pollers[name] = func() metrics.Snapshot {
				s := puller.SegmentStats()
				return metrics.Snapshot{MsgCount: s.MsgCount, DropCount: s.DropCount, NumSlots: s.NumSlots, SlotSize: s.SlotSize, Head: s.Head}
			}

		default:
			log.Warnf("shmcomm-metricsd: %s: unknown pattern %q, skipping", name, ch.Pattern)
		}
	}

	collector := metrics.NewChannelCollector(pollers)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)

	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	log.Printf("shmcomm-metricsd: serving %d channels on %s/metrics", len(pollers), *addr)
	srv := &http.Server{Addr: *addr, ReadHeaderTimeout: 5 * time.Second}
	log.Fatal(srv.ListenAndServe())
}
