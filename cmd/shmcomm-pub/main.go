// Command shmcomm-pub is a demo broadcast publisher: it sends an
// incrementing counter payload on a named channel at a fixed rate
// (godotenv + env-driven config, signal handling, graceful shutdown).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/aleph-ipc/shmcomm/broadcast"
)

func main() {
	_ = godotenv.Load()

	channel := flag.String("channel", "ticks", "broadcast channel name")
	interval := flag.Duration("interval", 100*time.Millisecond, "send interval")
	numSlots := flag.Uint64("num-slots", broadcast.DefaultNumSlots, "ring depth")
	slotSize := flag.Uint64("slot-size", broadcast.DefaultSlotSize, "bytes per slot")
	flag.Parse()

	if lvl := os.Getenv("SHMCOMM_LOG_LEVEL"); lvl != "" {
		if parsed, err := log.ParseLevel(lvl); err == nil {
			log.SetLevel(parsed)
		}
	}

	pub, err := broadcast.NewPublisher(*channel, broadcast.Options{NumSlots: *numSlots, SlotSize: *slotSize})
	if err != nil {
		log.Fatalf("shmcomm-pub: %v", err)
	}
	defer pub.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			log.Printf("shmcomm-pub: stopped after %d messages", seq)
			return
		case <-ticker.C:
			seq++
			if err := pub.Send(fmt.Sprintf("tick-%d", seq)); err != nil {
				log.Printf("shmcomm-pub: send failed: %v", err)
				continue
			}
		}
	}
}
