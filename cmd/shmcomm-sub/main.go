// Command shmcomm-sub is a demo broadcast subscriber: it attaches to a
// named channel and logs every message it receives until interrupted.
package main

import (
	"context"
	"flag"
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
	timeoutConnect := flag.Duration("timeout-connect", 5*time.Second, "attach timeout")
	flag.Parse()

	sub, err := broadcast.NewSubscriber(*channel, broadcast.SubscriberOptions{TimeoutConnect: *timeoutConnect})
	if err != nil {
		log.Fatalf("shmcomm-sub: %v", err)
	}
	defer sub.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("shmcomm-sub: attached to %q", *channel)
	for {
		select {
		case <-ctx.Done():
			stats := sub.Stats()
			log.Printf("shmcomm-sub: stopped (lapped=%d)", stats.LappedCount)
			return
		default:
			var msg string
			ok, err := sub.Recv(200*time.Millisecond, &msg)
			if err != nil {
				log.Printf("shmcomm-sub: decode error: %v", err)
				continue
			}
			if !ok {
				continue
			}
			log.Printf("shmcomm-sub: recv %q", msg)
		}
	}
}
