// Command shmcomm-pull drains jobs from a named work-queue channel until
// it is interrupted; an empty queue is simply polled again.
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

	"github.com/aleph-ipc/shmcomm/workqueue"
)

func main() {
	_ = godotenv.Load()

	name := flag.String("name", "jobs", "work-queue channel name")
	flag.Parse()

	puller, err := workqueue.NewPuller(*name, workqueue.PullerOptions{TimeoutConnect: 5 * time.Second})
	if err != nil {
		log.Fatalf("shmcomm-pull: %v", err)
	}
	defer puller.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var drained int
	for {
		select {
		case <-ctx.Done():
			log.Printf("shmcomm-pull: stopped after %d jobs", drained)
			return
		default:
			var job string
			ok, err := puller.Recv(200*time.Millisecond, &job)
			if err != nil {
				log.Printf("shmcomm-pull: decode error: %v", err)
				continue
			}
			if !ok {
				continue
			}
			drained++
			log.Printf("shmcomm-pull: got %q", job)
		}
	}
}
