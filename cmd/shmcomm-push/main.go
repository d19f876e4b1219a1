// Command shmcomm-push enqueues a batch of jobs onto a named work-queue
// channel.
package main

import (
	"flag"
	"fmt"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/aleph-ipc/shmcomm/workqueue"
)

func main() {
	_ = godotenv.Load()

	name := flag.String("name", "jobs", "work-queue channel name")
	count := flag.Int("count", 10, "number of jobs to push")
	flag.Parse()

	pusher, err := workqueue.NewPusher(*name, workqueue.Options{})
	if err != nil {
		log.Fatalf("shmcomm-push: %v", err)
	}
	defer pusher.Close()

	for i := 0; i < *count; i++ {
		job := fmt.Sprintf("job-%d", i)
		if err := pusher.Send(job); err != nil {
			log.Fatalf("shmcomm-push: send %q: %v", job, err)
		}
	}
	log.Printf("shmcomm-push: pushed %d jobs onto %q", *count, *name)
}
