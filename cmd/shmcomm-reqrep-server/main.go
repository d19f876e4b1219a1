// Command shmcomm-reqrep-server runs a demo Replier that echoes back
// every request it receives, uppercased.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/aleph-ipc/shmcomm/reqrep"
)

func main() {
	_ = godotenv.Load()

	name := flag.String("name", "svc", "request-reply channel name")
	flag.Parse()

	replier, err := reqrep.NewReplier(*name, reqrep.Options{})
	if err != nil {
		log.Fatalf("shmcomm-reqrep-server: %v", err)
	}
	defer replier.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("shmcomm-reqrep-server: serving %q", *name)
	for {
		select {
		case <-ctx.Done():
			log.Printf("shmcomm-reqrep-server: stopped")
			return
		default:
			var req string
			ok, err := replier.Recv(200*time.Millisecond, &req)
			if err != nil {
				log.Printf("shmcomm-reqrep-server: decode error: %v", err)
				continue
			}
			if !ok {
				continue
			}
			if err := replier.Send(strings.ToUpper(req)); err != nil {
				log.Printf("shmcomm-reqrep-server: send failed: %v", err)
			}
		}
	}
}
