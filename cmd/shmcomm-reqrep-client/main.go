// Command shmcomm-reqrep-client sends one request to a running
// shmcomm-reqrep-server and prints the reply.
package main

import (
	"flag"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/aleph-ipc/shmcomm/reqrep"
)

func main() {
	_ = godotenv.Load()

	name := flag.String("name", "svc", "request-reply channel name")
	message := flag.String("message", "hello", "request payload")
	timeout := flag.Duration("timeout", 2*time.Second, "reply timeout")
	flag.Parse()

	requester, err := reqrep.NewRequester(*name, reqrep.RequesterOptions{TimeoutConnect: 5 * time.Second})
	if err != nil {
		log.Fatalf("shmcomm-reqrep-client: %v", err)
	}
	defer requester.Close()

	var reply string
	if err := requester.Request(*message, *timeout, &reply); err != nil {
		log.Fatalf("shmcomm-reqrep-client: %v", err)
	}
	log.Printf("shmcomm-reqrep-client: %q -> %q", *message, reply)
}
