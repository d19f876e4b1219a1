// Command shmcomm-tool is an administrative cleanup utility: list
// library-prefixed segments, force-unlink one by name, or print its
// header snapshot.
package main

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aleph-ipc/shmcomm/segment"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: shmcomm-tool <list|force-unlink|stats> [name]")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "list":
		names, err := segment.List()
		if err != nil {
			log.Fatalf("shmcomm-tool: %v", err)
		}
		for _, n := range names {
			fmt.Println(n)
		}

	case "force-unlink":
		if len(os.Args) < 3 {
			usage()
		}
		if segment.ForceUnlink(os.Args[2]) {
			fmt.Printf("unlinked %s\n", os.Args[2])
		} else {
			fmt.Printf("%s: no such segment\n", os.Args[2])
		}

	case "stats":
		if len(os.Args) < 3 {
			usage()
		}
		h, err := segment.Attach(os.Args[2], 2*time.Second)
		if err != nil {
			log.Fatalf("shmcomm-tool: %v", err)
		}
		defer h.Close()
		hdr := h.Header()
		fmt.Printf("name=%s head=%d tail=%d msg_count=%d drop_count=%d num_slots=%d slot_size=%d\n",
			os.Args[2], hdr.Head(), hdr.Tail(), hdr.MsgCount(), hdr.DropCount(), hdr.NumSlots(), hdr.SlotSize())

	default:
		usage()
	}
}
