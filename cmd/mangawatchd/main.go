// Command mangawatchd runs the mangawatch daemon in the foreground, for
// service managers that supervise the process themselves.
package main

import (
	"context"
	"errors"
	"log"
)

func main() {
	if err := newDaemonCommand().Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Fatalf("mangawatchd: %v", err)
	}
}
