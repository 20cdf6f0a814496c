// Binary chrubuntu installs Ubuntu on a Chrome OS device in developer mode,
// either next to Chrome OS on the internal disk or onto an external disk.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	// fallback CA certificates for https mirrors
	_ "github.com/breml/rootcerts"

	"github.com/chrubuntu/chrubuntu/chrubuntu"
	"github.com/chrubuntu/chrubuntu/internal/logging"
)

func main() {
	logging.SetUp(time.Now())
	log.SetPrefix("[chrubuntu] ")

	ctx, canc := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer canc()
	if err := (chrubuntu.Context{Args: os.Args[1:]}).Execute(ctx); err != nil {
		log.Fatal(err)
	}
}
