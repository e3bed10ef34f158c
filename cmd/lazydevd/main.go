// Command lazydevd is the lazydev daemon: the long-running core process
// that supervises dev-server children and proxies requests to them by
// subdomain.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lazydevhq/lazydev/internal/config"
	"github.com/lazydevhq/lazydev/internal/daemon"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config.yaml (default: "+config.DefaultPath()+")")
	flag.Parse()

	d, err := daemon.New(daemon.Config{ConfigPath: *configPath})
	if err != nil {
		log.Printf("lazydevd: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Start(ctx); err != nil {
		log.Printf("lazydevd: %v", err)
		return 1
	}
	log.Printf("lazydevd: listening")

	<-ctx.Done()
	log.Printf("lazydevd: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), daemon.ShutdownTimeout(d.LiveChildren()))
	defer cancel()
	if err := d.Stop(shutdownCtx); err != nil {
		log.Printf("lazydevd: shutdown: %v", err)
		return 1
	}

	return 0
}
