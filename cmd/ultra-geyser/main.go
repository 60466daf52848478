// Command ultra-geyser runs the producer/writer side of the pipeline: the
// process a validator's Geyser plugin loads to turn account/transaction/
// block/slot callbacks into framed, batched writes on a Unix socket.
//
// In production geyserhost.Host is embedded directly by the plugin's
// cgo shim rather than driven from a standalone main; this binary exists to
// exercise the writer sessions and affinity pinning against a real
// socket_path end to end, the way the teacher's own server binaries double
// as both library entrypoint and manual test harness.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/launix-de/ultra-geyser-pipeline/config"
	"github.com/launix-de/ultra-geyser-pipeline/geyserhost"
	"github.com/launix-de/ultra-geyser-pipeline/internal/logging"
)

func main() {
	configPath := flag.String("config", "ultra-geyser.json", "path to the pipeline JSON config")
	flag.Parse()

	log := logging.New("ultra-geyser")

	raw, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("load config %s: %v", *configPath, err)
		os.Exit(1)
	}
	cfg, err := raw.Validate()
	if err != nil {
		log.Errorf("invalid config: %v", err)
		os.Exit(1)
	}

	host := geyserhost.New(cfg)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Infof("shutdown signal received, draining writer sessions")
		host.Shutdown()
	}()

	log.Infof("ultra-geyser writer host started, socket=%s writers=%d", cfg.SocketPath, cfg.WriterThreads)
	host.Run()
	log.Infof("ultra-geyser writer host stopped")
}
