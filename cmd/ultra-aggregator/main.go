// Command ultra-aggregator runs the consumer side of the pipeline: it
// accepts writer-session connections on socket_path, decodes their framed
// record stream into the account cache, and exposes the cache's external
// view over both plain HTTP JSON-RPC and a QUIC edge.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/launix-de/ultra-geyser-pipeline/cache"
	"github.com/launix-de/ultra-geyser-pipeline/config"
	"github.com/launix-de/ultra-geyser-pipeline/ingest"
	"github.com/launix-de/ultra-geyser-pipeline/internal/logging"
	"github.com/launix-de/ultra-geyser-pipeline/metrics"
	"github.com/launix-de/ultra-geyser-pipeline/quicedge"
	"github.com/launix-de/ultra-geyser-pipeline/rpc"
)

func main() {
	configPath := flag.String("config", "ultra-geyser.json", "path to the pipeline JSON config (shared with ultra-geyser, for socket_path)")
	cacheShards := flag.Int("cache-shards", 16, "number of account cache shards")
	httpAddr := flag.String("http-addr", ":8899", "address to serve JSON-RPC over HTTP on")
	quicAddr := flag.String("quic-addr", ":8900", "address to serve JSON-RPC over QUIC on")
	flag.Parse()

	log := logging.New("ultra-aggregator")

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

	c := cache.New(*cacheShards)
	reg := metrics.NewRegistry()
	batcher := ingest.NewBatcher(c, reg)
	router := rpc.NewRouter(c)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := listenUnix(cfg.SocketPath)
	if err != nil {
		log.Errorf("listen on %s: %v", cfg.SocketPath, err)
		os.Exit(1)
	}

	tlsConf, err := quicedge.GenerateSelfSignedServerConfig()
	if err != nil {
		log.Errorf("generate QUIC TLS config: %v", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return acceptWriterConns(gctx, ln, c, batcher, log)
	})

	httpSrv := &http.Server{Addr: *httpAddr, Handler: router.HTTPHandler()}
	g.Go(func() error {
		log.Infof("json-rpc http listening on %s", *httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return httpSrv.Close()
	})

	g.Go(func() error {
		log.Infof("json-rpc quic listening on %s", *quicAddr)
		return quicedge.Serve(gctx, quicedge.ServerConfig{Addr: *quicAddr, TLSConfig: tlsConf}, router)
	})

	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	log.Infof("ultra-aggregator started, socket=%s cache_shards=%d", cfg.SocketPath, *cacheShards)
	if err := g.Wait(); err != nil && gctx.Err() == nil {
		log.Errorf("aggregator stopped with error: %v", err)
		os.Exit(1)
	}
	log.Infof("ultra-aggregator stopped")
}

// listenUnix removes any stale socket file left behind by a prior, unclean
// shutdown before binding — the teacher's listener setup tolerates the
// same "address in use from a dead process" condition on its TCP listeners
// by retrying bind once.
func listenUnix(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return net.Listen("unix", path)
}

// acceptWriterConns accepts writer-session connections until ctx is
// cancelled, decoding each connection's frame stream into the cache on its
// own goroutine.
func acceptWriterConns(ctx context.Context, ln net.Listener, c *cache.Cache, batcher *ingest.Batcher, log *logging.Logger) error {
	connLog := logging.New("ultra-aggregator.conn")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go func() {
			defer conn.Close()
			if err := ingest.ApplyFramesFromWriter(conn, c, batcher); err != nil {
				connLog.Warnf("writer connection %s ended: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}
