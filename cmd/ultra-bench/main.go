// Command ultra-bench drives concurrent getAccountInfo/getSlot load against
// an ultra-aggregator's QUIC edge and reports throughput and latency.
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/launix-de/ultra-geyser-pipeline/quicedge"
	"github.com/launix-de/ultra-geyser-pipeline/rpc"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8900", "ultra-aggregator QUIC address")
	pubkey := flag.String("pubkey", "", "base58 pubkey to query with getAccountInfo; empty means getSlot")
	workers := flag.Int("workers", 8, "concurrent requesters")
	duration := flag.Duration("duration", 10*time.Second, "how long to run")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	tlsConf := &tls.Config{InsecureSkipVerify: true}
	client, err := quicedge.Dial(ctx, *addr, tlsConf, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer client.Close()

	body, err := requestBody(*pubkey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build request: %v\n", err)
		os.Exit(1)
	}

	var ok, failed atomic.Uint64
	var totalLatencyNs atomic.Int64

	var wg sync.WaitGroup
	wg.Add(*workers)
	for i := 0; i < *workers; i++ {
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				start := time.Now()
				_, err := client.Call(ctx, body)
				if err != nil {
					failed.Add(1)
					continue
				}
				ok.Add(1)
				totalLatencyNs.Add(int64(time.Since(start)))
			}
		}()
	}
	wg.Wait()

	total := ok.Load()
	elapsed := duration.String()
	var avgLatency time.Duration
	if total > 0 {
		avgLatency = time.Duration(totalLatencyNs.Load() / int64(total))
	}
	fmt.Printf("duration=%s ok=%d failed=%d avg_latency=%s rps=%.1f\n",
		elapsed, total, failed.Load(), avgLatency, float64(total)/duration.Seconds())
}

func requestBody(pubkey string) ([]byte, error) {
	req := rpc.Request{JSONRPC: "2.0", ID: json.RawMessage("1")}
	if pubkey == "" {
		req.Method = "getSlot"
	} else {
		req.Method = "getAccountInfo"
		params, err := json.Marshal(struct {
			Pubkey string `json:"pubkey"`
		}{Pubkey: pubkey})
		if err != nil {
			return nil, err
		}
		req.Params = params
	}
	return json.Marshal(req)
}
