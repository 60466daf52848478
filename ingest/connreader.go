package ingest

import (
	"errors"
	"io"

	"github.com/launix-de/ultra-geyser-pipeline/cache"
	"github.com/launix-de/ultra-geyser-pipeline/frame"
	"github.com/launix-de/ultra-geyser-pipeline/internal/logging"
)

// connReaderBufSize is the initial read chunk size; it grows to
// accommodate a single frame larger than the current buffer.
const connReaderBufSize = 64 * 1024

var connLog = logging.New("ingest.conn")

// connState tracks one writer connection's snapshot/delta gating: Account
// frames with IsStartup are the connection's snapshot (the startup account
// replay) and apply immediately, while every other update is a delta and
// is queued until EndOfStartup marks the snapshot complete, then replayed
// in receipt order — deferred-until-complete gating on this connection's
// own frame stream rather than on a separate snapshot/delta wire format.
type connState struct {
	snapshotReady bool
	pending       []AccountUpdate
}

// ApplyFramesFromWriter reads a continuous stream of encoded frames (as
// produced by a writer.Session) from r, applying Account frames to c
// through batcher with startup/delta gating (see connState) and ignoring
// other record kinds (Tx/Block/Slot are reserved for future cache
// components; spec.md scopes only the account cache's external view). On
// a codec error it resyncs by one byte and continues, per the codec's own
// not-fatal contract, logging the drop. It returns nil when r returns
// io.EOF, and returns any other read error unchanged.
func ApplyFramesFromWriter(r io.Reader, c *cache.Cache, batcher *Batcher) error {
	buf := make([]byte, 0, connReaderBufSize)
	var scratch []byte
	chunk := make([]byte, connReaderBufSize)
	state := &connState{}

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			buf = drainFrames(buf, c, batcher, &scratch, state)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// drainFrames decodes and applies as many complete frames as buf currently
// holds, returning the unconsumed remainder (a partial frame's prefix, or
// empty).
func drainFrames(buf []byte, c *cache.Cache, batcher *Batcher, scratch *[]byte, state *connState) []byte {
	for {
		if len(buf) == 0 {
			return buf
		}
		rec, n, err := frame.Decode(buf, scratch)
		if err != nil {
			if errors.Is(err, frame.ErrTruncated) {
				return buf
			}
			connLog.Warnf("codec error, resyncing by one byte: %v", err)
			buf = buf[1:]
			continue
		}
		applyRecord(rec, batcher, state)
		buf = buf[n:]
	}
}

func applyRecord(rec frame.Record, batcher *Batcher, state *connState) {
	switch v := rec.(type) {
	case frame.Account:
		update := AccountUpdate{
			Slot:   v.Slot,
			Key:    v.Pubkey,
			Record: cache.NewAccountRecord(v.Slot, v.Pubkey, v.Lamports, v.Owner, v.Executable, v.RentEpoch, v.Data),
		}
		if v.IsStartup {
			batcher.PublishUpdates([]AccountUpdate{update})
			return
		}
		if !state.snapshotReady {
			state.pending = append(state.pending, update)
			return
		}
		batcher.PublishUpdates([]AccountUpdate{update})
	case frame.EndOfStartup:
		state.snapshotReady = true
		if len(state.pending) == 0 {
			return
		}
		batcher.PublishUpdates(state.pending)
		state.pending = nil
	}
}
