package frame

import "errors"

// Codec errors are per-frame and not fatal: callers drop the offending
// frame, resync the stream by one byte, and continue decoding from there.
var (
	ErrBadHeader   = errors.New("frame: bad magic, version, or flags")
	ErrTruncated   = errors.New("frame: truncated, need more bytes")
	ErrDeserialize = errors.New("frame: deserialize failed")
	ErrSerialize   = errors.New("frame: serialize failed")
	ErrCompress    = errors.New("frame: compress failed")
	ErrDecompress  = errors.New("frame: decompress failed")
)
