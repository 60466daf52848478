package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

const (
	// FrameMagic identifies the wire format ("FSTR").
	FrameMagic uint32 = 0x46535452
	// FrameVersion is the only version this codec understands. A mismatch
	// is a hard error; readers must not attempt to parse it.
	FrameVersion uint16 = 1

	headerLen = 12

	flagLZ4 uint16 = 0x0001

	// compressThresholdDefault mirrors the Rust reference's throughput preset.
	compressThresholdDefault = 2048
)

// EncodeOptions controls the compression behavior of Encode/EncodeInto.
type EncodeOptions struct {
	EnableCompression bool
	CompressThreshold int
	// MaxFrameLength is not consulted by Encode, EncodeInto,
	// EncodeAccountRef or Decode; Decode accepts whatever body length the
	// frame header states.
	MaxFrameLength uint32
}

// DefaultThroughput enables LZ4 above a 2KiB threshold, trading a small
// per-frame allocation for reduced bandwidth on remote hops.
func DefaultThroughput() EncodeOptions {
	return EncodeOptions{EnableCompression: true, CompressThreshold: compressThresholdDefault}
}

// LatencyUDS disables compression entirely for low-latency local socket
// transport, where serializing directly into the output buffer (no
// intermediate payload copy) matters more than bandwidth.
func LatencyUDS() EncodeOptions {
	return EncodeOptions{EnableCompression: false}
}

// ThroughputLZ4Low enables LZ4 with an aggressive low threshold, suitable
// for a bandwidth-constrained remote hop where even small payloads are
// worth compressing.
func ThroughputLZ4Low() EncodeOptions {
	return EncodeOptions{EnableCompression: true, CompressThreshold: 512}
}

func marshalBody(rec Record) []byte {
	bw := &bodyWriter{}
	bw.putU8(uint8(rec.Kind()))
	rec.marshalBody(bw)
	return bw.buf
}

// Encode serializes rec into a single complete frame. On failure no partial
// frame is returned.
func Encode(rec Record, opts EncodeOptions) ([]byte, error) {
	var buf []byte
	if err := encodeInto(&buf, rec, opts); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodeInto serializes rec into buf, reusing its backing array when
// possible. buf is reset before writing; on success it contains exactly one
// complete frame.
func EncodeInto(rec Record, buf *[]byte, opts EncodeOptions) error {
	return encodeInto(buf, rec, opts)
}

func encodeInto(buf *[]byte, rec Record, opts EncodeOptions) error {
	*buf = (*buf)[:0]

	if !opts.EnableCompression {
		// Serialize straight into the tail of buf behind the header, then
		// patch the body length in: no intermediate payload buffer.
		writeHeader(buf, 0, 0)
		bw := &bodyWriter{buf: *buf}
		bw.putU8(uint8(rec.Kind()))
		rec.marshalBody(bw)
		*buf = bw.buf
		binary.BigEndian.PutUint32((*buf)[8:12], uint32(len(*buf)-headerLen))
		return nil
	}

	payload := marshalBody(rec)
	threshold := opts.CompressThreshold
	if threshold <= 0 {
		threshold = compressThresholdDefault
	}
	if len(payload) < threshold {
		writeHeader(buf, 0, uint32(len(payload)))
		*buf = append(*buf, payload...)
		return nil
	}

	compressed, ok, err := compressLZ4(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCompress, err)
	}
	if !ok {
		// Incompressible payload: fall back to the uncompressed frame
		// rather than storing a compressed block no smaller than the
		// original.
		writeHeader(buf, 0, uint32(len(payload)))
		*buf = append(*buf, payload...)
		return nil
	}
	writeHeader(buf, flagLZ4, uint32(len(compressed)))
	*buf = append(*buf, compressed...)
	return nil
}

// EncodeAccountRef encodes a borrowed account view into buf, avoiding a copy
// of the (potentially large) account data into an owning Record first. It
// produces a byte-identical frame to encoding the equivalent owning Account.
func EncodeAccountRef(ref AccountRef, buf *[]byte, opts EncodeOptions) error {
	return encodeInto(buf, ref, opts)
}

func writeHeader(buf *[]byte, flags uint16, length uint32) {
	var hdr [headerLen]byte
	binary.BigEndian.PutUint32(hdr[0:4], FrameMagic)
	binary.BigEndian.PutUint16(hdr[4:6], FrameVersion)
	binary.BigEndian.PutUint16(hdr[6:8], flags)
	binary.BigEndian.PutUint32(hdr[8:12], length)
	*buf = append(*buf, hdr[:]...)
}

// Decode reads one frame from src, returning the decoded Record and the
// number of bytes consumed; bytes after the frame are left untouched.
// scratch is reused as the decompression target on the compressed path.
// Variable-length byte fields of the returned Record (Account.Data) are not
// copied: they alias src on the uncompressed path and *scratch on the
// compressed path, so they change if that memory is later overwritten.
func Decode(src []byte, scratch *[]byte) (Record, int, error) {
	if len(src) < headerLen {
		return nil, 0, ErrTruncated
	}
	magic := binary.BigEndian.Uint32(src[0:4])
	version := binary.BigEndian.Uint16(src[4:6])
	flags := binary.BigEndian.Uint16(src[6:8])
	length := binary.BigEndian.Uint32(src[8:12])

	if magic != FrameMagic || version != FrameVersion {
		return nil, 0, ErrBadHeader
	}
	if flags&^flagLZ4 != 0 {
		return nil, 0, ErrBadHeader
	}

	total := headerLen + int(length)
	if len(src) < total {
		return nil, 0, ErrTruncated
	}
	body := src[headerLen:total]

	if flags&flagLZ4 == 0 {
		rec, err := decodeBody(body)
		if err != nil {
			return nil, 0, err
		}
		return rec, total, nil
	}

	decompressed, err := decompressLZ4(body, scratch)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	rec, err := decodeBody(decompressed)
	if err != nil {
		return nil, 0, err
	}
	return rec, total, nil
}

func decodeBody(body []byte) (Record, error) {
	br := &bodyReader{buf: body}
	kindByte, err := br.getU8()
	if err != nil {
		return nil, err
	}
	return unmarshalRecord(Kind(kindByte), br)
}

// compressLZ4 returns the 4-byte-size-prefixed LZ4 block for payload. ok is
// false when pierrec/lz4 reports the input as incompressible within the
// bound buffer, in which case the caller should store the frame
// uncompressed instead.
func compressLZ4(payload []byte) (out []byte, ok bool, err error) {
	if len(payload) == 0 {
		return make([]byte, 4), true, nil
	}
	bound := lz4.CompressBlockBound(len(payload))
	dst := make([]byte, 4+bound)
	binary.LittleEndian.PutUint32(dst[:4], uint32(len(payload)))

	var c lz4.Compressor
	n, err := c.CompressBlock(payload, dst[4:])
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		return nil, false, nil
	}
	return dst[:4+n], true, nil
}

func decompressLZ4(body []byte, scratch *[]byte) ([]byte, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("lz4 body too short: %d bytes", len(body))
	}
	size := binary.LittleEndian.Uint32(body[:4])
	compressed := body[4:]
	if size == 0 {
		*scratch = (*scratch)[:0]
		return *scratch, nil
	}
	if cap(*scratch) < int(size) {
		*scratch = make([]byte, size)
	} else {
		*scratch = (*scratch)[:size]
	}
	n, err := lz4.UncompressBlock(compressed, *scratch)
	if err != nil {
		return nil, err
	}
	*scratch = (*scratch)[:n]
	return *scratch, nil
}
