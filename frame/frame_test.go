package frame

import (
	"bytes"
	"errors"
	"testing"
)

func sampleAccount(dataLen int) Account {
	var pk, owner [32]byte
	pk[0] = 0xAA
	owner[0] = 0xBB
	data := make([]byte, dataLen)
	for i := range data {
		data[i] = byte(i)
	}
	return Account{
		Slot:       123456,
		IsStartup:  true,
		Pubkey:     pk,
		Lamports:   998877,
		Owner:      owner,
		Executable: false,
		RentEpoch:  42,
		Data:       data,
	}
}

func TestEncodeDecodeAccountRoundTrip(t *testing.T) {
	acc := sampleAccount(64)
	buf, err := Encode(acc, LatencyUDS())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var scratch []byte
	rec, n, err := Decode(buf, &scratch)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d bytes, want %d", n, len(buf))
	}
	got, ok := rec.(Account)
	if !ok {
		t.Fatalf("got %T, want Account", rec)
	}
	if got.Slot != acc.Slot || got.Lamports != acc.Lamports || got.RentEpoch != acc.RentEpoch {
		t.Fatalf("scalar fields mismatch: %+v vs %+v", got, acc)
	}
	if got.Pubkey != acc.Pubkey || got.Owner != acc.Owner {
		t.Fatalf("fixed fields mismatch")
	}
	if !bytes.Equal(got.Data, acc.Data) {
		t.Fatalf("data mismatch")
	}
}

func TestEncodeAccountRefMatchesAccount(t *testing.T) {
	acc := sampleAccount(256)
	ref := AccountRef{
		Slot:       acc.Slot,
		IsStartup:  acc.IsStartup,
		Pubkey:     acc.Pubkey,
		Lamports:   acc.Lamports,
		Owner:      acc.Owner,
		Executable: acc.Executable,
		RentEpoch:  acc.RentEpoch,
		Data:       acc.Data,
	}

	owning, err := Encode(acc, DefaultThroughput())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var borrowed []byte
	if err := EncodeAccountRef(ref, &borrowed, DefaultThroughput()); err != nil {
		t.Fatalf("EncodeAccountRef: %v", err)
	}
	if !bytes.Equal(owning, borrowed) {
		t.Fatalf("AccountRef frame diverges from Account frame")
	}
}

func TestCompressionThresholdAppliesLZ4Flag(t *testing.T) {
	small := sampleAccount(8)
	opts := EncodeOptions{EnableCompression: true, CompressThreshold: 4096}
	buf, err := Encode(small, opts)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	flags := uint16(buf[6])<<8 | uint16(buf[7])
	if flags&flagLZ4 != 0 {
		t.Fatalf("expected uncompressed frame below threshold, flags=%#x", flags)
	}

	large := sampleAccount(8192)
	// highly compressible: all zero bytes after the header fields repeat
	for i := range large.Data {
		large.Data[i] = 0
	}
	buf2, err := Encode(large, DefaultThroughput())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	flags2 := uint16(buf2[6])<<8 | uint16(buf2[7])
	if flags2&flagLZ4 == 0 {
		t.Fatalf("expected compressed frame above threshold")
	}

	rec, n, err := Decode(buf2, new([]byte))
	if err != nil {
		t.Fatalf("Decode compressed: %v", err)
	}
	if n != len(buf2) {
		t.Fatalf("consumed %d, want %d", n, len(buf2))
	}
	got := rec.(Account)
	if !bytes.Equal(got.Data, large.Data) {
		t.Fatalf("compressed round trip data mismatch")
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	buf, err := Encode(sampleAccount(4), LatencyUDS())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	buf[0] ^= 0xFF
	_, _, err = Decode(buf, new([]byte))
	if !errors.Is(err, ErrBadHeader) {
		t.Fatalf("got %v, want ErrBadHeader", err)
	}
}

func TestDecodeRejectsUnknownFlags(t *testing.T) {
	buf, err := Encode(sampleAccount(4), LatencyUDS())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	buf[7] |= 0x80
	_, _, err = Decode(buf, new([]byte))
	if !errors.Is(err, ErrBadHeader) {
		t.Fatalf("got %v, want ErrBadHeader", err)
	}
}

func TestDecodeTruncatedFrame(t *testing.T) {
	buf, err := Encode(sampleAccount(32), LatencyUDS())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, _, err = Decode(buf[:len(buf)-5], new([]byte))
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("got %v, want ErrTruncated", err)
	}
	_, _, err = Decode(buf[:8], new([]byte))
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("got %v, want ErrTruncated for short header", err)
	}
}

func TestSlotAndBlockAndTxAndEndOfStartupRoundTrip(t *testing.T) {
	parent := uint64(41)
	errMsg := "InstructionError"
	bh := [32]byte{1, 2, 3}
	ts := int64(1700000000)
	leader := [32]byte{9, 9}

	cases := []Record{
		Slot{Slot: 42, Parent: &parent, Status: SlotStatusRooted},
		Slot{Slot: 43, Parent: nil, Status: SlotStatusProcessed},
		Block{Slot: 42, Blockhash: &bh, ParentSlot: &parent, RewardsLen: 3, BlockTimeUnix: &ts, Leader: &leader},
		Block{Slot: 42},
		Tx{Slot: 42, Signature: [64]byte{1}, Err: &errMsg, Vote: true},
		Tx{Slot: 42, Signature: [64]byte{2}, Err: nil, Vote: false},
		EndOfStartup{},
	}

	for _, rec := range cases {
		buf, err := Encode(rec, LatencyUDS())
		if err != nil {
			t.Fatalf("Encode %T: %v", rec, err)
		}
		got, n, err := Decode(buf, new([]byte))
		if err != nil {
			t.Fatalf("Decode %T: %v", rec, err)
		}
		if n != len(buf) {
			t.Fatalf("%T: consumed %d, want %d", rec, n, len(buf))
		}
		if got.Kind() != rec.Kind() {
			t.Fatalf("%T: kind mismatch got %v want %v", rec, got.Kind(), rec.Kind())
		}
	}
}

func TestWriteAllVectoredAcrossMultipleFrames(t *testing.T) {
	var out bytes.Buffer
	f1, _ := Encode(sampleAccount(16), LatencyUDS())
	f2, _ := Encode(Slot{Slot: 7, Status: SlotStatusConfirmed}, LatencyUDS())
	f3, _ := Encode(EndOfStartup{}, LatencyUDS())

	if err := WriteAllVectored(&out, [][]byte{f1, nil, f2, {}, f3}); err != nil {
		t.Fatalf("WriteAllVectored: %v", err)
	}

	want := append(append(append([]byte{}, f1...), f2...), f3...)
	if !bytes.Equal(out.Bytes(), want) {
		t.Fatalf("written bytes mismatch")
	}
}

type partialWriter struct {
	buf     bytes.Buffer
	maxStep int
}

func (p *partialWriter) Write(b []byte) (int, error) {
	n := len(b)
	if n > p.maxStep {
		n = p.maxStep
	}
	return p.buf.Write(b[:n])
}

func TestWriteAllVectoredResumesAfterPartialWrite(t *testing.T) {
	f1, _ := Encode(sampleAccount(100), LatencyUDS())
	f2, _ := Encode(sampleAccount(200), LatencyUDS())
	pw := &partialWriter{maxStep: 7}

	if err := WriteAllVectored(pw, [][]byte{f1, f2}); err != nil {
		t.Fatalf("WriteAllVectored: %v", err)
	}
	want := append(append([]byte{}, f1...), f2...)
	if !bytes.Equal(pw.buf.Bytes(), want) {
		t.Fatalf("partial-write resumption produced mismatched bytes")
	}
}
