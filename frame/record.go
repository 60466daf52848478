// Package frame implements the wire framing codec (spec component F):
// a versioned, length-prefixed, optionally-compressed binary frame
// carrying a tagged union of record types.
package frame

import (
	"encoding/binary"
	"fmt"
)

// Kind discriminates the closed set of Record variants. Decoding switches
// exhaustively on Kind; there is no open polymorphism here by design.
type Kind uint8

const (
	KindAccount Kind = iota
	KindTx
	KindBlock
	KindSlot
	KindEndOfStartup
)

func (k Kind) String() string {
	switch k {
	case KindAccount:
		return "account"
	case KindTx:
		return "tx"
	case KindBlock:
		return "block"
	case KindSlot:
		return "slot"
	case KindEndOfStartup:
		return "end_of_startup"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Record is the closed tagged union encoded into frame bodies.
type Record interface {
	Kind() Kind
	marshalBody(w *bodyWriter)
}

// Account is an owning account update record.
type Account struct {
	Slot       uint64
	IsStartup  bool
	Pubkey     [32]byte
	Lamports   uint64
	Owner      [32]byte
	Executable bool
	RentEpoch  uint64
	Data       []byte
}

func (Account) Kind() Kind { return KindAccount }

func (a Account) marshalBody(w *bodyWriter) {
	w.putU64(a.Slot)
	w.putBool(a.IsStartup)
	w.putFixed(a.Pubkey[:])
	w.putU64(a.Lamports)
	w.putFixed(a.Owner[:])
	w.putBool(a.Executable)
	w.putU64(a.RentEpoch)
	w.putBytes(a.Data)
}

// AccountRef is a borrowed view of an account update whose Data aliases a
// caller-owned buffer, avoiding a copy on the producer hot path. It must
// serialize byte-identically to the equivalent owning Account.
type AccountRef struct {
	Slot       uint64
	IsStartup  bool
	Pubkey     [32]byte
	Lamports   uint64
	Owner      [32]byte
	Executable bool
	RentEpoch  uint64
	Data       []byte // borrowed; caller retains ownership
}

func (AccountRef) Kind() Kind { return KindAccount }

func (a AccountRef) marshalBody(w *bodyWriter) {
	w.putU64(a.Slot)
	w.putBool(a.IsStartup)
	w.putFixed(a.Pubkey[:])
	w.putU64(a.Lamports)
	w.putFixed(a.Owner[:])
	w.putBool(a.Executable)
	w.putU64(a.RentEpoch)
	w.putBytes(a.Data)
}

// Tx is a transaction status record.
type Tx struct {
	Slot      uint64
	Signature [64]byte
	Err       *string
	Vote      bool
}

func (Tx) Kind() Kind { return KindTx }

func (t Tx) marshalBody(w *bodyWriter) {
	w.putU64(t.Slot)
	w.putFixed(t.Signature[:])
	w.putOptionalString(t.Err)
	w.putBool(t.Vote)
}

// Block is a block metadata record.
type Block struct {
	Slot          uint64
	Blockhash     *[32]byte
	ParentSlot    *uint64
	RewardsLen    uint32
	BlockTimeUnix *int64
	Leader        *[32]byte
}

func (Block) Kind() Kind { return KindBlock }

func (b Block) marshalBody(w *bodyWriter) {
	w.putU64(b.Slot)
	w.putOptionalFixed32(b.Blockhash)
	w.putOptionalU64(b.ParentSlot)
	w.putU32(b.RewardsLen)
	w.putOptionalI64(b.BlockTimeUnix)
	w.putOptionalFixed32(b.Leader)
}

// Slot is a slot status record. Status is one of 0..=6 (see SlotStatus
// constants below).
type Slot struct {
	Slot   uint64
	Parent *uint64
	Status uint8
}

func (Slot) Kind() Kind { return KindSlot }

func (s Slot) marshalBody(w *bodyWriter) {
	w.putU64(s.Slot)
	w.putOptionalU64(s.Parent)
	w.putU8(s.Status)
}

// SlotStatus values, mirroring the Geyser plugin host's SlotStatus enum.
const (
	SlotStatusProcessed         uint8 = 0
	SlotStatusConfirmed         uint8 = 1
	SlotStatusRooted            uint8 = 2
	SlotStatusFirstShredReceive uint8 = 3
	SlotStatusCompleted         uint8 = 4
	SlotStatusCreatedBank       uint8 = 5
	SlotStatusDead              uint8 = 6
)

// EndOfStartup marks the end of the startup account replay.
type EndOfStartup struct{}

func (EndOfStartup) Kind() Kind { return KindEndOfStartup }

func (EndOfStartup) marshalBody(w *bodyWriter) {}

// bodyWriter appends canonical fixed-width little-endian record encoding to
// an underlying byte slice: integers are fixed-width LE, booleans are one
// byte, optionals are a one-byte tag followed by the payload when present,
// and variable-length byte arrays are length-prefixed with a u32 LE count.
type bodyWriter struct {
	buf []byte
}

func (w *bodyWriter) putU8(v uint8) { w.buf = append(w.buf, v) }

func (w *bodyWriter) putBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *bodyWriter) putU32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *bodyWriter) putU64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *bodyWriter) putI64(v int64) { w.putU64(uint64(v)) }

func (w *bodyWriter) putFixed(b []byte) { w.buf = append(w.buf, b...) }

func (w *bodyWriter) putBytes(b []byte) {
	w.putU32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *bodyWriter) putOptionalString(s *string) {
	if s == nil {
		w.putU8(0)
		return
	}
	w.putU8(1)
	w.putBytes([]byte(*s))
}

func (w *bodyWriter) putOptionalU64(v *uint64) {
	if v == nil {
		w.putU8(0)
		return
	}
	w.putU8(1)
	w.putU64(*v)
}

func (w *bodyWriter) putOptionalI64(v *int64) {
	if v == nil {
		w.putU8(0)
		return
	}
	w.putU8(1)
	w.putI64(*v)
}

func (w *bodyWriter) putOptionalFixed32(v *[32]byte) {
	if v == nil {
		w.putU8(0)
		return
	}
	w.putU8(1)
	w.putFixed(v[:])
}

// bodyReader consumes canonical record encoding from a byte slice.
type bodyReader struct {
	buf []byte
	off int
}

func (r *bodyReader) need(n int) error {
	if r.off+n > len(r.buf) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrDeserialize, n, r.off, len(r.buf))
	}
	return nil
}

func (r *bodyReader) getU8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *bodyReader) getBool() (bool, error) {
	v, err := r.getU8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (r *bodyReader) getU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *bodyReader) getU64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

func (r *bodyReader) getI64() (int64, error) {
	v, err := r.getU64()
	return int64(v), err
}

func (r *bodyReader) getFixed(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *bodyReader) getFixed32() ([32]byte, error) {
	var out [32]byte
	b, err := r.getFixed(32)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func (r *bodyReader) getBytes() ([]byte, error) {
	n, err := r.getU32()
	if err != nil {
		return nil, err
	}
	return r.getFixed(int(n))
}

func (r *bodyReader) getOptionalString() (*string, error) {
	tag, err := r.getU8()
	if err != nil {
		return nil, err
	}
	if tag == 0 {
		return nil, nil
	}
	b, err := r.getBytes()
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func (r *bodyReader) getOptionalU64() (*uint64, error) {
	tag, err := r.getU8()
	if err != nil {
		return nil, err
	}
	if tag == 0 {
		return nil, nil
	}
	v, err := r.getU64()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *bodyReader) getOptionalI64() (*int64, error) {
	tag, err := r.getU8()
	if err != nil {
		return nil, err
	}
	if tag == 0 {
		return nil, nil
	}
	v, err := r.getI64()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *bodyReader) getOptionalFixed32() (*[32]byte, error) {
	tag, err := r.getU8()
	if err != nil {
		return nil, err
	}
	if tag == 0 {
		return nil, nil
	}
	v, err := r.getFixed32()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// unmarshalRecord decodes a Record body given its kind tag. The tag itself
// is the first byte of the body (written by marshalBody, read by decodeBody
// in codec.go); this function dispatches on the already-extracted value.
func unmarshalRecord(kind Kind, r *bodyReader) (Record, error) {
	switch kind {
	case KindAccount:
		return unmarshalAccount(r)
	case KindTx:
		return unmarshalTx(r)
	case KindBlock:
		return unmarshalBlock(r)
	case KindSlot:
		return unmarshalSlot(r)
	case KindEndOfStartup:
		return EndOfStartup{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown record kind %d", ErrDeserialize, kind)
	}
}

func unmarshalAccount(r *bodyReader) (Record, error) {
	var a Account
	var err error
	if a.Slot, err = r.getU64(); err != nil {
		return nil, err
	}
	if a.IsStartup, err = r.getBool(); err != nil {
		return nil, err
	}
	if a.Pubkey, err = r.getFixed32(); err != nil {
		return nil, err
	}
	if a.Lamports, err = r.getU64(); err != nil {
		return nil, err
	}
	if a.Owner, err = r.getFixed32(); err != nil {
		return nil, err
	}
	if a.Executable, err = r.getBool(); err != nil {
		return nil, err
	}
	if a.RentEpoch, err = r.getU64(); err != nil {
		return nil, err
	}
	if a.Data, err = r.getBytes(); err != nil {
		return nil, err
	}
	return a, nil
}

func unmarshalTx(r *bodyReader) (Record, error) {
	var t Tx
	var err error
	if t.Slot, err = r.getU64(); err != nil {
		return nil, err
	}
	if t.Signature, err = func() ([64]byte, error) {
		var sig [64]byte
		b, err := r.getFixed(64)
		if err != nil {
			return sig, err
		}
		copy(sig[:], b)
		return sig, nil
	}(); err != nil {
		return nil, err
	}
	if t.Err, err = r.getOptionalString(); err != nil {
		return nil, err
	}
	if t.Vote, err = r.getBool(); err != nil {
		return nil, err
	}
	return t, nil
}

func unmarshalBlock(r *bodyReader) (Record, error) {
	var b Block
	var err error
	if b.Slot, err = r.getU64(); err != nil {
		return nil, err
	}
	if b.Blockhash, err = r.getOptionalFixed32(); err != nil {
		return nil, err
	}
	if b.ParentSlot, err = r.getOptionalU64(); err != nil {
		return nil, err
	}
	if b.RewardsLen, err = r.getU32(); err != nil {
		return nil, err
	}
	if b.BlockTimeUnix, err = r.getOptionalI64(); err != nil {
		return nil, err
	}
	if b.Leader, err = r.getOptionalFixed32(); err != nil {
		return nil, err
	}
	return b, nil
}

func unmarshalSlot(r *bodyReader) (Record, error) {
	var s Slot
	var err error
	if s.Slot, err = r.getU64(); err != nil {
		return nil, err
	}
	if s.Parent, err = r.getOptionalU64(); err != nil {
		return nil, err
	}
	if s.Status, err = r.getU8(); err != nil {
		return nil, err
	}
	return s, nil
}
