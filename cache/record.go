// Package cache implements the account cache (spec component C): O(1)
// lock-free reads of per-pubkey account state at the latest published slot,
// with copy-on-write batch application at shard granularity.
package cache

import (
	"encoding/base64"

	"github.com/mr-tron/base58"
)

// AccountRecord is the immutable, shareable value stored per pubkey. Data,
// its base64 encoding, and Owner's base58 encoding are all pre-computed
// once at construction time so an RPC read never re-encodes on the hot
// path; a reader holding a *AccountRecord never observes it change, since
// publishing always replaces the pointer rather than mutating fields.
type AccountRecord struct {
	Pubkey      [32]byte
	Lamports    uint64
	Owner       [32]byte
	OwnerBase58 string
	Executable  bool
	RentEpoch   uint64
	Data        []byte
	DataLen     int
	DataBase64  string
	Slot        uint64
}

// NewAccountRecord builds a record from raw account fields, pre-computing
// data's base64 form and owner's base58 form once at construction time.
func NewAccountRecord(slot uint64, pubkey [32]byte, lamports uint64, owner [32]byte, executable bool, rentEpoch uint64, data []byte) *AccountRecord {
	return &AccountRecord{
		Pubkey:      pubkey,
		Lamports:    lamports,
		Owner:       owner,
		OwnerBase58: base58.Encode(owner[:]),
		Executable:  executable,
		RentEpoch:   rentEpoch,
		Data:        data,
		DataLen:     len(data),
		DataBase64:  base64.StdEncoding.EncodeToString(data),
		Slot:        slot,
	}
}

func (r *AccountRecord) key() [32]byte { return r.Pubkey }
