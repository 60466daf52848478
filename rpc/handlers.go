package rpc

import (
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/launix-de/ultra-geyser-pipeline/cache"
)

// DataSlice truncates account data before encoding, matching the upstream
// Solana RPC convention.
type DataSlice struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// AccountConfig carries the per-call options accepted by getAccountInfo and
// getMultipleAccounts. Only encoding="base64" is supported; commitment is
// accepted for client compatibility but not differentiated, since the cache
// exposes a single timeline.
type AccountConfig struct {
	Encoding       string     `json:"encoding"`
	Commitment     string     `json:"commitment,omitempty"`
	DataSlice      *DataSlice `json:"dataSlice,omitempty"`
	MinContextSlot *uint64    `json:"minContextSlot,omitempty"`
}

// AccountInfo is the wire shape of one cached account, or null if absent.
type AccountInfo struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
	Data       []string `json:"data"`
}

type contextValue struct {
	Slot uint64 `json:"slot"`
}

type accountInfoResult struct {
	Context contextValue `json:"context"`
	Value   *AccountInfo `json:"value"`
}

func validCommitment(c string) bool {
	switch c {
	case "", "processed", "confirmed", "finalized":
		return true
	default:
		return false
	}
}

func decodePubkey(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := base58.Decode(s)
	if err != nil {
		return out, fmt.Errorf("invalid base58 pubkey: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("pubkey must decode to 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func toAccountInfo(rec *cache.AccountRecord, slice *DataSlice) (*AccountInfo, error) {
	if rec == nil {
		return nil, nil
	}
	dataBase64 := rec.DataBase64
	if slice != nil {
		sliced := applyDataSlice(rec.Data, slice.Offset, slice.Length)
		dataBase64 = base64.StdEncoding.EncodeToString(sliced)
	}
	return &AccountInfo{
		Lamports:   rec.Lamports,
		Owner:      rec.OwnerBase58,
		Executable: rec.Executable,
		RentEpoch:  rec.RentEpoch,
		Data:       []string{dataBase64, "base64"},
	}, nil
}

func applyDataSlice(data []byte, offset, length int) []byte {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(data) {
		return []byte{}
	}
	end := len(data)
	if length >= 0 && offset+length < end {
		end = offset + length
	}
	return data[offset:end]
}

func checkMinContextSlot(cfg *AccountConfig, slot uint64) *RPCError {
	if cfg == nil || cfg.MinContextSlot == nil {
		return nil
	}
	if slot < *cfg.MinContextSlot {
		return &RPCError{
			Code:    CodeMinContextSlotNotMet,
			Message: "min context slot has not been reached",
			Data:    contextValue{Slot: slot},
		}
	}
	return nil
}

func validateConfig(cfg *AccountConfig) *RPCError {
	if cfg == nil {
		return nil
	}
	if cfg.Encoding != "" && cfg.Encoding != "base64" {
		return &RPCError{Code: CodeInvalidParams, Message: "only encoding=base64 is supported"}
	}
	if !validCommitment(cfg.Commitment) {
		return &RPCError{Code: CodeInvalidParams, Message: "invalid commitment"}
	}
	return nil
}
