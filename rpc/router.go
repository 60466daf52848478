package rpc

import (
	"encoding/json"

	"github.com/launix-de/ultra-geyser-pipeline/cache"
	"github.com/launix-de/ultra-geyser-pipeline/internal/logging"
)

// Router dispatches decoded JSON-RPC requests against a Cache. It is the
// shared core both the HTTP and QUIC edges call into.
type Router struct {
	Cache *cache.Cache
	Log   *logging.Logger
}

// NewRouter builds a Router over c.
func NewRouter(c *cache.Cache) *Router {
	return &Router{Cache: c, Log: logging.New("rpc")}
}

// Dispatch decodes one JSON-RPC request body and returns the marshaled
// response body. It never returns an error itself: parse failures and
// unknown methods are reported as JSON-RPC error objects, per spec.
func (ro *Router) Dispatch(body []byte) []byte {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return mustMarshal(errorResponse(nil, CodeParseError, "invalid JSON", nil))
	}
	var resp Response
	switch req.Method {
	case "getAccountInfo":
		resp = ro.getAccountInfo(req)
	case "getMultipleAccounts":
		resp = ro.getMultipleAccounts(req)
	case "getSlot":
		resp = ro.getSlot(req)
	default:
		resp = errorResponse(req.ID, CodeMethodNotFound, "method not found", req.Method)
	}
	return mustMarshal(resp)
}

func mustMarshal(resp Response) []byte {
	b, err := json.Marshal(resp)
	if err != nil {
		// Response always encodes successfully (no channels/funcs in its
		// fields); a failure here means a handler returned something it
		// shouldn't have.
		return []byte(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"internal error"}}`)
	}
	return b
}

type getAccountInfoParams struct {
	Pubkey string         `json:"pubkey"`
	Config *AccountConfig `json:"config,omitempty"`
}

func (ro *Router) getAccountInfo(req Request) Response {
	var p getAccountInfoParams
	if len(req.Params) == 0 {
		return errorResponse(req.ID, CodeInvalidParams, "missing params", nil)
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "malformed params", nil)
	}
	if p.Pubkey == "" {
		return errorResponse(req.ID, CodeInvalidParams, "pubkey is required", nil)
	}
	if rerr := validateConfig(p.Config); rerr != nil {
		return Response{JSONRPC: "2.0", Error: rerr, ID: req.ID}
	}
	pubkey, err := decodePubkey(p.Pubkey)
	if err != nil {
		return errorResponse(req.ID, CodeInvalidParams, err.Error(), nil)
	}

	slot := ro.Cache.Slot()
	if rerr := checkMinContextSlot(p.Config, slot); rerr != nil {
		return Response{JSONRPC: "2.0", Error: rerr, ID: req.ID}
	}

	rec := ro.Cache.Get(pubkey)
	var slice *DataSlice
	if p.Config != nil {
		slice = p.Config.DataSlice
	}
	info, err := toAccountInfo(rec, slice)
	if err != nil {
		ro.Log.Errorf("getAccountInfo: %v", err)
		return errorResponse(req.ID, CodeInvalidParams, "internal data error", nil)
	}
	return resultResponse(req.ID, accountInfoResult{Context: contextValue{Slot: slot}, Value: info})
}

type getMultipleAccountsParams struct {
	Pubkeys []string       `json:"pubkeys"`
	Config  *AccountConfig `json:"config,omitempty"`
}

func (ro *Router) getMultipleAccounts(req Request) Response {
	var p getMultipleAccountsParams
	if len(req.Params) == 0 {
		return errorResponse(req.ID, CodeInvalidParams, "missing params", nil)
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "malformed params", nil)
	}
	if len(p.Pubkeys) == 0 {
		return errorResponse(req.ID, CodeInvalidParams, "pubkeys is required", nil)
	}
	if rerr := validateConfig(p.Config); rerr != nil {
		return Response{JSONRPC: "2.0", Error: rerr, ID: req.ID}
	}

	slot := ro.Cache.Slot()
	if rerr := checkMinContextSlot(p.Config, slot); rerr != nil {
		return Response{JSONRPC: "2.0", Error: rerr, ID: req.ID}
	}

	var slice *DataSlice
	if p.Config != nil {
		slice = p.Config.DataSlice
	}
	values := make([]*AccountInfo, len(p.Pubkeys))
	for i, s := range p.Pubkeys {
		pubkey, err := decodePubkey(s)
		if err != nil {
			return errorResponse(req.ID, CodeInvalidParams, err.Error(), nil)
		}
		info, err := toAccountInfo(ro.Cache.Get(pubkey), slice)
		if err != nil {
			ro.Log.Errorf("getMultipleAccounts: %v", err)
			return errorResponse(req.ID, CodeInvalidParams, "internal data error", nil)
		}
		values[i] = info
	}
	return resultResponse(req.ID, multiAccountInfoResult{Context: contextValue{Slot: slot}, Value: values})
}

func (ro *Router) getSlot(req Request) Response {
	return resultResponse(req.ID, ro.Cache.Slot())
}

type multiAccountInfoResult struct {
	Context contextValue   `json:"context"`
	Value   []*AccountInfo `json:"value"`
}
