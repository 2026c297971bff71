package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	// vmErrorCode is the code go-ethereum uses for reverted executions, with the revert
	// data in the error's data field.
	vmErrorCode = 3
	// serverErrorCode is the generic JSON-RPC server error.
	serverErrorCode = -32000
)

// RPCErrorMiddleware rewrites reverted-execution errors in JSON-RPC responses from
// next into plain server errors unless wrapVMErrors is set.
func RPCErrorMiddleware(next http.Handler, wrapVMErrors bool) http.Handler {
	if wrapVMErrors {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		rec := &responseBuffer{header: make(http.Header), status: http.StatusOK}
		next.ServeHTTP(rec, r)

		body := rec.body.Bytes()
		if strings.HasPrefix(rec.header.Get("Content-Type"), "application/json") {
			if rewritten, ok := unwrapVMErrors(body); ok {
				body = rewritten
			}
		}

		for k, v := range rec.header {
			w.Header()[k] = v
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(rec.status)
		_, _ = w.Write(body)
	})
}

type responseBuffer struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (b *responseBuffer) Header() http.Header {
	return b.header
}

func (b *responseBuffer) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.wroteHeader = true
	b.status = status
}

func (b *responseBuffer) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.body.Write(p)
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func unwrapVMErrors(body []byte) ([]byte, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false
	}

	if trimmed[0] != '[' {
		return rewriteResponse(trimmed)
	}

	var batch []json.RawMessage
	if err := json.Unmarshal(trimmed, &batch); err != nil {
		return nil, false
	}
	changed := false
	for i, msg := range batch {
		if out, ok := rewriteResponse(msg); ok {
			batch[i] = out
			changed = true
		}
	}
	if !changed {
		return nil, false
	}
	out, err := json.Marshal(batch)
	if err != nil {
		return nil, false
	}
	return append(out, '\n'), true
}

func rewriteResponse(raw []byte) ([]byte, bool) {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, false
	}
	errRaw, ok := msg["error"]
	if !ok {
		return nil, false
	}
	var rerr rpcError
	if err := json.Unmarshal(errRaw, &rerr); err != nil {
		return nil, false
	}
	if rerr.Code != vmErrorCode || len(rerr.Data) == 0 {
		return nil, false
	}

	var data string
	if err := json.Unmarshal(rerr.Data, &data); err != nil {
		data = string(rerr.Data)
	}
	rerr = rpcError{
		Code:    serverErrorCode,
		Message: fmt.Sprintf("%s: %s", rerr.Message, data),
	}

	encoded, err := json.Marshal(rerr)
	if err != nil {
		return nil, false
	}
	msg["error"] = encoded
	out, err := json.Marshal(msg)
	if err != nil {
		return nil, false
	}
	return out, true
}
