package notary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"yo.mini/yo/internal/contract"
	"yo.mini/yo/internal/types"
)

// MethodNotarise is the JSON-RPC method a notary node serves on RPCPath.
const (
	MethodNotarise = "notary_notarise"
	RPCPath        = "/rpc"
)

// Application error codes carried in JSON-RPC errors.
const (
	CodeEncodingError = 1
	CodeAuthError     = 2
	CodeInvalidTx     = 3
	CodeConflict      = 4
	CodeWrongNotary   = 5
)

// maxRequestBytes caps a JSON-RPC request body.
const maxRequestBytes = 1 << 20

// Standard JSON-RPC 2.0 codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type notariseParams struct {
	Transaction *types.SignedBundle `json:"transaction"`
}

type notariseResult struct {
	Signature types.Signature `json:"signature"`
}

// NewHandler serves n over JSON-RPC 2.0.
func NewHandler(n Notariser) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req rpcRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
			writeRPC(w, rpcResponse{Error: &rpcError{Code: codeParseError, Message: "parse error", Data: err.Error()}})
			return
		}
		resp := rpcResponse{ID: req.ID}
		if req.JSONRPC != "2.0" {
			resp.Error = &rpcError{Code: codeInvalidRequest, Message: "invalid request"}
			writeRPC(w, resp)
			return
		}
		if req.Method != MethodNotarise {
			resp.Error = &rpcError{Code: codeMethodNotFound, Message: "method not found", Data: req.Method}
			writeRPC(w, resp)
			return
		}

		var params notariseParams
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Transaction == nil {
			resp.Error = &rpcError{Code: codeInvalidParams, Message: "invalid params"}
			writeRPC(w, resp)
			return
		}

		sig, err := n.Notarise(r.Context(), params.Transaction)
		if err != nil {
			resp.Error = &rpcError{Code: errorCode(err), Message: "rejected", Data: err.Error()}
			writeRPC(w, resp)
			return
		}

		result, err := json.Marshal(notariseResult{Signature: sig})
		if err != nil {
			resp.Error = &rpcError{Code: codeInternalError, Message: "internal error"}
			writeRPC(w, resp)
			return
		}
		resp.Result = result
		writeRPC(w, resp)
	})
}

func errorCode(err error) int {
	var vErr *contract.ValidationError
	switch {
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrWrongNotary):
		return CodeWrongNotary
	case errors.Is(err, types.ErrInvalidSignature), errors.Is(err, types.ErrMissingSignatures):
		return CodeAuthError
	case errors.As(err, &vErr), errors.Is(err, contract.ErrUnknownContract):
		return CodeInvalidTx
	default:
		return CodeEncodingError
	}
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	resp.JSONRPC = "2.0"
	if resp.ID == nil {
		resp.ID = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Client calls a remote notary's JSON-RPC endpoint.
type Client struct {
	rpcAddr string
	client  *http.Client
}

// NewClient creates a client for the notary at rpcAddr, for example
// "http://controller:8080/rpc". A nil httpClient gets a traced default.
func NewClient(rpcAddr string, httpClient *http.Client) *Client {
	if !strings.HasSuffix(rpcAddr, RPCPath) {
		rpcAddr = strings.TrimSuffix(rpcAddr, "/") + RPCPath
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{rpcAddr: rpcAddr, client: httpClient}
}

// Notarise sends stx to the remote notary and returns its signature.
func (c *Client) Notarise(ctx context.Context, stx *types.SignedBundle) (types.Signature, error) {
	params, err := json.Marshal(notariseParams{Transaction: stx})
	if err != nil {
		return types.Signature{}, fmt.Errorf("failed to marshal params: %w", err)
	}
	reqBytes, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage("1"),
		Method:  MethodNotarise,
		Params:  params,
	})
	if err != nil {
		return types.Signature{}, fmt.Errorf("failed to marshal RPC request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcAddr, bytes.NewReader(reqBytes))
	if err != nil {
		return types.Signature{}, fmt.Errorf("failed to build RPC request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return types.Signature{}, fmt.Errorf("failed to send RPC request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Signature{}, fmt.Errorf("failed to read RPC response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBytes, &rpcResp); err != nil {
		return types.Signature{}, fmt.Errorf("failed to parse RPC response: %w (body: %s)", err, string(respBytes))
	}
	if rpcResp.Error != nil {
		return types.Signature{}, &RemoteError{
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
			Data:    rpcResp.Error.Data,
		}
	}

	var result notariseResult
	if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
		return types.Signature{}, fmt.Errorf("failed to parse notarise result: %w", err)
	}
	if err := stx.VerifySignature(result.Signature); err != nil {
		return types.Signature{}, fmt.Errorf("notary returned a bad signature: %w", err)
	}
	return result.Signature, nil
}
