package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/compact-experiment/compact/internal/compact"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SignTypedDataMethod is the JSON-RPC method used by RemoteSigner.
const SignTypedDataMethod = "eth_signTypedData_v4"

// ErrMalformedSignature is returned when a remote signer answers with
// something other than a 65-byte signature.
var ErrMalformedSignature = errors.New("malformed signature")

// RPCError is an error object returned by the remote signer.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("signer rpc error %d: %s", e.Code, e.Message)
}

type jsonRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      uint64        `json:"id"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}

// RemoteSigner asks an external wallet or key manager to sign over JSON-RPC.
// It performs a single attempt per call; retry policy belongs to the caller.
type RemoteSigner struct {
	url     string
	account common.Address
	client  *http.Client
	nextID  atomic.Uint64
}

// NewRemoteSigner creates a signer for account served at url.
func NewRemoteSigner(url string, account common.Address, client *http.Client) *RemoteSigner {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteSigner{url: url, account: account, client: client}
}

// Address is the account the remote signer is asked to sign with.
func (s *RemoteSigner) Address() common.Address {
	return s.account
}

// SignTypedData sends the request's typed data to the remote signer.
func (s *RemoteSigner) SignTypedData(ctx context.Context, req *compact.SignRequest) ([]byte, error) {
	body, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  SignTypedDataMethod,
		Params:  []interface{}{s.account, req.Portable()},
		ID:      s.nextID.Add(1),
	})
	if err != nil {
		return nil, fmt.Errorf("encode sign request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("signer returned status %d", resp.StatusCode)
	}

	var rpcResp jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode signer response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	var sig hexutil.Bytes
	if err := json.Unmarshal(rpcResp.Result, &sig); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("%w: got %d bytes", ErrMalformedSignature, len(sig))
	}
	return sig, nil
}
