package signer

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/compact-experiment/compact/internal/compact"
	"github.com/compact-experiment/compact/internal/network"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "0xb71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func testRequest(t *testing.T, sponsor common.Address) *compact.SignRequest {
	t.Helper()
	tag, err := compact.NewLockTag(compact.ScopeMultichain, compact.OneDay,
		compact.NewAllocatorID(common.HexToAddress("0x00000000000000000000000000000000000a110c")))
	require.NoError(t, err)
	id, err := compact.TokenID(tag, common.Address{})
	require.NoError(t, err)

	req, err := compact.NewSignRequest(compact.Domain{
		Name:              "The Compact",
		Version:           "1",
		ChainID:           big.NewInt(1),
		VerifyingContract: common.HexToAddress("0x00000000000000171ede64904551eedf3c6c9788"),
	}, &compact.Compact{
		Arbiter: common.HexToAddress("0x00000000000000000000000000000000000000a7"),
		Sponsor: sponsor,
		Nonce:   uint256.NewInt(1),
		Expires: uint256.NewInt(4_102_444_800),
		ID:      id,
		Amount:  new(uint256.Int).Lsh(uint256.NewInt(1), 200), // beyond float64 precision
		Mandate: &compact.Mandate{WitnessArgument: uint256.NewInt(9)},
	})
	require.NoError(t, err)
	return req
}

func TestKeySigner_SignatureRecoversSponsor(t *testing.T) {
	s, err := NewKeySignerFromHex(testKeyHex)
	require.NoError(t, err)
	req := testRequest(t, s.Address())

	sig, err := s.SignTypedData(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, sig, SignatureLength)
	v := sig[crypto.RecoveryIDOffset]
	assert.True(t, v == 27 || v == 28, "v = %d", v)

	digest, err := req.Digest()
	require.NoError(t, err)
	raw := append([]byte{}, sig...)
	raw[crypto.RecoveryIDOffset] -= 27
	pub, err := crypto.SigToPub(digest.Bytes(), raw)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), crypto.PubkeyToAddress(*pub))
}

func TestKeySigner_Deterministic(t *testing.T) {
	s, err := NewKeySignerFromHex(strings.TrimPrefix(testKeyHex, "0x"))
	require.NoError(t, err)
	req := testRequest(t, s.Address())

	a, err := s.SignTypedData(context.Background(), req)
	require.NoError(t, err)
	b, err := s.SignTypedData(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestKeySigner_CancelledContext(t *testing.T) {
	s, err := NewKeySignerFromHex(testKeyHex)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.SignTypedData(ctx, testRequest(t, s.Address()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewKeySignerFromHex_Invalid(t *testing.T) {
	_, err := NewKeySignerFromHex("0xnothex")
	assert.Error(t, err)
}

// fakeWallet decodes each JSON-RPC request and lets respond answer it.
func fakeWallet(t *testing.T, respond func(w http.ResponseWriter, req map[string]json.RawMessage)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		respond(w, req)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRemoteSigner_SendsTypedData(t *testing.T) {
	key, err := NewKeySignerFromHex(testKeyHex)
	require.NoError(t, err)
	req := testRequest(t, key.Address())
	want, err := key.SignTypedData(context.Background(), req)
	require.NoError(t, err)

	server := fakeWallet(t, func(w http.ResponseWriter, body map[string]json.RawMessage) {
		var method string
		json.Unmarshal(body["method"], &method)
		assert.Equal(t, SignTypedDataMethod, method)

		var params []json.RawMessage
		if !assert.NoError(t, json.Unmarshal(body["params"], &params)) || !assert.Len(t, params, 2) {
			http.Error(w, "bad params", http.StatusBadRequest)
			return
		}

		var account common.Address
		assert.NoError(t, json.Unmarshal(params[0], &account))
		assert.Equal(t, key.Address(), account)

		var td struct {
			PrimaryType string                 `json:"primaryType"`
			Message     map[string]interface{} `json:"message"`
		}
		assert.NoError(t, json.Unmarshal(params[1], &td))
		assert.Equal(t, compact.PrimaryType, td.PrimaryType)
		// integers travel as decimal strings so no precision is lost
		assert.Equal(t, req.Compact.Amount.Dec(), td.Message["amount"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  hexutil.Encode(want),
		})
	})

	remote := NewRemoteSigner(server.URL, key.Address(), network.NewHTTPClient(network.Config{}))
	got, err := remote.SignTypedData(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRemoteSigner_Failures(t *testing.T) {
	key, err := NewKeySignerFromHex(testKeyHex)
	require.NoError(t, err)

	tests := []struct {
		name    string
		respond func(w http.ResponseWriter, body map[string]json.RawMessage)
		check   func(t *testing.T, err error)
	}{
		{
			name: "rpc error",
			respond: func(w http.ResponseWriter, _ map[string]json.RawMessage) {
				json.NewEncoder(w).Encode(map[string]interface{}{
					"jsonrpc": "2.0", "id": 1,
					"error": map[string]interface{}{"code": 4001, "message": "user rejected"},
				})
			},
			check: func(t *testing.T, err error) {
				var rpcErr *RPCError
				require.True(t, errors.As(err, &rpcErr), "got %v", err)
				assert.Equal(t, 4001, rpcErr.Code)
			},
		},
		{
			name: "short signature",
			respond: func(w http.ResponseWriter, _ map[string]json.RawMessage) {
				json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": "0x1234"})
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedSignature)
			},
		},
		{
			name: "non-hex result",
			respond: func(w http.ResponseWriter, _ map[string]json.RawMessage) {
				json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": 12})
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedSignature)
			},
		},
		{
			name: "http status",
			respond: func(w http.ResponseWriter, _ map[string]json.RawMessage) {
				http.Error(w, "boom", http.StatusBadGateway)
			},
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "502")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := fakeWallet(t, tt.respond)
			remote := NewRemoteSigner(server.URL, key.Address(), nil)
			_, err := remote.SignTypedData(context.Background(), testRequest(t, key.Address()))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestRemoteSigner_Timeout(t *testing.T) {
	key, err := NewKeySignerFromHex(testKeyHex)
	require.NoError(t, err)
	server := fakeWallet(t, func(w http.ResponseWriter, _ map[string]json.RawMessage) {
		json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": "0x"})
	})

	client := network.NewHTTPClient(network.Config{DelayEnabled: true, MinDelayMs: 1000, MaxDelayMs: 1000})
	remote := NewRemoteSigner(server.URL, key.Address(), client)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = remote.SignTypedData(ctx, testRequest(t, key.Address()))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSignCompact_WithRemoteSignerPropagatesError(t *testing.T) {
	key, err := NewKeySignerFromHex(testKeyHex)
	require.NoError(t, err)
	server := fakeWallet(t, func(w http.ResponseWriter, _ map[string]json.RawMessage) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": 1,
			"error": map[string]interface{}{"code": -32000, "message": "locked"},
		})
	})
	remote := NewRemoteSigner(server.URL, key.Address(), nil)
	req := testRequest(t, key.Address())

	_, err = compact.SignCompact(context.Background(), remote, compact.Domain{
		Name: "The Compact", Version: "1", ChainID: big.NewInt(1),
	}, req.Compact)
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "locked", rpcErr.Message)
}
