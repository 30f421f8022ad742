package hyperliquid

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/kaifufi/hyperliquid-sdk-go/chain"
	"github.com/kaifufi/hyperliquid-sdk-go/signer"
)

const (
	testKey     = "0x0123456789012345678901234567890123456789012345678901234567890123"
	testKey2    = "0x1111111111111111111111111111111111111111111111111111111111111111"
	testAddress = "0x14791697260e4c9a71f18484c9f997b308e59325"
)

// capturedRequest is one request seen by fakeTransport, re-encoded as JSON
type capturedRequest struct {
	Kind RequestKind
	Body json.RawMessage
}

// fakeTransport records requests and answers them with respond
type fakeTransport struct {
	mu       sync.Mutex
	requests []capturedRequest
	respond  func(kind RequestKind, body json.RawMessage) (json.RawMessage, error)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) Request(ctx context.Context, kind RequestKind, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.requests = append(f.requests, capturedRequest{Kind: kind, Body: body})
	respond := f.respond
	f.mu.Unlock()

	if respond != nil {
		return respond(kind, body)
	}
	return json.RawMessage(`{"status":"ok","response":{"type":"default"}}`), nil
}

func (f *fakeTransport) Requests() []capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedRequest(nil), f.requests...)
}

// envelope decodes the i-th captured request into a generic map
func (f *fakeTransport) envelope(t *testing.T, i int) map[string]any {
	t.Helper()
	reqs := f.Requests()
	require.Greater(t, len(reqs), i)
	var out map[string]any
	require.NoError(t, json.Unmarshal(reqs[i].Body, &out))
	return out
}

func testSigner(t *testing.T, key string) *signer.PrivateKeySigner {
	t.Helper()
	s, err := signer.NewPrivateKeySigner(key, nil)
	require.NoError(t, err)
	return s
}

// brokenSigner knows its address but cannot sign
type brokenSigner struct{}

func (brokenSigner) SignTypedData(context.Context, *chain.TypedData) (chain.Signature, error) {
	return chain.Signature{}, errors.New("device disconnected")
}

func (brokenSigner) Address(context.Context) (common.Address, error) {
	return common.HexToAddress("0x19e7e376e7c213b7e7e7e46cc70a5dd086daff2a"), nil
}

func (brokenSigner) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(1337), nil
}
