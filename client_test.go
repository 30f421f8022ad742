package hyperliquid

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testMeta     = `{"universe":[{"name":"BTC","szDecimals":5,"maxLeverage":50},{"name":"ETH","szDecimals":4,"maxLeverage":50}]}`
	testSpotMeta = `{"universe":[{"name":"PURR/USDC","tokens":[1,0],"index":0},{"name":"@107","tokens":[2,0],"index":107}],"tokens":[{"name":"USDC","szDecimals":8,"weiDecimals":8,"index":0},{"name":"PURR","szDecimals":0,"weiDecimals":5,"index":1},{"name":"HYPE","szDecimals":2,"weiDecimals":8,"index":2}]}`
)

// venueTransport answers meta and spotMeta info requests and accepts every action
func venueTransport() *fakeTransport {
	tr := newFakeTransport()
	tr.respond = func(kind RequestKind, body json.RawMessage) (json.RawMessage, error) {
		if kind == RequestAction {
			return json.RawMessage(`{"status":"ok","response":{"type":"order","data":{"statuses":[{"resting":{"oid":42}}]}}}`), nil
		}
		var req struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}
		switch req.Type {
		case "meta":
			return json.RawMessage(testMeta), nil
		case "spotMeta":
			return json.RawMessage(testSpotMeta), nil
		default:
			return json.RawMessage(`{"status":"err","response":"unknown info type"}`), nil
		}
	}
	return tr
}

func newTestClient(t *testing.T, tr Transport, withSigner bool) *Client {
	t.Helper()
	cfg := ClientConfig{Network: Testnet, Transport: tr, Logger: zaptest.NewLogger(t)}
	if withSigner {
		cfg.Signer = testSigner(t, testKey)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func countKind(tr *fakeTransport, kind RequestKind) int {
	n := 0
	for _, r := range tr.Requests() {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

func TestClient_AssetIndex(t *testing.T) {
	tr := venueTransport()
	c := newTestClient(t, tr, false)
	ctx := context.Background()

	tests := []struct {
		coin       string
		id         int
		szDecimals int
	}{
		{coin: "BTC", id: 0, szDecimals: 5},
		{coin: "ETH", id: 1, szDecimals: 4},
		{coin: "PURR/USDC", id: 10000, szDecimals: 0},
		{coin: "@107", id: 10107, szDecimals: 2},
	}
	for _, tt := range tests {
		id, sz, err := c.AssetIndex(ctx, tt.coin)
		require.NoError(t, err, tt.coin)
		assert.Equal(t, tt.id, id, tt.coin)
		assert.Equal(t, tt.szDecimals, sz, tt.coin)
	}
	assert.Equal(t, 2, countKind(tr, RequestInfo), "metadata is fetched once")

	_, _, err := c.AssetIndex(ctx, "DOGE")
	assert.ErrorIs(t, err, ErrInvalidParam)
	assert.Equal(t, 4, countKind(tr, RequestInfo), "a miss refreshes the cache")

	_, _, err = c.AssetIndex(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestClient_PlaceOrder(t *testing.T) {
	tr := venueTransport()
	c := newTestClient(t, tr, true)
	ctx := context.Background()

	resp, err := c.PlaceOrder(ctx, OrderRequest{Coin: "ETH", IsBuy: true, Size: 0.1, LimitPx: 3000.123456})
	require.NoError(t, err)
	require.Len(t, resp.Statuses, 1)
	require.NotNil(t, resp.Statuses[0].Resting)
	assert.Equal(t, uint64(42), resp.Statuses[0].Resting.Oid)

	env := tr.envelope(t, len(tr.Requests())-1)
	action, _ := json.Marshal(env["action"])
	assert.JSONEq(t, `{"type":"order","orders":[{"a":1,"b":true,"p":"3000.1","s":"0.1","r":false,"t":{"limit":{"tif":"Gtc"}}}],"grouping":"na"}`, string(action))

	_, err = c.PlaceOrder(ctx, OrderRequest{Coin: "PURR/USDC", Size: 100, LimitPx: 0.21, Cloid: "0x00000000000000000000000000000001"})
	require.NoError(t, err)
	env = tr.envelope(t, len(tr.Requests())-1)
	order := env["action"].(map[string]any)["orders"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(10000), order["a"])
	assert.Equal(t, false, order["b"])
	assert.Equal(t, "0x00000000000000000000000000000001", order["c"])

	assert.Equal(t, 2, countKind(tr, RequestInfo))
	assert.Equal(t, 2, countKind(tr, RequestAction))
}

func TestClient_PlaceOrderRoundsSize(t *testing.T) {
	tr := venueTransport()
	c := newTestClient(t, tr, true)
	ctx := context.Background()

	tests := []struct {
		coin string
		size float64
		want string
	}{
		{coin: "BTC", size: 0.123456789, want: "0.12346"},
		{coin: "ETH", size: 1.00004, want: "1"},
		{coin: "PURR/USDC", size: 100.6, want: "101"},
		{coin: "@107", size: 2.346, want: "2.35"},
	}
	for _, tt := range tests {
		_, err := c.PlaceOrder(ctx, OrderRequest{Coin: tt.coin, IsBuy: true, Size: tt.size, LimitPx: 10})
		require.NoError(t, err, tt.coin)
		env := tr.envelope(t, len(tr.Requests())-1)
		order := env["action"].(map[string]any)["orders"].([]any)[0].(map[string]any)
		assert.Equal(t, tt.want, order["s"], tt.coin)
	}
}

func TestClient_PlaceOrderValidation(t *testing.T) {
	tr := venueTransport()
	c := newTestClient(t, tr, true)
	ctx := context.Background()

	_, err := c.PlaceOrders(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidParam)
	_, err = c.PlaceOrder(ctx, OrderRequest{Coin: "BTC", Size: 0, LimitPx: 1})
	assert.ErrorIs(t, err, ErrInvalidParam)
	_, err = c.PlaceOrder(ctx, OrderRequest{Coin: "BTC", Size: 1, LimitPx: -1})
	assert.ErrorIs(t, err, ErrInvalidParam)
	_, err = c.PlaceOrder(ctx, OrderRequest{Coin: "BTC", Size: 0.000001, LimitPx: 60000})
	assert.ErrorIs(t, err, ErrInvalidParam)
	_, err = c.PlaceOrder(ctx, OrderRequest{Coin: "PURR/USDC", Size: 0.4, LimitPx: 0.21})
	assert.ErrorIs(t, err, ErrInvalidParam)
	_, err = c.UpdateLeverage(ctx, "BTC", 0, true)
	assert.ErrorIs(t, err, ErrInvalidParam)

	assert.Equal(t, 0, countKind(tr, RequestAction))
}

func TestClient_Actions(t *testing.T) {
	tr := venueTransport()
	c := newTestClient(t, tr, true)
	ctx := context.Background()

	_, err := c.CancelOrder(ctx, "BTC", 77)
	require.NoError(t, err)
	action, _ := json.Marshal(tr.envelope(t, len(tr.Requests())-1)["action"])
	assert.JSONEq(t, `{"type":"cancel","cancels":[{"a":0,"o":77}]}`, string(action))

	_, err = c.UpdateLeverage(ctx, "ETH", 10, false)
	require.NoError(t, err)
	action, _ = json.Marshal(tr.envelope(t, len(tr.Requests())-1)["action"])
	assert.JSONEq(t, `{"type":"updateLeverage","asset":1,"isCross":false,"leverage":10}`, string(action))

	_, err = c.UsdSend(ctx, common.HexToAddress("0x5E9ee1089755c3435139848e47e6635505d5a13a"), 1.5)
	require.NoError(t, err)
	env := tr.envelope(t, len(tr.Requests())-1)
	send := env["action"].(map[string]any)
	assert.Equal(t, "usdSend", send["type"])
	assert.Equal(t, "0x5e9ee1089755c3435139848e47e6635505d5a13a", send["destination"])
	assert.Equal(t, "1.5", send["amount"])
	assert.Equal(t, "Testnet", send["hyperliquidChain"])
	assert.Equal(t, DefaultSignatureChainID, send["signatureChainId"])

	_, err = c.Noop(ctx)
	require.NoError(t, err)
	action, _ = json.Marshal(tr.envelope(t, len(tr.Requests())-1)["action"])
	assert.JSONEq(t, `{"type":"noop"}`, string(action))
}

func TestClient_ReadOnly(t *testing.T) {
	c := newTestClient(t, venueTransport(), false)
	assert.Nil(t, c.Exchange())
	assert.NotNil(t, c.Info())

	_, err := c.Noop(context.Background())
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(ClientConfig{Network: "devnet"})
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = NewClient(ClientConfig{APIURL: "ws://api.hyperliquid.xyz"})
	assert.Error(t, err)

	c, err := NewClient(ClientConfig{})
	require.NoError(t, err)
	assert.Equal(t, Mainnet, c.network)
}
