package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Info is the read path: {type: ...} requests posted to /info
type Info struct {
	transport Transport
}

func NewInfo(transport Transport) *Info {
	return &Info{transport: transport}
}

// Query posts an arbitrary info request and returns the raw reply
func (i *Info) Query(ctx context.Context, payload map[string]any) (json.RawMessage, error) {
	if t, _ := payload["type"].(string); t == "" {
		return nil, &InvalidParamError{Message: "info request type is required"}
	}
	return i.transport.Request(ctx, RequestInfo, payload)
}

func (i *Info) query(ctx context.Context, payload map[string]any, out any) error {
	raw, err := i.Query(ctx, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &TransportError{Body: truncate(string(raw)), Err: fmt.Errorf("failed to decode %v response: %w", payload["type"], err)}
	}
	return nil
}

// AssetInfo describes one perpetual
type AssetInfo struct {
	Name         string `json:"name"`
	SzDecimals   int    `json:"szDecimals"`
	MaxLeverage  int    `json:"maxLeverage"`
	OnlyIsolated bool   `json:"onlyIsolated,omitempty"`
}

type Meta struct {
	Universe []AssetInfo `json:"universe"`
}

type SpotToken struct {
	Name        string `json:"name"`
	SzDecimals  int    `json:"szDecimals"`
	WeiDecimals int    `json:"weiDecimals"`
	Index       int    `json:"index"`
	TokenID     string `json:"tokenId"`
}

type SpotPair struct {
	Name   string `json:"name"`
	Tokens []int  `json:"tokens"`
	Index  int    `json:"index"`
}

type SpotMeta struct {
	Universe []SpotPair  `json:"universe"`
	Tokens   []SpotToken `json:"tokens"`
}

type MarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalRawUsd     string `json:"totalRawUsd"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

// UserState is the clearinghouse state of a perp account
type UserState struct {
	MarginSummary      MarginSummary     `json:"marginSummary"`
	CrossMarginSummary MarginSummary     `json:"crossMarginSummary"`
	Withdrawable       string            `json:"withdrawable"`
	AssetPositions     []json.RawMessage `json:"assetPositions"`
	Time               int64             `json:"time"`
}

type OpenOrder struct {
	Coin      string `json:"coin"`
	LimitPx   string `json:"limitPx"`
	Oid       uint64 `json:"oid"`
	Side      string `json:"side"`
	Sz        string `json:"sz"`
	Timestamp int64  `json:"timestamp"`
}

// AllMids returns the mid price of every coin
func (i *Info) AllMids(ctx context.Context) (map[string]string, error) {
	var mids map[string]string
	if err := i.query(ctx, map[string]any{"type": "allMids"}, &mids); err != nil {
		return nil, err
	}
	return mids, nil
}

func (i *Info) Meta(ctx context.Context) (*Meta, error) {
	var meta Meta
	if err := i.query(ctx, map[string]any{"type": "meta"}, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (i *Info) SpotMeta(ctx context.Context) (*SpotMeta, error) {
	var meta SpotMeta
	if err := i.query(ctx, map[string]any{"type": "spotMeta"}, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (i *Info) UserState(ctx context.Context, user common.Address) (*UserState, error) {
	var state UserState
	payload := map[string]any{"type": "clearinghouseState", "user": strings.ToLower(user.Hex())}
	if err := i.query(ctx, payload, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (i *Info) OpenOrders(ctx context.Context, user common.Address) ([]OpenOrder, error) {
	var orders []OpenOrder
	payload := map[string]any{"type": "openOrders", "user": strings.ToLower(user.Hex())}
	if err := i.query(ctx, payload, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}
