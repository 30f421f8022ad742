package actions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaifufi/hyperliquid-sdk-go/chain"
)

func TestNormalizeDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.50", "1.5"},
		{"1.5000", "1.5"},
		{"1.5", "1.5"},
		{"1.50000", "1.5"},
		{"2.0", "2"},
		{"0.0", "0"},
		{"100", "100"},
		{"0.00010", "0.0001"},
		{"-3.10", "-3.1"},
		{" 7.70 ", "7.7"},
		{"00.50", "0.5"},
		{"007", "7"},
		{"-0.0", "0"},
		{"-0", "0"},
		{"-00.010", "-0.01"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeDecimal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "1.", ".5", "1e5", "abc", "1,5"} {
		_, err := NormalizeDecimal(bad)
		assert.Error(t, err, bad)
	}
}

const orderJSONA = `{
	"type": "order",
	"orders": [{"a": 1, "b": true, "p": "100.50", "s": "0.10", "r": false, "t": {"limit": {"tif": "Gtc"}}}],
	"grouping": "na"
}`

const orderJSONB = `{
	"grouping": "na",
	"orders": [{"t": {"limit": {"tif": "Gtc"}}, "r": false, "s": "0.1", "p": "100.5", "b": true, "a": 1}],
	"type": "order"
}`

func TestParseAction_KeyOrderIndependent(t *testing.T) {
	a, err := ParseAction([]byte(orderJSONA))
	require.NoError(t, err)
	b, err := ParseAction([]byte(orderJSONB))
	require.NoError(t, err)

	packedA, err := chain.PackAction(a)
	require.NoError(t, err)
	packedB, err := chain.PackAction(b)
	require.NoError(t, err)
	assert.Equal(t, packedA, packedB)

	h, err := chain.ActionHash(a, 1700000000000, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "0x56e78ab6718d4e662f949ed74402e65ed467b56373d5ac1e96bf920f4d3fc2b5", h.Hex())
}

func TestCanonicalize_Idempotent(t *testing.T) {
	inputs := []Action{
		&OrderAction{
			Orders: []OrderWire{{
				Asset: 3, IsBuy: false, LimitPx: "2.000", Size: "10.0", ReduceOnly: true,
				OrderType: OrderTypeWire{Trigger: &TriggerWire{IsMarket: true, TriggerPx: "1.90", Tpsl: TpslStopLoss}},
				Cloid:     "0x0000000000000000000000000000ABCD",
			}},
			Builder: &BuilderFee{Builder: "0x1719884EB866CB12B2287399B15F7DB5E7D775EA", Fee: 10},
		},
		&BatchModifyAction{Modifies: []ModifyWire{{
			Oid:   OrderRef{Cloid: "0x0000000000000000000000000000ABCD"},
			Order: OrderWire{Asset: 1, LimitPx: "1.0", Size: "1", OrderType: OrderTypeWire{Limit: &LimitWire{Tif: TifAlo}}},
		}}},
		&UsdSendAction{Destination: "0x5E9EE1089755C3435139848E47E6635505D5A13A", Amount: "1.000"},
		&ApproveBuilderFeeAction{MaxFeeRate: "0.0010%", Builder: "0x1719884eb866cb12b2287399b15f7db5e7d775ea"},
		&UsdClassTransferAction{Amount: "5.50 subaccount:0x1719884eb866cb12b2287399b15f7db5e7d775ea", ToPerp: true},
		&CancelAction{},
	}
	for _, in := range inputs {
		t.Run(in.ActionType(), func(t *testing.T) {
			once, err := Canonicalize(in)
			require.NoError(t, err)
			twice, err := Canonicalize(once)
			require.NoError(t, err)

			p1, err := chain.PackAction(once)
			require.NoError(t, err)
			p2, err := chain.PackAction(twice)
			require.NoError(t, err)
			assert.Equal(t, p1, p2)

			j1, err := json.Marshal(once)
			require.NoError(t, err)
			j2, err := json.Marshal(twice)
			require.NoError(t, err)
			assert.JSONEq(t, string(j1), string(j2))
			assert.Equal(t, in.ActionType(), jsonFields(once)["type"])
		})
	}
}

func TestCanonicalize_Normalizations(t *testing.T) {
	out, err := Canonicalize(&OrderAction{
		Orders: []OrderWire{{
			Asset: 3, LimitPx: "2.000", Size: "10.0",
			OrderType: OrderTypeWire{Trigger: &TriggerWire{TriggerPx: "1.90", Tpsl: TpslTakeProfit}},
			Cloid:     "0x0000000000000000000000000000ABCD",
		}},
		Builder: &BuilderFee{Builder: "0x1719884EB866CB12B2287399B15F7DB5E7D775EA", Fee: 10},
	})
	require.NoError(t, err)
	order := out.(*OrderAction)
	assert.Equal(t, "order", order.Type)
	assert.Equal(t, GroupingNA, order.Grouping)
	assert.Equal(t, "2", order.Orders[0].LimitPx)
	assert.Equal(t, "10", order.Orders[0].Size)
	assert.Equal(t, "1.9", order.Orders[0].OrderType.Trigger.TriggerPx)
	assert.Equal(t, "0x0000000000000000000000000000abcd", order.Orders[0].Cloid)
	assert.Equal(t, "0x1719884eb866cb12b2287399b15f7db5e7d775ea", order.Builder.Builder)

	fee, err := Canonicalize(&ApproveBuilderFeeAction{MaxFeeRate: "0.0010%", Builder: "0x1719884eb866cb12b2287399b15f7db5e7d775ea"})
	require.NoError(t, err)
	assert.Equal(t, "0.001%", fee.(*ApproveBuilderFeeAction).MaxFeeRate)

	transfer, err := Canonicalize(&UsdClassTransferAction{Amount: "5.50 subaccount:0xabc"})
	require.NoError(t, err)
	assert.Equal(t, "5.5 subaccount:0xabc", transfer.(*UsdClassTransferAction).Amount)
}

func TestCanonicalize_OptionalFieldsOmitted(t *testing.T) {
	out, err := Canonicalize(&OrderAction{Orders: []OrderWire{{
		Asset: 1, LimitPx: "1", Size: "1", OrderType: OrderTypeWire{Limit: &LimitWire{Tif: TifIoc}},
	}}})
	require.NoError(t, err)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"order","orders":[{"a":1,"b":false,"p":"1","s":"1","r":false,"t":{"limit":{"tif":"Ioc"}}}],"grouping":"na"}`, string(data))

	sched, err := Canonicalize(&ScheduleCancelAction{})
	require.NoError(t, err)
	packed, err := chain.PackAction(sched)
	require.NoError(t, err)
	// fixmap(1) "type" "scheduleCancel"
	assert.Equal(t, byte(0x81), packed[0])
}

func TestCanonicalize_EmptyListsPackAsArrays(t *testing.T) {
	out, err := Canonicalize(&CancelAction{})
	require.NoError(t, err)
	packed, err := chain.PackAction(out)
	require.NoError(t, err)
	assert.Equal(t, byte(0x90), packed[len(packed)-1])
}

func TestCanonicalize_Errors(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		path   string
	}{
		{
			name:   "bad price",
			action: &OrderAction{Orders: []OrderWire{{LimitPx: "1,5", Size: "1", OrderType: OrderTypeWire{Limit: &LimitWire{Tif: TifGtc}}}}},
			path:   "orders[0].p",
		},
		{
			name:   "both order kinds",
			action: &OrderAction{Orders: []OrderWire{{LimitPx: "1", Size: "1", OrderType: OrderTypeWire{Limit: &LimitWire{}, Trigger: &TriggerWire{TriggerPx: "1"}}}}},
			path:   "orders[0].t",
		},
		{
			name:   "short cloid",
			action: &CancelByCloidAction{Cancels: []CancelByCloidWire{{Asset: 1, Cloid: "0x1234"}}},
			path:   "cancels[0].cloid",
		},
		{
			name:   "bad destination",
			action: &UsdSendAction{Destination: "alice", Amount: "1"},
			path:   "destination",
		},
		{
			name:   "missing inner action",
			action: &MultiSigAction{Payload: MultiSigPayload{MultiSigUser: "0x1719884eb866cb12b2287399b15f7db5e7d775ea", OuterSigner: "0x1719884eb866cb12b2287399b15f7db5e7d775ea"}},
			path:   "payload.action",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Canonicalize(tt.action)
			var encErr *chain.EncodingError
			require.ErrorAs(t, err, &encErr)
			assert.Equal(t, tt.path, encErr.Path)
		})
	}
}

func TestParseAction_Rejects(t *testing.T) {
	_, err := ParseAction([]byte(`{"type":"teleport"}`))
	var encErr *chain.EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "type", encErr.Path)

	_, err = ParseAction([]byte(`{"type":"noop","extra":1}`))
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "noop", encErr.Path)
}

func TestParseAction_MultiSigWithInnerAction(t *testing.T) {
	data := []byte(`{
		"type": "multiSig",
		"signatureChainId": "0x66EEE",
		"signatures": [{"r": "0x1", "s": "0x2", "v": 27}],
		"payload": {
			"multiSigUser": "0x1234567890123456789012345678901234567890",
			"outerSigner": "0x14791697260E4C9A71F18484C9F997B308E59325",
			"action": {"cancels": [], "type": "cancel"}
		}
	}`)
	a, err := ParseAction(data)
	require.NoError(t, err)

	ms := a.(*MultiSigAction)
	assert.Equal(t, "0x66eee", ms.SignatureChainID)
	assert.Equal(t, "0x14791697260e4c9a71f18484c9f997b308e59325", ms.Payload.OuterSigner)
	require.IsType(t, &CancelAction{}, ms.Payload.Action)
}

func TestOrderRef_Encodings(t *testing.T) {
	byOid, err := json.Marshal(OrderRef{Oid: 42})
	require.NoError(t, err)
	assert.Equal(t, "42", string(byOid))

	byCloid, err := json.Marshal(OrderRef{Cloid: "0x0000000000000000000000000000abcd"})
	require.NoError(t, err)
	assert.Equal(t, `"0x0000000000000000000000000000abcd"`, string(byCloid))

	var ref OrderRef
	require.NoError(t, json.Unmarshal([]byte(`"0xabc"`), &ref))
	assert.Equal(t, OrderRef{Cloid: "0xabc"}, ref)
	require.NoError(t, json.Unmarshal([]byte(`7`), &ref))
	assert.Equal(t, OrderRef{Oid: 7}, ref)

	packed, err := chain.PackAction(OrderRef{Oid: 300})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xcd, 0x01, 0x2c}, packed)
}

func TestCanonicalize_NilAction(t *testing.T) {
	for _, a := range []Action{nil, (*OrderAction)(nil), (*UsdSendAction)(nil)} {
		out, err := Canonicalize(a)
		assert.Nil(t, out)
		var encErr *chain.EncodingError
		require.ErrorAs(t, err, &encErr)
		assert.Equal(t, "nil action", encErr.Reason)
	}
}
