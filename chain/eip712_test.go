package chain

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mailTypes() Types {
	return Types{
		"Person": {
			{Name: "name", Type: "string"},
			{Name: "wallet", Type: "address"},
		},
		"Mail": {
			{Name: "from", Type: "Person"},
			{Name: "to", Type: "Person"},
			{Name: "contents", Type: "string"},
		},
	}
}

func mailTypedData() *TypedData {
	contract := common.HexToAddress("0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC")
	return &TypedData{
		Types:       mailTypes(),
		PrimaryType: "Mail",
		Domain: Domain{
			Name:              "Ether Mail",
			Version:           "1",
			ChainID:           big.NewInt(1),
			VerifyingContract: &contract,
		},
		Message: map[string]any{
			"from": map[string]any{
				"name":   "Cow",
				"wallet": "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826",
			},
			"to": map[string]any{
				"name":   "Bob",
				"wallet": common.HexToAddress("0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"),
			},
			"contents": "Hello, Bob!",
		},
	}
}

func TestEncodeType_Mail(t *testing.T) {
	enc, err := EncodeType(mailTypes(), "Mail")
	require.NoError(t, err)
	assert.Equal(t, "Mail(Person from,Person to,string contents)Person(string name,address wallet)", enc)

	th, err := TypeHash(mailTypes(), "Mail")
	require.NoError(t, err)
	assert.Equal(t, "0xa0cedeb2dc280ba39b857546d74f5549c3a1d7bdc2dd96bf881f76108e23dac2", th.Hex())
}

func TestEncodeType_PrimaryStaysFirst(t *testing.T) {
	types := Types{
		"Zebra": {{Name: "b", Type: "Beta"}, {Name: "a", Type: "Alpha[]"}},
		"Beta":  {{Name: "x", Type: "uint8"}},
		"Alpha": {{Name: "y", Type: "Beta"}},
	}
	enc, err := EncodeType(types, "Zebra")
	require.NoError(t, err)
	assert.Equal(t, "Zebra(Beta b,Alpha[] a)Alpha(Beta y)Beta(uint8 x)", enc)
}

func TestHashTypedData_MailVector(t *testing.T) {
	td := mailTypedData()

	sep, err := td.Domain.Separator()
	require.NoError(t, err)
	assert.Equal(t, "0xf2cee375fa42b42143804025fc449deafd50cc031ca257e0b194a650a912090f", sep.Hex())

	structHash, err := HashStruct(td.Types, td.PrimaryType, td.Message)
	require.NoError(t, err)
	assert.Equal(t, "0xc52c0ee5d84264471806290a3f2c4cecfc5490626bf912d01f240d7a274b371e", structHash.Hex())

	digest, err := HashTypedData(td)
	require.NoError(t, err)
	assert.Equal(t, "0xbe609aee343fb3c4b28e1df9e632fca64fcfaede20f02e86244efddf30957bd2", digest.Hex())

	again, err := HashTypedData(mailTypedData())
	require.NoError(t, err)
	assert.Equal(t, digest, again)
}

func TestHashTypedData_MatchesGoEthereum(t *testing.T) {
	types := Types{
		"Order": {
			{Name: "trader", Type: "address"},
			{Name: "legs", Type: "Leg[]"},
			{Name: "tag", Type: "bytes32"},
			{Name: "memo", Type: "bytes"},
			{Name: "delta", Type: "int64"},
			{Name: "active", Type: "bool"},
		},
		"Leg": {
			{Name: "asset", Type: "uint32"},
			{Name: "size", Type: "string"},
		},
	}
	message := map[string]any{
		"trader": "0x14791697260e4c9a71f18484c9f997b308e59325",
		"legs": []any{
			map[string]any{"asset": "7", "size": "1.5"},
			map[string]any{"asset": "11", "size": "0.25"},
		},
		"tag":    "0xab" + strings.Repeat("00", 31),
		"memo":   "0xdeadbeef",
		"delta":  "-42",
		"active": true,
	}
	ours := &TypedData{
		Types:       types,
		PrimaryType: "Order",
		Domain:      UserSignedDomain(big.NewInt(421614)),
		Message:     message,
	}
	digest, err := HashTypedData(ours)
	require.NoError(t, err)

	apiTypes := apitypes.Types{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
	}
	for name, fields := range types {
		for _, f := range fields {
			apiTypes[name] = append(apiTypes[name], apitypes.Type{Name: f.Name, Type: f.Type})
		}
	}
	theirs := apitypes.TypedData{
		Types:       apiTypes,
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              UserSignedDomainName,
			Version:           UserSignedDomainVersion,
			ChainId:           math.NewHexOrDecimal256(421614),
			VerifyingContract: common.Address{}.Hex(),
		},
		Message: message,
	}
	expected, _, err := apitypes.TypedDataAndHash(theirs)
	require.NoError(t, err)
	assert.Equal(t, hexutil.Encode(expected), digest.Hex())
}

func TestHashStruct_FieldOrderOfInputIrrelevant(t *testing.T) {
	types := Types{"T": {{Name: "a", Type: "string"}, {Name: "b", Type: "uint64"}}}

	var m1, m2 map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x","b":5}`), &m1))
	require.NoError(t, json.Unmarshal([]byte(`{"b":5,"a":"x"}`), &m2))

	h1, err := HashStruct(types, "T", m1)
	require.NoError(t, err)
	h2, err := HashStruct(types, "T", m2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestHashStruct_MissingStructFieldIsZeroWord(t *testing.T) {
	types := mailTypes()
	withoutTo := map[string]any{
		"from":     map[string]any{"name": "Cow", "wallet": "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826"},
		"contents": "Hello, Bob!",
	}
	withNilTo := map[string]any{
		"from":     withoutTo["from"],
		"to":       nil,
		"contents": "Hello, Bob!",
	}
	h1, err := HashStruct(types, "Mail", withoutTo)
	require.NoError(t, err)
	h2, err := HashStruct(types, "Mail", withNilTo)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestHashStruct_Errors(t *testing.T) {
	tests := []struct {
		name    string
		types   Types
		message map[string]any
		path    string
	}{
		{
			name:    "missing primitive",
			types:   mailTypes(),
			message: map[string]any{"from": map[string]any{"name": "Cow"}, "contents": "x"},
			path:    "from.wallet",
		},
		{
			name:    "short address",
			types:   mailTypes(),
			message: map[string]any{"from": map[string]any{"name": "Cow", "wallet": "0x1234"}, "contents": "x"},
			path:    "from.wallet",
		},
		{
			name:    "undeclared field",
			types:   mailTypes(),
			message: map[string]any{"contents": "x", "extra": "y"},
			path:    "extra",
		},
		{
			name:    "unknown type",
			types:   Types{"T": {{Name: "v", Type: "float32"}}},
			message: map[string]any{"v": 1},
			path:    "v",
		},
		{
			name:    "bare uint",
			types:   Types{"T": {{Name: "v", Type: "uint"}}},
			message: map[string]any{"v": 1},
			path:    "v",
		},
		{
			name:    "odd int width",
			types:   Types{"T": {{Name: "v", Type: "int7"}}},
			message: map[string]any{"v": 1},
			path:    "v",
		},
		{
			name:    "bytesN length mismatch",
			types:   Types{"T": {{Name: "v", Type: "bytes4"}}},
			message: map[string]any{"v": "0x010203"},
			path:    "v",
		},
		{
			name:    "array expected",
			types:   Types{"T": {{Name: "v", Type: "string[]"}}},
			message: map[string]any{"v": "nope"},
			path:    "v",
		},
		{
			name:    "fixed array length",
			types:   Types{"T": {{Name: "v", Type: "uint8[2]"}}},
			message: map[string]any{"v": []any{1, 2, 3}},
			path:    "v",
		},
		{
			name:    "array element",
			types:   Types{"T": {{Name: "v", Type: "bool[]"}}},
			message: map[string]any{"v": []any{true, "no"}},
			path:    "v[1]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := "T"
			if _, ok := tt.types["Mail"]; ok {
				primary = "Mail"
			}
			_, err := HashStruct(tt.types, primary, tt.message)
			require.Error(t, err)
			var encErr *EncodingError
			require.ErrorAs(t, err, &encErr)
			assert.Equal(t, tt.path, encErr.Path)
		})
	}
}

func TestEncodeValue_Integers(t *testing.T) {
	ff := bytes.Repeat([]byte{0xff}, 32)

	tests := []struct {
		name  string
		typ   string
		value any
		want  []byte
	}{
		{"uint8 wraps", "uint8", 256, make([]byte, 32)},
		{"uint8 of -1", "uint8", -1, common.LeftPadBytes([]byte{0xff}, 32)},
		{"int8 of -1", "int8", int8(-1), ff},
		{"int16 overflow goes negative", "int16", 0x8000, append(bytes.Repeat([]byte{0xff}, 30), 0x80, 0x00)},
		{"uint64 max", "uint64", uint64(1<<64 - 1), common.LeftPadBytes(bytes.Repeat([]byte{0xff}, 8), 32)},
		{"int256 of -1 from string", "int256", "-1", ff},
		{"uint256 hex", "uint256", "0x0100", common.LeftPadBytes([]byte{0x01, 0x00}, 32)},
		{"json number", "uint32", json.Number("7"), common.LeftPadBytes([]byte{7}, 32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeValue(nil, tt.typ, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeValue_FixedBytesLeftAligned(t *testing.T) {
	got, err := EncodeValue(nil, "bytes2", []byte{0xab, 0xcd})
	require.NoError(t, err)
	assert.Equal(t, common.RightPadBytes([]byte{0xab, 0xcd}, 32), got)
}
