package signer

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/kaifufi/hyperliquid-sdk-go/chain"
)

// APITypedData converts td into the eth_signTypedData_v4 representation
// used by wallets and remote signers.
func APITypedData(td *chain.TypedData) apitypes.TypedData {
	types := apitypes.Types{}
	for _, f := range td.Domain.Fields() {
		types[chain.EIP712DomainType] = append(types[chain.EIP712DomainType], apitypes.Type{Name: f.Name, Type: f.Type})
	}
	for name, fields := range td.Types {
		list := make([]apitypes.Type, 0, len(fields))
		for _, f := range fields {
			list = append(list, apitypes.Type{Name: f.Name, Type: f.Type})
		}
		types[name] = list
	}

	domain := apitypes.TypedDataDomain{
		Name:    td.Domain.Name,
		Version: td.Domain.Version,
	}
	if td.Domain.ChainID != nil {
		domain.ChainId = (*math.HexOrDecimal256)(new(big.Int).Set(td.Domain.ChainID))
	}
	if td.Domain.VerifyingContract != nil {
		domain.VerifyingContract = td.Domain.VerifyingContract.Hex()
	}

	message := make(apitypes.TypedDataMessage, len(td.Message))
	for k, v := range td.Message {
		message[k] = wireValue(v)
	}

	return apitypes.TypedData{
		Types:       types,
		PrimaryType: td.PrimaryType,
		Domain:      domain,
		Message:     message,
	}
}

// TypedDataJSON renders td as the JSON document wallets expect
func TypedDataJSON(td *chain.TypedData) ([]byte, error) {
	return json.Marshal(APITypedData(td))
}

// wireValue renders integers as decimal strings so no JSON consumer
// rounds them through float64.
func wireValue(v any) any {
	switch x := v.(type) {
	case *big.Int:
		return x.String()
	case uint64:
		return new(big.Int).SetUint64(x).String()
	case int64:
		return big.NewInt(x).String()
	case common.Address:
		return x.Hex()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, inner := range x {
			out[k] = wireValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, inner := range x {
			out[i] = wireValue(inner)
		}
		return out
	default:
		return v
	}
}
