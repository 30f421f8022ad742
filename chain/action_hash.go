package chain

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vmihailenco/msgpack/v5"
)

// Phantom agent sources
const (
	MainnetSource = "a"
	TestnetSource = "b"
)

// PackAction serializes an action with msgpack, using its json tags as
// keys and struct declaration order as the key order.
func PackAction(action any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(action); err != nil {
		return nil, fmt.Errorf("failed to msgpack action: %w", err)
	}
	return buf.Bytes(), nil
}

// ActionHash computes the connection id of a direct action:
// keccak256(msgpack(action) ++ nonce ++ vault flag [++ vault] [++ 0x00 ++ expiresAfter])
func ActionHash(action any, nonce uint64, vault *common.Address, expiresAfter *uint64) (common.Hash, error) {
	data, err := PackAction(action)
	if err != nil {
		return common.Hash{}, err
	}

	data = binary.BigEndian.AppendUint64(data, nonce)
	if vault == nil {
		data = append(data, 0x00)
	} else {
		data = append(data, 0x01)
		data = append(data, vault.Bytes()...)
	}
	if expiresAfter != nil {
		data = append(data, 0x00)
		data = binary.BigEndian.AppendUint64(data, *expiresAfter)
	}
	return crypto.Keccak256Hash(data), nil
}

// AgentTypedData builds the phantom agent payload for a connection id
func AgentTypedData(connectionID common.Hash, mainnet bool) *TypedData {
	source := TestnetSource
	if mainnet {
		source = MainnetSource
	}
	return &TypedData{
		Types:       AgentTypes,
		PrimaryType: AgentType,
		Domain:      ExchangeDomain(),
		Message: map[string]any{
			"source":       source,
			"connectionId": connectionID,
		},
	}
}

// L1TypedData hashes a direct action and wraps it in a phantom agent
func L1TypedData(action any, nonce uint64, vault *common.Address, expiresAfter *uint64, mainnet bool) (*TypedData, error) {
	h, err := ActionHash(action, nonce, vault, expiresAfter)
	if err != nil {
		return nil, err
	}
	return AgentTypedData(h, mainnet), nil
}
