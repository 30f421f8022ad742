package signer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/kaifufi/hyperliquid-sdk-go/chain"
)

// SignFunc receives the signing address and the eth_signTypedData_v4 JSON
// document and returns a 65-byte hex signature, as injected wallets do.
type SignFunc func(ctx context.Context, address common.Address, typedDataJSON []byte) (string, error)

// CallbackSigner hands signing to caller code such as a wallet bridge
type CallbackSigner struct {
	address common.Address
	chainID *big.Int
	fn      SignFunc
}

var _ Signer = (*CallbackSigner)(nil)

func NewCallbackSigner(address common.Address, chainID *big.Int, fn SignFunc) *CallbackSigner {
	if chainID == nil {
		chainID = big.NewInt(chain.ExchangeDomainChainID)
	}
	return &CallbackSigner{address: address, chainID: chainID, fn: fn}
}

func (s *CallbackSigner) SignTypedData(ctx context.Context, td *chain.TypedData) (chain.Signature, error) {
	if _, err := chain.HashTypedData(td); err != nil {
		return chain.Signature{}, err
	}
	payload, err := TypedDataJSON(td)
	if err != nil {
		return chain.Signature{}, signingErr(ProviderCallback, err, "failed to encode typed data")
	}

	hexSig, err := s.fn(ctx, s.address, payload)
	if err != nil {
		return chain.Signature{}, signingErr(ProviderCallback, err, "wallet rejected request")
	}
	raw, err := hexutil.Decode(hexSig)
	if err != nil {
		return chain.Signature{}, signingErr(ProviderCallback, err, "invalid signature encoding")
	}
	sig, err := chain.SignatureFromBytes(raw)
	if err != nil {
		return chain.Signature{}, &SigningError{Provider: ProviderCallback, Err: errors.WithStack(err)}
	}
	return sig, nil
}

func (s *CallbackSigner) Address(context.Context) (common.Address, error) {
	return s.address, nil
}

func (s *CallbackSigner) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(s.chainID), nil
}
