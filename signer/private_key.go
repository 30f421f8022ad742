package signer

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/kaifufi/hyperliquid-sdk-go/chain"
)

// PrivateKeySigner signs with a local secp256k1 key
type PrivateKeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

var _ Signer = (*PrivateKeySigner)(nil)

// NewPrivateKeySigner parses a hex private key, with or without 0x prefix.
// chainID is what ChainID reports; nil reports the venue's exchange chain.
func NewPrivateKeySigner(hexKey string, chainID *big.Int) (*PrivateKeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}
	return NewPrivateKeySignerFromKey(key, chainID), nil
}

// NewPrivateKeySignerFromKey wraps an already parsed key
func NewPrivateKeySignerFromKey(key *ecdsa.PrivateKey, chainID *big.Int) *PrivateKeySigner {
	if chainID == nil {
		chainID = big.NewInt(chain.ExchangeDomainChainID)
	}
	return &PrivateKeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}
}

func (s *PrivateKeySigner) SignTypedData(_ context.Context, td *chain.TypedData) (chain.Signature, error) {
	digest, err := chain.HashTypedData(td)
	if err != nil {
		return chain.Signature{}, err
	}
	sig, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return chain.Signature{}, signingErr(ProviderPrivateKey, err, "failed to sign digest")
	}
	return chain.SignatureFromBytes(sig)
}

func (s *PrivateKeySigner) Address(context.Context) (common.Address, error) {
	return s.address, nil
}

func (s *PrivateKeySigner) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(s.chainID), nil
}
