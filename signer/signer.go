// Package signer adapts key holders to the venue's EIP-712 signing needs.
//
// Every provider produces a chain.Signature with 32-byte zero-padded r and s
// and v in {27, 28}.
package signer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/kaifufi/hyperliquid-sdk-go/chain"
)

// Signer signs EIP-712 typed data on behalf of one address
type Signer interface {
	SignTypedData(ctx context.Context, td *chain.TypedData) (chain.Signature, error)
	Address(ctx context.Context) (common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Provider names reported in SigningError
const (
	ProviderPrivateKey = "privateKey"
	ProviderRemote     = "remote"
	ProviderKMS        = "kms"
	ProviderCallback   = "callback"
)

// SigningError is returned when a provider fails to produce a signature.
// Signing failures are never retried.
type SigningError struct {
	Provider string
	Err      error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing failed (%s): %v", e.Provider, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// Cause lets errors.Cause reach the provider's root failure
func (e *SigningError) Cause() error { return errors.Cause(e.Err) }

func signingErr(provider string, err error, msg string) error {
	return &SigningError{Provider: provider, Err: errors.Wrap(err, msg)}
}

// Sign asks s to sign td and returns the signature in canonical wire form.
// Any failure comes back as a *SigningError.
func Sign(ctx context.Context, s Signer, td *chain.TypedData) (chain.Signature, error) {
	sig, err := s.SignTypedData(ctx, td)
	if err != nil {
		var se *SigningError
		var ee *chain.EncodingError
		if errors.As(err, &se) || errors.As(err, &ee) {
			return chain.Signature{}, err
		}
		return chain.Signature{}, &SigningError{Provider: fmt.Sprintf("%T", s), Err: err}
	}

	raw, err := sig.Bytes()
	if err != nil {
		return chain.Signature{}, &SigningError{Provider: fmt.Sprintf("%T", s), Err: errors.Wrap(err, "malformed signature")}
	}
	return chain.SignatureFromBytes(raw)
}
