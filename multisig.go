package hyperliquid

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kaifufi/hyperliquid-sdk-go/actions"
	"github.com/kaifufi/hyperliquid-sdk-go/chain"
	"github.com/kaifufi/hyperliquid-sdk-go/nonce"
	"github.com/kaifufi/hyperliquid-sdk-go/signer"
)

// MultiSigConfig routes every action through a multi-sig account. The
// exchange's own signer is the leader that relays the outer action.
type MultiSigConfig struct {
	User    common.Address
	Signers []signer.Signer
}

func (e *Exchange) executeMultiSig(ctx context.Context, inner actions.Action, o callOptions) (*ExchangeResponse, error) {
	if _, nested := inner.(*actions.MultiSigAction); nested {
		return nil, &InvalidParamError{Message: "multiSig actions cannot be nested"}
	}
	identity, err := e.identity(ctx)
	if err != nil {
		return nil, err
	}
	multiSigUser := strings.ToLower(e.config.MultiSig.User.Hex())
	chainName := e.hyperliquidChain()

	var resp *ExchangeResponse
	err = e.nonces.Do(ctx, identity, func(ctx context.Context, n uint64) error {
		userSigned, isUserSigned := inner.(actions.UserSignedAction)
		if isUserSigned {
			userSigned.SetEnvelope(e.config.SignatureChainID, chainName, n)
		}

		sigs, err := e.collectSignatures(ctx, inner, multiSigUser, identity, n, o)
		if err != nil {
			return err
		}

		outer := &actions.MultiSigAction{
			Type:             "multiSig",
			SignatureChainID: e.config.SignatureChainID,
			Signatures:       sigs,
			Payload: actions.MultiSigPayload{
				MultiSigUser: multiSigUser,
				OuterSigner:  identity,
				Action:       inner,
			},
		}

		hash, err := chain.ActionHash(outer.HashBody(), n, o.vault, o.expiresAfter)
		if err != nil {
			return err
		}
		env := &actions.SendMultiSigEnvelope{MultiSigActionHash: hash}
		env.SetEnvelope(e.config.SignatureChainID, chainName, n)
		td, err := actions.UserSignedTypedData(env, e.config.SignatureChainID)
		if err != nil {
			return err
		}
		sig, err := signer.Sign(ctx, e.signer, td)
		if err != nil {
			return err
		}

		e.logger.Debug("Relaying multi-sig action",
			zap.String("multiSigUser", multiSigUser),
			zap.String("inner", inner.ActionType()),
			zap.Int("signatures", len(sigs)),
			zap.Stringer("hash", hash))

		resp, err = e.submit(ctx, newEnvelope(outer, n, sig, o.vault, o.expiresAfter))
		return err
	}, o.nonceOptions()...)
	return resp, err
}

// collectSignatures asks every authorized signer for its signature in
// parallel. Results keep the configured signer order.
func (e *Exchange) collectSignatures(ctx context.Context, inner actions.Action, multiSigUser, outerSigner string, n uint64, o callOptions) ([]chain.Signature, error) {
	signers := e.config.MultiSig.Signers
	sigs := make([]chain.Signature, len(signers))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range signers {
		g.Go(func() error {
			td, err := e.innerTypedData(inner, multiSigUser, outerSigner, n, o)
			if err != nil {
				return err
			}
			addr, err := s.Address(gctx)
			if err != nil {
				return &signer.SigningError{Provider: fmt.Sprintf("%T", s), Err: err}
			}
			// the batch nonce is already held by the leader's queue turn
			return e.nonces.Do(gctx, strings.ToLower(addr.Hex()), func(ctx context.Context, _ uint64) error {
				sig, err := signer.Sign(ctx, s, td)
				if err != nil {
					return err
				}
				sigs[i], err = sig.Trimmed()
				return err
			}, nonce.WithoutQueue(), nonce.WithNonce(n))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sigs, nil
}

// innerTypedData builds a fresh signing request for one signer goroutine
func (e *Exchange) innerTypedData(inner actions.Action, multiSigUser, outerSigner string, n uint64, o callOptions) (*chain.TypedData, error) {
	if us, ok := inner.(actions.UserSignedAction); ok {
		return actions.MultiSigUserSignedTypedData(us, e.config.SignatureChainID, multiSigUser, outerSigner)
	}
	payload := actions.MultiSigL1Payload(multiSigUser, outerSigner, inner)
	return chain.L1TypedData(payload, n, o.vault, o.expiresAfter, e.config.Network.IsMainnet())
}
