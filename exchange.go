package hyperliquid

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/kaifufi/hyperliquid-sdk-go/actions"
	"github.com/kaifufi/hyperliquid-sdk-go/chain"
	"github.com/kaifufi/hyperliquid-sdk-go/nonce"
	"github.com/kaifufi/hyperliquid-sdk-go/signer"
)

// Exchange signs and submits actions. The signing shape is picked per
// action: multi-party when a MultiSig is configured, user-signed for
// actions.UserSignedAction, direct otherwise.
type Exchange struct {
	config    ExchangeConfig
	signer    signer.Signer
	transport Transport
	nonces    *nonce.Manager
	logger    *zap.Logger
}

// NewExchange creates an exchange client. A nil nonces gets a private
// manager; share one manager between exchanges that use the same signer.
func NewExchange(s signer.Signer, transport Transport, cfg ExchangeConfig, nonces *nonce.Manager, logger *zap.Logger) (*Exchange, error) {
	if s == nil {
		return nil, &InvalidParamError{Message: "signer is required"}
	}
	if transport == nil {
		return nil, &InvalidParamError{Message: "transport is required"}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if nonces == nil {
		nonces = nonce.NewManager(nil, logger)
	}
	return &Exchange{
		config:    cfg,
		signer:    s,
		transport: transport,
		nonces:    nonces,
		logger:    logger,
	}, nil
}

type callOptions struct {
	vault        *common.Address
	expiresAfter *uint64
	nonce        *uint64
	skipQueue    bool
}

// CallOption overrides exchange settings for one Execute call
type CallOption func(*callOptions)

// WithVaultAddress trades on behalf of a vault or sub-account
func WithVaultAddress(addr common.Address) CallOption {
	return func(o *callOptions) { o.vault = &addr }
}

// WithExpiresAfter makes the venue reject the action after ms (epoch millis)
func WithExpiresAfter(ms uint64) CallOption {
	return func(o *callOptions) { o.expiresAfter = &ms }
}

// WithNonce uses a caller-chosen nonce instead of the sequencer's
func WithNonce(n uint64) CallOption {
	return func(o *callOptions) { o.nonce = &n }
}

// WithoutQueue skips the signer's submission queue; the caller then owns ordering
func WithoutQueue() CallOption {
	return func(o *callOptions) { o.skipQueue = true }
}

func (e *Exchange) resolveOptions(opts []CallOption) callOptions {
	o := callOptions{vault: e.config.VaultAddress, expiresAfter: e.config.ExpiresAfter}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o callOptions) nonceOptions() []nonce.Option {
	var out []nonce.Option
	if o.nonce != nil {
		out = append(out, nonce.WithNonce(*o.nonce))
	}
	if o.skipQueue {
		out = append(out, nonce.WithoutQueue())
	}
	return out
}

// Address returns the signing (and for multi-sig, relaying) address
func (e *Exchange) Address(ctx context.Context) (common.Address, error) {
	return e.signer.Address(ctx)
}

func (e *Exchange) hyperliquidChain() string {
	return DefaultEndpoints[e.config.Network].Chain
}

// Execute canonicalizes, signs and submits action, then validates the reply
func (e *Exchange) Execute(ctx context.Context, action actions.Action, opts ...CallOption) (*ExchangeResponse, error) {
	canonical, err := actions.Canonicalize(action)
	if err != nil {
		return nil, err
	}
	o := e.resolveOptions(opts)

	if e.config.MultiSig != nil {
		return e.executeMultiSig(ctx, canonical, o)
	}
	if us, ok := canonical.(actions.UserSignedAction); ok {
		return e.executeUserSigned(ctx, us, o)
	}
	return e.executeDirect(ctx, canonical, o)
}

func (e *Exchange) identity(ctx context.Context) (string, error) {
	addr, err := e.signer.Address(ctx)
	if err != nil {
		return "", &signer.SigningError{Provider: fmt.Sprintf("%T", e.signer), Err: err}
	}
	return strings.ToLower(addr.Hex()), nil
}

func (e *Exchange) executeDirect(ctx context.Context, action actions.Action, o callOptions) (*ExchangeResponse, error) {
	identity, err := e.identity(ctx)
	if err != nil {
		return nil, err
	}

	var resp *ExchangeResponse
	err = e.nonces.Do(ctx, identity, func(ctx context.Context, n uint64) error {
		td, err := chain.L1TypedData(action, n, o.vault, o.expiresAfter, e.config.Network.IsMainnet())
		if err != nil {
			return err
		}
		sig, err := signer.Sign(ctx, e.signer, td)
		if err != nil {
			return err
		}
		resp, err = e.submit(ctx, newEnvelope(action, n, sig, o.vault, o.expiresAfter))
		return err
	}, o.nonceOptions()...)
	return resp, err
}

func (e *Exchange) executeUserSigned(ctx context.Context, action actions.UserSignedAction, o callOptions) (*ExchangeResponse, error) {
	identity, err := e.identity(ctx)
	if err != nil {
		return nil, err
	}

	var resp *ExchangeResponse
	err = e.nonces.Do(ctx, identity, func(ctx context.Context, n uint64) error {
		action.SetEnvelope(e.config.SignatureChainID, e.hyperliquidChain(), n)
		td, err := actions.UserSignedTypedData(action, e.config.SignatureChainID)
		if err != nil {
			return err
		}
		sig, err := signer.Sign(ctx, e.signer, td)
		if err != nil {
			return err
		}
		// the venue binds user-signed actions to the signer itself, never a vault
		resp, err = e.submit(ctx, newEnvelope(action, n, sig, nil, nil))
		return err
	}, o.nonceOptions()...)
	return resp, err
}

func newEnvelope(action actions.Action, n uint64, sig chain.Signature, vault *common.Address, expiresAfter *uint64) *Envelope {
	env := &Envelope{Action: action, Nonce: n, Signature: sig, ExpiresAfter: expiresAfter}
	if vault != nil {
		v := strings.ToLower(vault.Hex())
		env.VaultAddress = &v
	}
	return env
}

func (e *Exchange) submit(ctx context.Context, env *Envelope) (*ExchangeResponse, error) {
	e.logger.Debug("Submitting action",
		zap.String("type", env.Action.ActionType()),
		zap.Uint64("nonce", env.Nonce))

	raw, err := e.transport.Request(ctx, RequestAction, env)
	if err != nil {
		e.logger.Warn("Action submission failed",
			zap.String("type", env.Action.ActionType()),
			zap.Uint64("nonce", env.Nonce),
			zap.Error(err))
		return nil, err
	}
	return ValidateResponse(raw)
}
