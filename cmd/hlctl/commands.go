package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	hyperliquid "github.com/kaifufi/hyperliquid-sdk-go"
	"github.com/kaifufi/hyperliquid-sdk-go/actions"
	"github.com/kaifufi/hyperliquid-sdk-go/chain"
	"github.com/kaifufi/hyperliquid-sdk-go/logger"
	"github.com/kaifufi/hyperliquid-sdk-go/nonce"
	"github.com/kaifufi/hyperliquid-sdk-go/signer"
)

// env bundles what every command needs
type env struct {
	config *hyperliquid.EnvConfig
	logger *zap.Logger
}

func loadEnv(c *cli.Context) (*env, error) {
	zapLogger, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("debug")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if network := c.String("network"); network != "" {
		if err := os.Setenv(hyperliquid.EnvNetwork, network); err != nil {
			return nil, err
		}
	}
	cfg, err := hyperliquid.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &env{config: cfg, logger: zapLogger}, nil
}

// buildSigner returns the configured signer, or nil when none is set
func (e *env) buildSigner(c *cli.Context) (signer.Signer, error) {
	switch {
	case e.config.PrivateKey != "":
		return signer.NewPrivateKeySigner(e.config.PrivateKey, nil)
	case e.config.KMSKeyID != "":
		return signer.NewKMSSignerFromConfig(c.Context, &signer.KMSSignerConfig{
			KeyID:  e.config.KMSKeyID,
			Region: c.String("aws-region"),
		}, e.logger)
	case e.config.RemoteSignerURL != "":
		addr := c.String("remote-address")
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("--remote-address is required with %s", hyperliquid.EnvRemoteSignerURL)
		}
		cfg := signer.DefaultRemoteSignerConfig()
		cfg.URL = e.config.RemoteSignerURL
		cfg.Address = common.HexToAddress(addr)
		return signer.NewRemoteSigner(cfg, e.logger)
	default:
		return nil, nil
	}
}

func (e *env) requireSigner(c *cli.Context) (signer.Signer, error) {
	s, err := e.buildSigner(c)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("no signer configured: set %s, %s or %s", hyperliquid.EnvPrivateKey, hyperliquid.EnvKMSKeyID, hyperliquid.EnvRemoteSignerURL)
	}
	return s, nil
}

// transport returns an HTTP transport, or a connected websocket transport
// with --ws. The returned func releases it.
func (e *env) transport(c *cli.Context) (hyperliquid.Transport, func(), error) {
	if !c.Bool("ws") {
		t, err := hyperliquid.NewHTTPTransport(hyperliquid.HTTPTransportConfig{BaseURL: e.config.APIURL}, e.logger)
		return t, func() {}, err
	}
	ws, err := e.websocket(c)
	if err != nil {
		return nil, nil, err
	}
	if err := ws.Connect(c.Context); err != nil {
		_ = ws.Close()
		return nil, nil, err
	}
	return ws, func() { _ = ws.Close() }, nil
}

func (e *env) websocket(c *cli.Context) (*hyperliquid.WSTransport, error) {
	cfg := hyperliquid.DefaultWSConfig()
	cfg.URL = e.config.WSURL
	if d := c.Duration("keep-alive"); d > 0 {
		cfg.KeepAliveInterval = d
	}
	return hyperliquid.NewWSTransport(cfg, e.logger)
}

func (e *env) vault(c *cli.Context) (*common.Address, error) {
	raw := c.String("vault")
	if raw == "" {
		raw = e.config.VaultAddress
	}
	if raw == "" {
		return nil, nil
	}
	if !common.IsHexAddress(raw) {
		return nil, fmt.Errorf("invalid vault address %q", raw)
	}
	addr := common.HexToAddress(raw)
	return &addr, nil
}

func (e *env) expiresAfter(c *cli.Context) *uint64 {
	if c.IsSet("expires-after") {
		v := c.Uint64("expires-after")
		return &v
	}
	return e.config.ExpiresAfter
}

// readArg returns value, or the contents of the file it names after "@"
func readArg(value string) ([]byte, error) {
	if path, ok := strings.CutPrefix(value, "@"); ok {
		return os.ReadFile(path)
	}
	return []byte(value), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func addressCommand(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	s, err := e.requireSigner(c)
	if err != nil {
		return err
	}
	addr, err := s.Address(c.Context)
	if err != nil {
		return err
	}
	out := map[string]any{"address": strings.ToLower(addr.Hex())}

	if c.Bool("whoami") && e.config.KMSKeyID != "" {
		awsCfg, err := signer.LoadAWSConfig(c.Context, c.String("aws-region"))
		if err != nil {
			return fmt.Errorf("failed to load aws config: %w", err)
		}
		identity, err := signer.CallerIdentity(c.Context, awsCfg)
		if err != nil {
			return fmt.Errorf("failed to get caller identity: %w", err)
		}
		if identity.Arn != nil {
			out["awsPrincipal"] = *identity.Arn
		}
	}
	return printJSON(out)
}

func digestCommand(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	raw, err := readArg(c.String("action"))
	if err != nil {
		return err
	}
	action, err := actions.ParseAction(raw)
	if err != nil {
		return err
	}
	vault, err := e.vault(c)
	if err != nil {
		return err
	}
	n := c.Uint64("nonce")
	if n == 0 {
		n = nonce.NewSequencer().Next()
	}

	var td *chain.TypedData
	if us, ok := action.(actions.UserSignedAction); ok {
		us.SetEnvelope(e.config.SignatureChainID, hyperliquid.DefaultEndpoints[e.config.Network].Chain, n)
		td, err = actions.UserSignedTypedData(us, e.config.SignatureChainID)
	} else {
		td, err = chain.L1TypedData(action, n, vault, e.expiresAfter(c), e.config.Network.IsMainnet())
	}
	if err != nil {
		return err
	}

	digest, err := chain.HashTypedData(td)
	if err != nil {
		return err
	}
	typedJSON, err := signer.TypedDataJSON(td)
	if err != nil {
		return err
	}
	out := map[string]any{
		"action":    action,
		"nonce":     n,
		"typedData": json.RawMessage(typedJSON),
		"digest":    digest.Hex(),
	}

	if c.Bool("sign") {
		s, err := e.requireSigner(c)
		if err != nil {
			return err
		}
		sig, err := signer.Sign(c.Context, s, td)
		if err != nil {
			return err
		}
		out["signature"] = sig
	}
	return printJSON(out)
}

func sendCommand(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	raw, err := readArg(c.String("action"))
	if err != nil {
		return err
	}
	action, err := actions.ParseAction(raw)
	if err != nil {
		return err
	}
	s, err := e.requireSigner(c)
	if err != nil {
		return err
	}
	transport, release, err := e.transport(c)
	if err != nil {
		return err
	}
	defer release()

	client, err := hyperliquid.NewClient(hyperliquid.ClientConfig{
		Network:          e.config.Network,
		Transport:        transport,
		Signer:           s,
		SignatureChainID: e.config.SignatureChainID,
		Logger:           e.logger,
	})
	if err != nil {
		return err
	}

	var opts []hyperliquid.CallOption
	vault, err := e.vault(c)
	if err != nil {
		return err
	}
	if vault != nil {
		opts = append(opts, hyperliquid.WithVaultAddress(*vault))
	}
	if exp := e.expiresAfter(c); exp != nil {
		opts = append(opts, hyperliquid.WithExpiresAfter(*exp))
	}
	if c.IsSet("nonce") {
		opts = append(opts, hyperliquid.WithNonce(c.Uint64("nonce")))
	}

	resp, err := client.Execute(c.Context, action, opts...)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func infoCommand(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	raw, err := readArg(c.String("request"))
	if err != nil {
		return err
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("invalid info request: %w", err)
	}
	transport, release, err := e.transport(c)
	if err != nil {
		return err
	}
	defer release()

	reply, err := hyperliquid.NewInfo(transport).Query(c.Context, payload)
	if err != nil {
		return err
	}
	return printJSON(reply)
}

func subscribeCommand(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	raw, err := readArg(c.String("subscription"))
	if err != nil {
		return err
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("invalid subscription: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws, err := e.websocket(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	enc := json.NewEncoder(os.Stdout)
	sub, err := ws.Subscribe(payload, func(msg hyperliquid.WSMessage) {
		if err := enc.Encode(msg); err != nil {
			e.logger.Warn("Failed to print event", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	if err := ws.Connect(ctx); err != nil {
		return err
	}
	if err := sub.WaitReady(ctx); err != nil {
		return err
	}
	e.logger.Info("Subscribed", zap.String("subscription", sub.Key()))

	select {
	case <-ctx.Done():
		unsubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return sub.Unsubscribe(unsubCtx)
	case <-sub.Done():
		return sub.Err()
	}
}
