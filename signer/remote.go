package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kaifufi/hyperliquid-sdk-go/chain"
)

const (
	DefaultSignTypedDataMethod = "eth_signTypedData_v4"
	DefaultRemoteTimeout       = 10 * time.Second
)

// RemoteSignerConfig configures a JSON-RPC signing endpoint such as
// web3signer or a wallet's RPC
type RemoteSignerConfig struct {
	URL     string
	Address common.Address
	// Method overrides the signing method name
	Method  string
	Timeout time.Duration
	Headers map[string]string
}

// DefaultRemoteSignerConfig returns a config with defaults filled in
func DefaultRemoteSignerConfig() *RemoteSignerConfig {
	return &RemoteSignerConfig{
		Method:  DefaultSignTypedDataMethod,
		Timeout: DefaultRemoteTimeout,
	}
}

// RemoteSigner delegates signing to a JSON-RPC endpoint
type RemoteSigner struct {
	config     *RemoteSignerConfig
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Signer = (*RemoteSigner)(nil)

// NewRemoteSigner creates a signer for cfg.Address served at cfg.URL
func NewRemoteSigner(cfg *RemoteSignerConfig, logger *zap.Logger) (*RemoteSigner, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("remote signer url is required")
	}
	if cfg.Address == (common.Address{}) {
		return nil, errors.New("remote signer address is required")
	}
	if cfg.Method == "" {
		cfg.Method = DefaultSignTypedDataMethod
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultRemoteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteSigner{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// SetHttpClient replaces the HTTP client used for requests
func (s *RemoteSigner) SetHttpClient(client *http.Client) {
	s.httpClient = client
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (s *RemoteSigner) SignTypedData(ctx context.Context, td *chain.TypedData) (chain.Signature, error) {
	// Fail on schema problems locally before anything leaves the process
	if _, err := chain.HashTypedData(td); err != nil {
		return chain.Signature{}, err
	}

	var hexSig string
	if err := s.call(ctx, s.config.Method, []any{s.config.Address.Hex(), APITypedData(td)}, &hexSig); err != nil {
		return chain.Signature{}, signingErr(ProviderRemote, err, s.config.Method)
	}

	raw, err := hexutil.Decode(hexSig)
	if err != nil {
		return chain.Signature{}, signingErr(ProviderRemote, err, "invalid signature encoding")
	}
	sig, err := chain.SignatureFromBytes(raw)
	if err != nil {
		return chain.Signature{}, signingErr(ProviderRemote, err, "invalid signature")
	}
	return sig, nil
}

func (s *RemoteSigner) Address(context.Context) (common.Address, error) {
	return s.config.Address, nil
}

// ChainID asks the endpoint via eth_chainId
func (s *RemoteSigner) ChainID(ctx context.Context) (*big.Int, error) {
	var hexID string
	if err := s.call(ctx, "eth_chainId", []any{}, &hexID); err != nil {
		return nil, signingErr(ProviderRemote, err, "eth_chainId")
	}
	id, err := hexutil.DecodeBig(hexID)
	if err != nil {
		return nil, signingErr(ProviderRemote, err, "invalid chain id")
	}
	return id, nil
}

func (s *RemoteSigner) call(ctx context.Context, method string, params []any, result any) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range s.config.Headers {
		httpReq.Header.Set(k, v)
	}

	s.logger.Debug("Calling remote signer",
		zap.String("method", method),
		zap.String("id", req.ID),
		zap.String("address", s.config.Address.Hex()))

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	if rpcResp.Error != nil {
		s.logger.Warn("Remote signer returned error",
			zap.String("method", method),
			zap.Int("code", rpcResp.Error.Code),
			zap.String("message", rpcResp.Error.Message))
		return rpcResp.Error
	}
	if rpcResp.ID != req.ID {
		return errors.Errorf("response id %q does not match request id %q", rpcResp.ID, req.ID)
	}
	return errors.Wrap(json.Unmarshal(rpcResp.Result, result), "failed to decode result")
}
