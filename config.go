package hyperliquid

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/kaifufi/hyperliquid-sdk-go/actions"
	"github.com/kaifufi/hyperliquid-sdk-go/chain"
)

// Network selects the venue deployment
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// SupportedNetworks lists all supported networks
var SupportedNetworks = []Network{Mainnet, Testnet}

// DefaultSignatureChainID is the chain user-signed actions declare by default
const DefaultSignatureChainID = "0x66eee"

// Endpoints holds the venue URLs of a network
type Endpoints struct {
	API       string
	WebSocket string
	// Chain is the hyperliquidChain value signed into user-signed actions
	Chain string
}

// DefaultEndpoints maps networks to their endpoints
var DefaultEndpoints = map[Network]Endpoints{
	Mainnet: {
		API:       "https://api.hyperliquid.xyz",
		WebSocket: "wss://api.hyperliquid.xyz/ws",
		Chain:     actions.ChainMainnet,
	},
	Testnet: {
		API:       "https://api.hyperliquid-testnet.xyz",
		WebSocket: "wss://api.hyperliquid-testnet.xyz/ws",
		Chain:     actions.ChainTestnet,
	},
}

// ParseNetwork accepts "mainnet" or "testnet" in any case
func ParseNetwork(s string) (Network, error) {
	n := Network(strings.ToLower(strings.TrimSpace(s)))
	for _, supported := range SupportedNetworks {
		if n == supported {
			return n, nil
		}
	}
	return "", &InvalidParamError{Message: fmt.Sprintf("network must be one of %v, got %q", SupportedNetworks, s)}
}

// IsMainnet reports whether n is the production network
func (n Network) IsMainnet() bool { return n == Mainnet }

// Environment variables read by LoadConfigFromEnv
const (
	EnvNetwork          = "HL_NETWORK"
	EnvPrivateKey       = "HL_PRIVATE_KEY"
	EnvVaultAddress     = "HL_VAULT_ADDRESS"
	EnvAPIURL           = "HL_API_URL"
	EnvWSURL            = "HL_WS_URL"
	EnvSignatureChainID = "HL_SIGNATURE_CHAIN_ID"
	EnvKMSKeyID         = "HL_KMS_KEY_ID"
	EnvRemoteSignerURL  = "HL_REMOTE_SIGNER_URL"
	EnvExpiresAfter     = "HL_EXPIRES_AFTER"
)

// EnvConfig is the process configuration assembled from the environment.
// Only one of PrivateKey, KMSKeyID and RemoteSignerURL may be set.
type EnvConfig struct {
	Network          Network `json:"network" yaml:"network"`
	PrivateKey       string  `json:"-" yaml:"-"`
	VaultAddress     string  `json:"vaultAddress" yaml:"vaultAddress"`
	APIURL           string  `json:"apiUrl" yaml:"apiUrl"`
	WSURL            string  `json:"wsUrl" yaml:"wsUrl"`
	SignatureChainID string  `json:"signatureChainId" yaml:"signatureChainId"`
	KMSKeyID         string  `json:"kmsKeyId" yaml:"kmsKeyId"`
	RemoteSignerURL  string  `json:"remoteSignerUrl" yaml:"remoteSignerUrl"`
	ExpiresAfter     *uint64 `json:"expiresAfter,omitempty" yaml:"expiresAfter,omitempty"`
}

// LoadConfigFromEnv reads the HL_* variables, fills defaults and validates
func LoadConfigFromEnv() (*EnvConfig, error) {
	cfg := &EnvConfig{
		Network:          Network(strings.ToLower(os.Getenv(EnvNetwork))),
		PrivateKey:       os.Getenv(EnvPrivateKey),
		VaultAddress:     os.Getenv(EnvVaultAddress),
		APIURL:           os.Getenv(EnvAPIURL),
		WSURL:            os.Getenv(EnvWSURL),
		SignatureChainID: os.Getenv(EnvSignatureChainID),
		KMSKeyID:         os.Getenv(EnvKMSKeyID),
		RemoteSignerURL:  os.Getenv(EnvRemoteSignerURL),
	}
	if v := os.Getenv(EnvExpiresAfter); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, &InvalidParamError{Message: fmt.Sprintf("%s: %v", EnvExpiresAfter, err)}
		}
		cfg.ExpiresAfter = &n
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields from the network's defaults
func (c *EnvConfig) ApplyDefaults() {
	if c.Network == "" {
		c.Network = Mainnet
	}
	endpoints := DefaultEndpoints[c.Network]
	if c.APIURL == "" {
		c.APIURL = endpoints.API
	}
	if c.WSURL == "" {
		c.WSURL = endpoints.WebSocket
	}
	if c.SignatureChainID == "" {
		c.SignatureChainID = DefaultSignatureChainID
	}
}

func (c *EnvConfig) Validate() error {
	var allErrors field.ErrorList
	allErrors = append(allErrors, validateNetwork(field.NewPath("network"), c.Network)...)
	allErrors = append(allErrors, validateURL(field.NewPath("apiUrl"), c.APIURL, "http", "https")...)
	allErrors = append(allErrors, validateURL(field.NewPath("wsUrl"), c.WSURL, "ws", "wss")...)
	allErrors = append(allErrors, validateSignatureChainID(field.NewPath("signatureChainId"), c.SignatureChainID)...)
	if c.VaultAddress != "" {
		allErrors = append(allErrors, validateAddress(field.NewPath("vaultAddress"), c.VaultAddress)...)
	}

	signers := 0
	for _, set := range []bool{c.PrivateKey != "", c.KMSKeyID != "", c.RemoteSignerURL != ""} {
		if set {
			signers++
		}
	}
	if signers > 1 {
		allErrors = append(allErrors, field.Forbidden(field.NewPath("signer"), "only one of privateKey, kmsKeyId and remoteSignerUrl may be set"))
	}
	return aggregate(allErrors)
}

// ExchangeConfig configures how actions are signed and submitted
type ExchangeConfig struct {
	Network          Network
	SignatureChainID string
	VaultAddress     *common.Address
	ExpiresAfter     *uint64
	MultiSig         *MultiSigConfig
}

func (c *ExchangeConfig) applyDefaults() {
	if c.Network == "" {
		c.Network = Mainnet
	}
	if c.SignatureChainID == "" {
		c.SignatureChainID = DefaultSignatureChainID
	}
	c.SignatureChainID = strings.ToLower(c.SignatureChainID)
}

func (c *ExchangeConfig) Validate() error {
	var allErrors field.ErrorList
	allErrors = append(allErrors, validateNetwork(field.NewPath("network"), c.Network)...)
	allErrors = append(allErrors, validateSignatureChainID(field.NewPath("signatureChainId"), c.SignatureChainID)...)
	if ms := c.MultiSig; ms != nil {
		path := field.NewPath("multiSig")
		if ms.User == (common.Address{}) {
			allErrors = append(allErrors, field.Required(path.Child("user"), "multi-sig user is required"))
		}
		if len(ms.Signers) == 0 {
			allErrors = append(allErrors, field.Required(path.Child("signers"), "at least one authorized signer is required"))
		}
		for i, s := range ms.Signers {
			if s == nil {
				allErrors = append(allErrors, field.Required(path.Child("signers").Index(i), "signer is nil"))
			}
		}
	}
	return aggregate(allErrors)
}

// HTTPTransportConfig configures the plain request transport
type HTTPTransportConfig struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond bounds outbound requests; zero disables limiting
	RequestsPerSecond float64
	Burst             int
}

const (
	DefaultHTTPTimeout = 30 * time.Second
	DefaultBurst       = 10
)

func (c *HTTPTransportConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultEndpoints[Mainnet].API
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = DefaultHTTPTimeout
	}
	if c.RequestsPerSecond > 0 && c.Burst == 0 {
		c.Burst = DefaultBurst
	}
}

func (c *HTTPTransportConfig) Validate() error {
	var allErrors field.ErrorList
	allErrors = append(allErrors, validateURL(field.NewPath("baseUrl"), c.BaseURL, "http", "https")...)
	if c.RequestsPerSecond < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("requestsPerSecond"), c.RequestsPerSecond, "must not be negative"))
	}
	return aggregate(allErrors)
}

func validateNetwork(path *field.Path, n Network) field.ErrorList {
	for _, supported := range SupportedNetworks {
		if n == supported {
			return nil
		}
	}
	values := make([]string, 0, len(SupportedNetworks))
	for _, supported := range SupportedNetworks {
		values = append(values, string(supported))
	}
	return field.ErrorList{field.NotSupported(path, n, values)}
}

func validateURL(path *field.Path, raw string, schemes ...string) field.ErrorList {
	if raw == "" {
		return field.ErrorList{field.Required(path, "url is required")}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return field.ErrorList{field.Invalid(path, raw, err.Error())}
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return field.ErrorList{field.Invalid(path, raw, fmt.Sprintf("scheme must be one of %v", schemes))}
}

func validateSignatureChainID(path *field.Path, id string) field.ErrorList {
	if _, err := chain.ParseSignatureChainID(id); err != nil {
		return field.ErrorList{field.Invalid(path, id, "must be a 0x-prefixed hex chain id")}
	}
	return nil
}

func validateAddress(path *field.Path, addr string) field.ErrorList {
	if !common.IsHexAddress(addr) || !strings.HasPrefix(addr, "0x") {
		return field.ErrorList{field.Invalid(path, addr, "must be a 0x-prefixed 20-byte hex address")}
	}
	return nil
}

func aggregate(allErrors field.ErrorList) error {
	if len(allErrors) == 0 {
		return nil
	}
	return &InvalidParamError{Message: allErrors.ToAggregate().Error()}
}
