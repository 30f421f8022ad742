package hyperliquid

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/kaifufi/hyperliquid-sdk-go/actions"
	"github.com/kaifufi/hyperliquid-sdk-go/nonce"
	"github.com/kaifufi/hyperliquid-sdk-go/signer"
)

// SpotAssetOffset is added to a spot pair's index to form its asset id
const SpotAssetOffset = 10000

// DefaultMetaCacheTTL bounds how long asset metadata is reused
const DefaultMetaCacheTTL = 5 * time.Minute

// Client is the main SDK client: an Info read path plus, when a signer is
// configured, an Exchange.
type Client struct {
	info     *Info
	exchange *Exchange
	network  Network
	logger   *zap.Logger

	assetCache     map[string]assetEntry
	assetCacheTime time.Time
	assetCacheTTL  time.Duration
	cacheMutex     sync.RWMutex
}

type assetEntry struct {
	id         int
	szDecimals int
	isSpot     bool
}

// ClientConfig holds configuration for creating a Client
type ClientConfig struct {
	Network Network
	APIURL  string
	// Transport overrides the HTTP transport, e.g. with a WSTransport
	Transport         Transport
	RequestsPerSecond float64
	Signer            signer.Signer
	SignatureChainID  string
	VaultAddress      *common.Address
	ExpiresAfter      *uint64
	MultiSig          *MultiSigConfig
	// Nonces is shared between clients that use the same signer
	Nonces       *nonce.Manager
	MetaCacheTTL time.Duration
	Logger       *zap.Logger
}

// NewClient creates a new client
func NewClient(config ClientConfig) (*Client, error) {
	if config.Network == "" {
		config.Network = Mainnet
	}
	network, err := ParseNetwork(string(config.Network))
	if err != nil {
		return nil, err
	}
	config.Network = network
	if config.MetaCacheTTL == 0 {
		config.MetaCacheTTL = DefaultMetaCacheTTL
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	transport := config.Transport
	if transport == nil {
		apiURL := config.APIURL
		if apiURL == "" {
			apiURL = DefaultEndpoints[config.Network].API
		}
		httpTransport, err := NewHTTPTransport(HTTPTransportConfig{
			BaseURL:           apiURL,
			RequestsPerSecond: config.RequestsPerSecond,
		}, config.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		transport = httpTransport
	}

	c := &Client{
		info:          NewInfo(transport),
		network:       config.Network,
		logger:        config.Logger,
		assetCacheTTL: config.MetaCacheTTL,
	}

	if config.Signer != nil {
		exchange, err := NewExchange(config.Signer, transport, ExchangeConfig{
			Network:          config.Network,
			SignatureChainID: config.SignatureChainID,
			VaultAddress:     config.VaultAddress,
			ExpiresAfter:     config.ExpiresAfter,
			MultiSig:         config.MultiSig,
		}, config.Nonces, config.Logger)
		if err != nil {
			return nil, err
		}
		c.exchange = exchange
	}
	return c, nil
}

func (c *Client) Info() *Info { return c.info }

// Exchange returns nil for a read-only client
func (c *Client) Exchange() *Exchange { return c.exchange }

func (c *Client) requireExchange() (*Exchange, error) {
	if c.exchange == nil {
		return nil, &InvalidParamError{Message: "client has no signer configured"}
	}
	return c.exchange, nil
}

// Execute signs and submits any action
func (c *Client) Execute(ctx context.Context, action actions.Action, opts ...CallOption) (*ExchangeResponse, error) {
	ex, err := c.requireExchange()
	if err != nil {
		return nil, err
	}
	return ex.Execute(ctx, action, opts...)
}

// AssetIndex resolves a perp name ("BTC") or spot pair name ("PURR/USDC",
// "@107") to its asset id and size decimals
func (c *Client) AssetIndex(ctx context.Context, coin string) (int, int, error) {
	entry, err := c.lookupAsset(ctx, coin, false)
	if err != nil {
		return 0, 0, err
	}
	return entry.id, entry.szDecimals, nil
}

func (c *Client) lookupAsset(ctx context.Context, coin string, forceRefresh bool) (assetEntry, error) {
	if coin == "" {
		return assetEntry{}, &InvalidParamError{Message: "coin is required"}
	}

	if !forceRefresh {
		c.cacheMutex.RLock()
		if c.assetCache != nil && time.Since(c.assetCacheTime) < c.assetCacheTTL {
			entry, ok := c.assetCache[coin]
			c.cacheMutex.RUnlock()
			if ok {
				return entry, nil
			}
			return c.lookupAsset(ctx, coin, true)
		}
		c.cacheMutex.RUnlock()
	}

	if err := c.refreshAssets(ctx); err != nil {
		return assetEntry{}, err
	}

	c.cacheMutex.RLock()
	defer c.cacheMutex.RUnlock()
	entry, ok := c.assetCache[coin]
	if !ok {
		return assetEntry{}, &InvalidParamError{Message: fmt.Sprintf("unknown coin %q", coin)}
	}
	return entry, nil
}

func (c *Client) refreshAssets(ctx context.Context) error {
	meta, err := c.info.Meta(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch meta: %w", err)
	}
	spot, err := c.info.SpotMeta(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch spot meta: %w", err)
	}

	cache := make(map[string]assetEntry, len(meta.Universe)+len(spot.Universe))
	for i, asset := range meta.Universe {
		cache[asset.Name] = assetEntry{id: i, szDecimals: asset.SzDecimals}
	}
	tokens := make(map[int]SpotToken, len(spot.Tokens))
	for _, token := range spot.Tokens {
		tokens[token.Index] = token
	}
	for _, pair := range spot.Universe {
		entry := assetEntry{id: SpotAssetOffset + pair.Index, isSpot: true}
		if len(pair.Tokens) > 0 {
			entry.szDecimals = tokens[pair.Tokens[0]].SzDecimals
		}
		cache[pair.Name] = entry
	}

	c.cacheMutex.Lock()
	c.assetCache = cache
	c.assetCacheTime = time.Now()
	c.cacheMutex.Unlock()

	c.logger.Debug("Refreshed asset metadata", zap.Int("perps", len(meta.Universe)), zap.Int("spot", len(spot.Universe)))
	return nil
}

// OrderRequest is a human-readable order
type OrderRequest struct {
	Coin       string
	IsBuy      bool
	Size       float64
	LimitPx    float64
	OrderType  actions.OrderTypeWire
	ReduceOnly bool
	Cloid      string
}

// PlaceOrder places one order. A zero OrderType means a Gtc limit order.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest, opts ...CallOption) (*ExchangeResponse, error) {
	return c.PlaceOrders(ctx, []OrderRequest{req}, opts...)
}

// PlaceOrders places a batch of orders atomically signed as one action
func (c *Client) PlaceOrders(ctx context.Context, reqs []OrderRequest, opts ...CallOption) (*ExchangeResponse, error) {
	if len(reqs) == 0 {
		return nil, &InvalidParamError{Message: "at least one order is required"}
	}
	wires := make([]actions.OrderWire, 0, len(reqs))
	for i, req := range reqs {
		wire, err := c.orderWire(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		wires = append(wires, wire)
	}
	return c.Execute(ctx, &actions.OrderAction{Orders: wires, Grouping: actions.GroupingNA}, opts...)
}

func (c *Client) orderWire(ctx context.Context, req OrderRequest) (actions.OrderWire, error) {
	if req.Size <= 0 {
		return actions.OrderWire{}, &InvalidParamError{Message: fmt.Sprintf("size must be positive, got: %f", req.Size)}
	}
	if req.LimitPx <= 0 {
		return actions.OrderWire{}, &InvalidParamError{Message: fmt.Sprintf("price must be positive, got: %f", req.LimitPx)}
	}
	entry, err := c.lookupAsset(ctx, req.Coin, false)
	if err != nil {
		return actions.OrderWire{}, err
	}

	px, err := FloatToWire(RoundPrice(req.LimitPx, entry.szDecimals, entry.isSpot))
	if err != nil {
		return actions.OrderWire{}, err
	}
	size := RoundSize(req.Size, entry.szDecimals)
	if size <= 0 {
		return actions.OrderWire{}, &InvalidParamError{Message: fmt.Sprintf("size %f rounds to zero at %d decimals", req.Size, entry.szDecimals)}
	}
	sz, err := FloatToWire(size)
	if err != nil {
		return actions.OrderWire{}, err
	}

	orderType := req.OrderType
	if orderType.Limit == nil && orderType.Trigger == nil {
		orderType.Limit = &actions.LimitWire{Tif: actions.TifGtc}
	}
	return actions.OrderWire{
		Asset:      entry.id,
		IsBuy:      req.IsBuy,
		LimitPx:    px,
		Size:       sz,
		ReduceOnly: req.ReduceOnly,
		OrderType:  orderType,
		Cloid:      req.Cloid,
	}, nil
}

// CancelOrder cancels an order by venue id
func (c *Client) CancelOrder(ctx context.Context, coin string, oid uint64, opts ...CallOption) (*ExchangeResponse, error) {
	asset, _, err := c.AssetIndex(ctx, coin)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, &actions.CancelAction{Cancels: []actions.CancelWire{{Asset: asset, Oid: oid}}}, opts...)
}

// CancelByCloid cancels an order by client order id
func (c *Client) CancelByCloid(ctx context.Context, coin, cloid string, opts ...CallOption) (*ExchangeResponse, error) {
	asset, _, err := c.AssetIndex(ctx, coin)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, &actions.CancelByCloidAction{Cancels: []actions.CancelByCloidWire{{Asset: asset, Cloid: cloid}}}, opts...)
}

// UpdateLeverage sets cross or isolated leverage for coin
func (c *Client) UpdateLeverage(ctx context.Context, coin string, leverage int, isCross bool, opts ...CallOption) (*ExchangeResponse, error) {
	if leverage <= 0 {
		return nil, &InvalidParamError{Message: fmt.Sprintf("leverage must be positive, got: %d", leverage)}
	}
	asset, _, err := c.AssetIndex(ctx, coin)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, &actions.UpdateLeverageAction{Asset: asset, IsCross: isCross, Leverage: leverage}, opts...)
}

// UsdSend transfers perp USDC to destination
func (c *Client) UsdSend(ctx context.Context, destination common.Address, amount float64) (*ExchangeResponse, error) {
	if amount <= 0 {
		return nil, &InvalidParamError{Message: fmt.Sprintf("amount must be positive, got: %f", amount)}
	}
	wire, err := FloatToWire(amount)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, &actions.UsdSendAction{
		Destination: strings.ToLower(destination.Hex()),
		Amount:      wire,
	})
}

// Noop consumes a nonce, invalidating any in-flight action signed with a lower one
func (c *Client) Noop(ctx context.Context, opts ...CallOption) (*ExchangeResponse, error) {
	return c.Execute(ctx, &actions.NoopAction{}, opts...)
}
