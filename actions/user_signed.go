package actions

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/kaifufi/hyperliquid-sdk-go/chain"
)

// Network names carried in hyperliquidChain
const (
	ChainMainnet = "Mainnet"
	ChainTestnet = "Testnet"
)

// Signing schemas of the user-signed actions. hyperliquidChain always leads.
var (
	usdSendTypes = []chain.Field{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "destination", Type: "string"},
		{Name: "amount", Type: "string"},
		{Name: "time", Type: "uint64"},
	}
	spotSendTypes = []chain.Field{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "destination", Type: "string"},
		{Name: "token", Type: "string"},
		{Name: "amount", Type: "string"},
		{Name: "time", Type: "uint64"},
	}
	withdrawTypes = []chain.Field{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "destination", Type: "string"},
		{Name: "amount", Type: "string"},
		{Name: "time", Type: "uint64"},
	}
	usdClassTransferTypes = []chain.Field{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "amount", Type: "string"},
		{Name: "toPerp", Type: "bool"},
		{Name: "nonce", Type: "uint64"},
	}
	sendAssetTypes = []chain.Field{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "destination", Type: "string"},
		{Name: "sourceDex", Type: "string"},
		{Name: "destinationDex", Type: "string"},
		{Name: "token", Type: "string"},
		{Name: "amount", Type: "string"},
		{Name: "fromSubAccount", Type: "string"},
		{Name: "nonce", Type: "uint64"},
	}
	approveAgentTypes = []chain.Field{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "agentAddress", Type: "address"},
		{Name: "agentName", Type: "string"},
		{Name: "nonce", Type: "uint64"},
	}
	approveBuilderFeeTypes = []chain.Field{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "maxFeeRate", Type: "string"},
		{Name: "builder", Type: "address"},
		{Name: "nonce", Type: "uint64"},
	}
	tokenDelegateTypes = []chain.Field{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "validator", Type: "address"},
		{Name: "wei", Type: "uint64"},
		{Name: "isUndelegate", Type: "bool"},
		{Name: "nonce", Type: "uint64"},
	}
	stakingTransferTypes = []chain.Field{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "wei", Type: "uint64"},
		{Name: "nonce", Type: "uint64"},
	}
	convertToMultiSigUserTypes = []chain.Field{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "signers", Type: "string"},
		{Name: "nonce", Type: "uint64"},
	}
	sendMultiSigTypes = []chain.Field{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "multiSigActionHash", Type: "bytes32"},
		{Name: "nonce", Type: "uint64"},
	}
)

// UsdSendAction transfers perp USDC to another address
type UsdSendAction struct {
	Type             string `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	Destination      string `json:"destination"`
	Amount           string `json:"amount"`
	Time             uint64 `json:"time"`
}

func (*UsdSendAction) ActionType() string       { return "usdSend" }
func (*UsdSendAction) PrimaryType() string      { return chain.UserSignedTypePrefix + "UsdSend" }
func (*UsdSendAction) SignTypes() []chain.Field { return usdSendTypes }
func (*UsdSendAction) NonceField() string       { return "time" }
func (a *UsdSendAction) SetEnvelope(signatureChainID, hyperliquidChain string, nonce uint64) {
	a.SignatureChainID, a.HyperliquidChain, a.Time = signatureChainID, hyperliquidChain, nonce
}

// SpotSendAction transfers a spot token, named as "NAME:0xtokenid"
type SpotSendAction struct {
	Type             string `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	Destination      string `json:"destination"`
	Token            string `json:"token"`
	Amount           string `json:"amount"`
	Time             uint64 `json:"time"`
}

func (*SpotSendAction) ActionType() string       { return "spotSend" }
func (*SpotSendAction) PrimaryType() string      { return chain.UserSignedTypePrefix + "SpotSend" }
func (*SpotSendAction) SignTypes() []chain.Field { return spotSendTypes }
func (*SpotSendAction) NonceField() string       { return "time" }
func (a *SpotSendAction) SetEnvelope(signatureChainID, hyperliquidChain string, nonce uint64) {
	a.SignatureChainID, a.HyperliquidChain, a.Time = signatureChainID, hyperliquidChain, nonce
}

// Withdraw3Action withdraws USDC to the bridge destination
type Withdraw3Action struct {
	Type             string `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	Destination      string `json:"destination"`
	Amount           string `json:"amount"`
	Time             uint64 `json:"time"`
}

func (*Withdraw3Action) ActionType() string       { return "withdraw3" }
func (*Withdraw3Action) PrimaryType() string      { return chain.UserSignedTypePrefix + "Withdraw" }
func (*Withdraw3Action) SignTypes() []chain.Field { return withdrawTypes }
func (*Withdraw3Action) NonceField() string       { return "time" }
func (a *Withdraw3Action) SetEnvelope(signatureChainID, hyperliquidChain string, nonce uint64) {
	a.SignatureChainID, a.HyperliquidChain, a.Time = signatureChainID, hyperliquidChain, nonce
}

// UsdClassTransferAction moves USDC between the spot and perp balances
type UsdClassTransferAction struct {
	Type             string `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	Amount           string `json:"amount"`
	ToPerp           bool   `json:"toPerp"`
	Nonce            uint64 `json:"nonce"`
}

func (*UsdClassTransferAction) ActionType() string       { return "usdClassTransfer" }
func (*UsdClassTransferAction) PrimaryType() string      { return chain.UserSignedTypePrefix + "UsdClassTransfer" }
func (*UsdClassTransferAction) SignTypes() []chain.Field { return usdClassTransferTypes }
func (*UsdClassTransferAction) NonceField() string       { return "nonce" }
func (a *UsdClassTransferAction) SetEnvelope(signatureChainID, hyperliquidChain string, nonce uint64) {
	a.SignatureChainID, a.HyperliquidChain, a.Nonce = signatureChainID, hyperliquidChain, nonce
}

type SendAssetAction struct {
	Type             string `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	Destination      string `json:"destination"`
	SourceDex        string `json:"sourceDex"`
	DestinationDex   string `json:"destinationDex"`
	Token            string `json:"token"`
	Amount           string `json:"amount"`
	FromSubAccount   string `json:"fromSubAccount"`
	Nonce            uint64 `json:"nonce"`
}

func (*SendAssetAction) ActionType() string       { return "sendAsset" }
func (*SendAssetAction) PrimaryType() string      { return chain.UserSignedTypePrefix + "SendAsset" }
func (*SendAssetAction) SignTypes() []chain.Field { return sendAssetTypes }
func (*SendAssetAction) NonceField() string       { return "nonce" }
func (a *SendAssetAction) SetEnvelope(signatureChainID, hyperliquidChain string, nonce uint64) {
	a.SignatureChainID, a.HyperliquidChain, a.Nonce = signatureChainID, hyperliquidChain, nonce
}

// ApproveAgentAction authorizes an agent key. An empty AgentName is signed
// as "" but left off the wire.
type ApproveAgentAction struct {
	Type             string `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	AgentAddress     string `json:"agentAddress"`
	AgentName        string `json:"agentName,omitempty"`
	Nonce            uint64 `json:"nonce"`
}

func (*ApproveAgentAction) ActionType() string       { return "approveAgent" }
func (*ApproveAgentAction) PrimaryType() string      { return chain.UserSignedTypePrefix + "ApproveAgent" }
func (*ApproveAgentAction) SignTypes() []chain.Field { return approveAgentTypes }
func (*ApproveAgentAction) NonceField() string       { return "nonce" }
func (a *ApproveAgentAction) SetEnvelope(signatureChainID, hyperliquidChain string, nonce uint64) {
	a.SignatureChainID, a.HyperliquidChain, a.Nonce = signatureChainID, hyperliquidChain, nonce
}

// ApproveBuilderFeeAction caps the fee a builder may charge, e.g. "0.001%"
type ApproveBuilderFeeAction struct {
	Type             string `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	MaxFeeRate       string `json:"maxFeeRate"`
	Builder          string `json:"builder"`
	Nonce            uint64 `json:"nonce"`
}

func (*ApproveBuilderFeeAction) ActionType() string       { return "approveBuilderFee" }
func (*ApproveBuilderFeeAction) PrimaryType() string      { return chain.UserSignedTypePrefix + "ApproveBuilderFee" }
func (*ApproveBuilderFeeAction) SignTypes() []chain.Field { return approveBuilderFeeTypes }
func (*ApproveBuilderFeeAction) NonceField() string       { return "nonce" }
func (a *ApproveBuilderFeeAction) SetEnvelope(signatureChainID, hyperliquidChain string, nonce uint64) {
	a.SignatureChainID, a.HyperliquidChain, a.Nonce = signatureChainID, hyperliquidChain, nonce
}

type TokenDelegateAction struct {
	Type             string `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	Validator        string `json:"validator"`
	Wei              uint64 `json:"wei"`
	IsUndelegate     bool   `json:"isUndelegate"`
	Nonce            uint64 `json:"nonce"`
}

func (*TokenDelegateAction) ActionType() string       { return "tokenDelegate" }
func (*TokenDelegateAction) PrimaryType() string      { return chain.UserSignedTypePrefix + "TokenDelegate" }
func (*TokenDelegateAction) SignTypes() []chain.Field { return tokenDelegateTypes }
func (*TokenDelegateAction) NonceField() string       { return "nonce" }
func (a *TokenDelegateAction) SetEnvelope(signatureChainID, hyperliquidChain string, nonce uint64) {
	a.SignatureChainID, a.HyperliquidChain, a.Nonce = signatureChainID, hyperliquidChain, nonce
}

// CDepositAction moves HYPE from spot into staking
type CDepositAction struct {
	Type             string `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	Wei              uint64 `json:"wei"`
	Nonce            uint64 `json:"nonce"`
}

func (*CDepositAction) ActionType() string       { return "cDeposit" }
func (*CDepositAction) PrimaryType() string      { return chain.UserSignedTypePrefix + "CDeposit" }
func (*CDepositAction) SignTypes() []chain.Field { return stakingTransferTypes }
func (*CDepositAction) NonceField() string       { return "nonce" }
func (a *CDepositAction) SetEnvelope(signatureChainID, hyperliquidChain string, nonce uint64) {
	a.SignatureChainID, a.HyperliquidChain, a.Nonce = signatureChainID, hyperliquidChain, nonce
}

// CWithdrawAction moves HYPE from staking back to spot
type CWithdrawAction struct {
	Type             string `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	Wei              uint64 `json:"wei"`
	Nonce            uint64 `json:"nonce"`
}

func (*CWithdrawAction) ActionType() string       { return "cWithdraw" }
func (*CWithdrawAction) PrimaryType() string      { return chain.UserSignedTypePrefix + "CWithdraw" }
func (*CWithdrawAction) SignTypes() []chain.Field { return stakingTransferTypes }
func (*CWithdrawAction) NonceField() string       { return "nonce" }
func (a *CWithdrawAction) SetEnvelope(signatureChainID, hyperliquidChain string, nonce uint64) {
	a.SignatureChainID, a.HyperliquidChain, a.Nonce = signatureChainID, hyperliquidChain, nonce
}

// ConvertToMultiSigUserAction carries its signer set as a JSON string:
// {"authorizedUsers": [...], "threshold": n}
type ConvertToMultiSigUserAction struct {
	Type             string `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	Signers          string `json:"signers"`
	Nonce            uint64 `json:"nonce"`
}

func (*ConvertToMultiSigUserAction) ActionType() string { return "convertToMultiSigUser" }
func (*ConvertToMultiSigUserAction) PrimaryType() string {
	return chain.UserSignedTypePrefix + "ConvertToMultiSigUser"
}
func (*ConvertToMultiSigUserAction) SignTypes() []chain.Field { return convertToMultiSigUserTypes }
func (*ConvertToMultiSigUserAction) NonceField() string       { return "nonce" }
func (a *ConvertToMultiSigUserAction) SetEnvelope(signatureChainID, hyperliquidChain string, nonce uint64) {
	a.SignatureChainID, a.HyperliquidChain, a.Nonce = signatureChainID, hyperliquidChain, nonce
}

// SendMultiSigEnvelope is what the leader of a multi-sig signs over the
// hash of the outer multiSig action. It never travels on the wire.
type SendMultiSigEnvelope struct {
	SignatureChainID   string      `json:"signatureChainId"`
	HyperliquidChain   string      `json:"hyperliquidChain"`
	MultiSigActionHash common.Hash `json:"multiSigActionHash"`
	Nonce              uint64      `json:"nonce"`
}

func (*SendMultiSigEnvelope) ActionType() string       { return "sendMultiSig" }
func (*SendMultiSigEnvelope) PrimaryType() string      { return chain.UserSignedTypePrefix + "SendMultiSig" }
func (*SendMultiSigEnvelope) SignTypes() []chain.Field { return sendMultiSigTypes }
func (*SendMultiSigEnvelope) NonceField() string       { return "nonce" }
func (e *SendMultiSigEnvelope) SetEnvelope(signatureChainID, hyperliquidChain string, nonce uint64) {
	e.SignatureChainID, e.HyperliquidChain, e.Nonce = signatureChainID, hyperliquidChain, nonce
}
