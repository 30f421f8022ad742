package actions

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// Time in force values for limit orders
const (
	TifAlo = "Alo"
	TifIoc = "Ioc"
	TifGtc = "Gtc"
)

// Order grouping values
const (
	GroupingNA           = "na"
	GroupingNormalTpsl   = "normalTpsl"
	GroupingPositionTpsl = "positionTpsl"
)

// Trigger kinds
const (
	TpslTakeProfit = "tp"
	TpslStopLoss   = "sl"
)

// OrderWire is one order in the venue's abbreviated wire form
type OrderWire struct {
	Asset      int           `json:"a"`
	IsBuy      bool          `json:"b"`
	LimitPx    string        `json:"p"`
	Size       string        `json:"s"`
	ReduceOnly bool          `json:"r"`
	OrderType  OrderTypeWire `json:"t"`
	Cloid      string        `json:"c,omitempty"`
}

// OrderTypeWire carries exactly one of Limit or Trigger
type OrderTypeWire struct {
	Limit   *LimitWire   `json:"limit,omitempty"`
	Trigger *TriggerWire `json:"trigger,omitempty"`
}

type LimitWire struct {
	Tif string `json:"tif"`
}

type TriggerWire struct {
	IsMarket  bool   `json:"isMarket"`
	TriggerPx string `json:"triggerPx"`
	Tpsl      string `json:"tpsl"`
}

// BuilderFee routes a fee, in tenths of a basis point, to a builder address
type BuilderFee struct {
	Builder string `json:"b"`
	Fee     int    `json:"f"`
}

type OrderAction struct {
	Type     string      `json:"type"`
	Orders   []OrderWire `json:"orders"`
	Grouping string      `json:"grouping"`
	Builder  *BuilderFee `json:"builder,omitempty"`
}

func (*OrderAction) ActionType() string { return "order" }

type CancelWire struct {
	Asset int    `json:"a"`
	Oid   uint64 `json:"o"`
}

type CancelAction struct {
	Type    string       `json:"type"`
	Cancels []CancelWire `json:"cancels"`
}

func (*CancelAction) ActionType() string { return "cancel" }

type CancelByCloidWire struct {
	Asset int    `json:"asset"`
	Cloid string `json:"cloid"`
}

type CancelByCloidAction struct {
	Type    string              `json:"type"`
	Cancels []CancelByCloidWire `json:"cancels"`
}

func (*CancelByCloidAction) ActionType() string { return "cancelByCloid" }

// OrderRef identifies an order either by venue id or by client order id
type OrderRef struct {
	Oid   uint64
	Cloid string
}

func (r OrderRef) MarshalJSON() ([]byte, error) {
	if r.Cloid != "" {
		return json.Marshal(r.Cloid)
	}
	return []byte(strconv.FormatUint(r.Oid, 10)), nil
}

func (r *OrderRef) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		r.Oid = 0
		return json.Unmarshal(data, &r.Cloid)
	}
	r.Cloid = ""
	if err := json.Unmarshal(data, &r.Oid); err != nil {
		return fmt.Errorf("order ref must be an oid or a cloid: %w", err)
	}
	return nil
}

func (r OrderRef) EncodeMsgpack(enc *msgpack.Encoder) error {
	if r.Cloid != "" {
		return enc.EncodeString(r.Cloid)
	}
	return enc.EncodeUint(r.Oid)
}

type ModifyAction struct {
	Type  string    `json:"type"`
	Oid   OrderRef  `json:"oid"`
	Order OrderWire `json:"order"`
}

func (*ModifyAction) ActionType() string { return "modify" }

type ModifyWire struct {
	Oid   OrderRef  `json:"oid"`
	Order OrderWire `json:"order"`
}

type BatchModifyAction struct {
	Type     string       `json:"type"`
	Modifies []ModifyWire `json:"modifies"`
}

func (*BatchModifyAction) ActionType() string { return "batchModify" }

// ScheduleCancelAction sets (or with a nil Time clears) the dead man's switch
type ScheduleCancelAction struct {
	Type string  `json:"type"`
	Time *uint64 `json:"time,omitempty"`
}

func (*ScheduleCancelAction) ActionType() string { return "scheduleCancel" }

type UpdateLeverageAction struct {
	Type     string `json:"type"`
	Asset    int    `json:"asset"`
	IsCross  bool   `json:"isCross"`
	Leverage int    `json:"leverage"`
}

func (*UpdateLeverageAction) ActionType() string { return "updateLeverage" }

// UpdateIsolatedMarginAction adds or removes margin; Ntli is in micro USD
type UpdateIsolatedMarginAction struct {
	Type  string `json:"type"`
	Asset int    `json:"asset"`
	IsBuy bool   `json:"isBuy"`
	Ntli  int64  `json:"ntli"`
}

func (*UpdateIsolatedMarginAction) ActionType() string { return "updateIsolatedMargin" }

type TwapWire struct {
	Asset      int    `json:"a"`
	IsBuy      bool   `json:"b"`
	Size       string `json:"s"`
	ReduceOnly bool   `json:"r"`
	Minutes    int    `json:"m"`
	Randomize  bool   `json:"t"`
}

type TwapOrderAction struct {
	Type string   `json:"type"`
	Twap TwapWire `json:"twap"`
}

func (*TwapOrderAction) ActionType() string { return "twapOrder" }

type TwapCancelAction struct {
	Type   string `json:"type"`
	Asset  int    `json:"a"`
	TwapID uint64 `json:"t"`
}

func (*TwapCancelAction) ActionType() string { return "twapCancel" }

type VaultTransferAction struct {
	Type         string `json:"type"`
	VaultAddress string `json:"vaultAddress"`
	IsDeposit    bool   `json:"isDeposit"`
	Usd          uint64 `json:"usd"`
}

func (*VaultTransferAction) ActionType() string { return "vaultTransfer" }

type CreateVaultAction struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	InitialUsd  uint64 `json:"initialUsd"`
	Nonce       uint64 `json:"nonce"`
}

func (*CreateVaultAction) ActionType() string { return "createVault" }

// VaultModifyAction leaves a setting unchanged when its pointer is nil
type VaultModifyAction struct {
	Type                  string `json:"type"`
	VaultAddress          string `json:"vaultAddress"`
	AllowDeposits         *bool  `json:"allowDeposits"`
	AlwaysCloseOnWithdraw *bool  `json:"alwaysCloseOnWithdraw"`
}

func (*VaultModifyAction) ActionType() string { return "vaultModify" }

type VaultDistributeAction struct {
	Type         string `json:"type"`
	VaultAddress string `json:"vaultAddress"`
	Usd          uint64 `json:"usd"`
}

func (*VaultDistributeAction) ActionType() string { return "vaultDistribute" }

type CreateSubAccountAction struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

func (*CreateSubAccountAction) ActionType() string { return "createSubAccount" }

type SubAccountTransferAction struct {
	Type           string `json:"type"`
	SubAccountUser string `json:"subAccountUser"`
	IsDeposit      bool   `json:"isDeposit"`
	Usd            uint64 `json:"usd"`
}

func (*SubAccountTransferAction) ActionType() string { return "subAccountTransfer" }

type SubAccountSpotTransferAction struct {
	Type           string `json:"type"`
	SubAccountUser string `json:"subAccountUser"`
	IsDeposit      bool   `json:"isDeposit"`
	Token          string `json:"token"`
	Amount         string `json:"amount"`
}

func (*SubAccountSpotTransferAction) ActionType() string { return "subAccountSpotTransfer" }

type SetReferrerAction struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

func (*SetReferrerAction) ActionType() string { return "setReferrer" }

type RegisterReferrerAction struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

func (*RegisterReferrerAction) ActionType() string { return "registerReferrer" }

type SpotDustingWire struct {
	OptOut bool `json:"optOut"`
}

type SpotUserAction struct {
	Type              string          `json:"type"`
	ToggleSpotDusting SpotDustingWire `json:"toggleSpotDusting"`
}

func (*SpotUserAction) ActionType() string { return "spotUser" }

// NoopAction consumes a nonce without effect; used to invalidate in-flight nonces
type NoopAction struct {
	Type string `json:"type"`
}

func (*NoopAction) ActionType() string { return "noop" }

type EvmUserModifyAction struct {
	Type           string `json:"type"`
	UsingBigBlocks bool   `json:"usingBigBlocks"`
}

func (*EvmUserModifyAction) ActionType() string { return "evmUserModify" }

type ReserveRequestWeightAction struct {
	Type   string `json:"type"`
	Weight uint64 `json:"weight"`
}

func (*ReserveRequestWeightAction) ActionType() string { return "reserveRequestWeight" }

type ClaimRewardsAction struct {
	Type string `json:"type"`
}

func (*ClaimRewardsAction) ActionType() string { return "claimRewards" }
