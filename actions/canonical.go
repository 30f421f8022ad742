package actions

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kaifufi/hyperliquid-sdk-go/chain"
)

var (
	decimalPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
	cloidPattern   = regexp.MustCompile(`^0x[0-9a-fA-F]{32}$`)
)

// NormalizeDecimal strips leading integer zeros, trailing fractional zeros
// and a bare decimal point: "1.50000" -> "1.5", "00.50" -> "0.5",
// "-0.0" -> "0".
func NormalizeDecimal(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !decimalPattern.MatchString(s) {
		return "", fmt.Errorf("invalid decimal %q", s)
	}
	digits, negative := strings.CutPrefix(s, "-")
	intPart, frac, _ := strings.Cut(digits, ".")
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	frac = strings.TrimRight(frac, "0")

	out := intPart
	if frac != "" {
		out += "." + frac
	}
	if negative && out != "0" {
		out = "-" + out
	}
	return out, nil
}

// Canonicalize returns a copy of a in the venue's canonical form: type tag
// set, decimals trimmed, addresses and hex ids lower-cased and nil lists
// replaced by empty ones. It is idempotent.
func Canonicalize(a Action) (Action, error) {
	if isNilAction(a) {
		return nil, &chain.EncodingError{Type: "action", Reason: "nil action"}
	}
	switch v := a.(type) {
	case *OrderAction:
		return canonicalOrderAction(v)
	case *CancelAction:
		return canonicalCancel(v), nil
	case *CancelByCloidAction:
		return canonicalCancelByCloid(v)
	case *ModifyAction:
		return canonicalModify(v)
	case *BatchModifyAction:
		return canonicalBatchModify(v)
	case *ScheduleCancelAction:
		out := *v
		out.Type = v.ActionType()
		return &out, nil
	case *UpdateLeverageAction:
		out := *v
		out.Type = v.ActionType()
		return &out, nil
	case *UpdateIsolatedMarginAction:
		out := *v
		out.Type = v.ActionType()
		return &out, nil
	case *TwapOrderAction:
		return canonicalTwapOrder(v)
	case *TwapCancelAction:
		out := *v
		out.Type = v.ActionType()
		return &out, nil
	case *VaultTransferAction:
		return canonicalVaultTransfer(v)
	case *CreateVaultAction:
		out := *v
		out.Type = v.ActionType()
		return &out, nil
	case *VaultModifyAction:
		return canonicalVaultModify(v)
	case *VaultDistributeAction:
		return canonicalVaultDistribute(v)
	case *CreateSubAccountAction:
		out := *v
		out.Type = v.ActionType()
		return &out, nil
	case *SubAccountTransferAction:
		return canonicalSubAccountTransfer(v)
	case *SubAccountSpotTransferAction:
		return canonicalSubAccountSpotTransfer(v)
	case *SetReferrerAction:
		out := *v
		out.Type = v.ActionType()
		return &out, nil
	case *RegisterReferrerAction:
		out := *v
		out.Type = v.ActionType()
		return &out, nil
	case *SpotUserAction:
		out := *v
		out.Type = v.ActionType()
		return &out, nil
	case *NoopAction:
		return &NoopAction{Type: v.ActionType()}, nil
	case *EvmUserModifyAction:
		out := *v
		out.Type = v.ActionType()
		return &out, nil
	case *ReserveRequestWeightAction:
		out := *v
		out.Type = v.ActionType()
		return &out, nil
	case *ClaimRewardsAction:
		return &ClaimRewardsAction{Type: v.ActionType()}, nil
	case *MultiSigAction:
		return canonicalMultiSig(v)
	case *UsdSendAction:
		return canonicalUsdSend(v)
	case *SpotSendAction:
		return canonicalSpotSend(v)
	case *Withdraw3Action:
		return canonicalWithdraw3(v)
	case *UsdClassTransferAction:
		return canonicalUsdClassTransfer(v)
	case *SendAssetAction:
		return canonicalSendAsset(v)
	case *ApproveAgentAction:
		return canonicalApproveAgent(v)
	case *ApproveBuilderFeeAction:
		return canonicalApproveBuilderFee(v)
	case *TokenDelegateAction:
		return canonicalTokenDelegate(v)
	case *CDepositAction:
		out := *v
		out.Type = v.ActionType()
		return &out, nil
	case *CWithdrawAction:
		out := *v
		out.Type = v.ActionType()
		return &out, nil
	case *ConvertToMultiSigUserAction:
		return canonicalConvertToMultiSigUser(v)
	}
	return nil, &chain.EncodingError{Path: a.ActionType(), Type: "action", Reason: fmt.Sprintf("no canonical form for %T", a)}
}

// isNilAction reports a nil interface or a typed nil pointer
func isNilAction(a Action) bool {
	if a == nil {
		return true
	}
	v := reflect.ValueOf(a)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func decimalField(path, value string) (string, error) {
	out, err := NormalizeDecimal(value)
	if err != nil {
		return "", &chain.EncodingError{Path: path, Type: "decimal", Reason: err.Error()}
	}
	return out, nil
}

func addressField(path, value string) (string, error) {
	if !common.IsHexAddress(value) || !strings.HasPrefix(strings.ToLower(value), "0x") {
		return "", &chain.EncodingError{Path: path, Type: "address", Reason: fmt.Sprintf("invalid address %q", value)}
	}
	return strings.ToLower(value), nil
}

func cloidField(path, value string) (string, error) {
	if !cloidPattern.MatchString(value) {
		return "", &chain.EncodingError{Path: path, Type: "cloid", Reason: fmt.Sprintf("cloid must be 16 bytes of hex, got %q", value)}
	}
	return strings.ToLower(value), nil
}

func canonicalOrderWire(path string, o OrderWire) (OrderWire, error) {
	var err error
	if o.LimitPx, err = decimalField(path+".p", o.LimitPx); err != nil {
		return o, err
	}
	if o.Size, err = decimalField(path+".s", o.Size); err != nil {
		return o, err
	}
	if o.Cloid != "" {
		if o.Cloid, err = cloidField(path+".c", o.Cloid); err != nil {
			return o, err
		}
	}

	switch {
	case o.OrderType.Limit != nil && o.OrderType.Trigger == nil:
		limit := *o.OrderType.Limit
		o.OrderType = OrderTypeWire{Limit: &limit}
	case o.OrderType.Trigger != nil && o.OrderType.Limit == nil:
		trigger := *o.OrderType.Trigger
		if trigger.TriggerPx, err = decimalField(path+".t.trigger.triggerPx", trigger.TriggerPx); err != nil {
			return o, err
		}
		o.OrderType = OrderTypeWire{Trigger: &trigger}
	default:
		return o, &chain.EncodingError{Path: path + ".t", Type: "orderType", Reason: "exactly one of limit or trigger is required"}
	}
	return o, nil
}

func canonicalOrderAction(v *OrderAction) (*OrderAction, error) {
	out := &OrderAction{Type: v.ActionType(), Orders: make([]OrderWire, len(v.Orders)), Grouping: v.Grouping}
	if out.Grouping == "" {
		out.Grouping = GroupingNA
	}
	for i, o := range v.Orders {
		wire, err := canonicalOrderWire(fmt.Sprintf("orders[%d]", i), o)
		if err != nil {
			return nil, err
		}
		out.Orders[i] = wire
	}
	if v.Builder != nil {
		b, err := addressField("builder.b", v.Builder.Builder)
		if err != nil {
			return nil, err
		}
		out.Builder = &BuilderFee{Builder: b, Fee: v.Builder.Fee}
	}
	return out, nil
}

func canonicalCancel(v *CancelAction) *CancelAction {
	out := &CancelAction{Type: v.ActionType(), Cancels: make([]CancelWire, len(v.Cancels))}
	copy(out.Cancels, v.Cancels)
	return out
}

func canonicalCancelByCloid(v *CancelByCloidAction) (*CancelByCloidAction, error) {
	out := &CancelByCloidAction{Type: v.ActionType(), Cancels: make([]CancelByCloidWire, len(v.Cancels))}
	for i, c := range v.Cancels {
		cloid, err := cloidField(fmt.Sprintf("cancels[%d].cloid", i), c.Cloid)
		if err != nil {
			return nil, err
		}
		out.Cancels[i] = CancelByCloidWire{Asset: c.Asset, Cloid: cloid}
	}
	return out, nil
}

func canonicalOrderRef(path string, r OrderRef) (OrderRef, error) {
	if r.Cloid == "" {
		return r, nil
	}
	cloid, err := cloidField(path, r.Cloid)
	if err != nil {
		return r, err
	}
	return OrderRef{Cloid: cloid}, nil
}

func canonicalModify(v *ModifyAction) (*ModifyAction, error) {
	oid, err := canonicalOrderRef("oid", v.Oid)
	if err != nil {
		return nil, err
	}
	order, err := canonicalOrderWire("order", v.Order)
	if err != nil {
		return nil, err
	}
	return &ModifyAction{Type: v.ActionType(), Oid: oid, Order: order}, nil
}

func canonicalBatchModify(v *BatchModifyAction) (*BatchModifyAction, error) {
	out := &BatchModifyAction{Type: v.ActionType(), Modifies: make([]ModifyWire, len(v.Modifies))}
	for i, m := range v.Modifies {
		path := fmt.Sprintf("modifies[%d]", i)
		oid, err := canonicalOrderRef(path+".oid", m.Oid)
		if err != nil {
			return nil, err
		}
		order, err := canonicalOrderWire(path+".order", m.Order)
		if err != nil {
			return nil, err
		}
		out.Modifies[i] = ModifyWire{Oid: oid, Order: order}
	}
	return out, nil
}

func canonicalTwapOrder(v *TwapOrderAction) (*TwapOrderAction, error) {
	out := *v
	out.Type = v.ActionType()
	var err error
	if out.Twap.Size, err = decimalField("twap.s", v.Twap.Size); err != nil {
		return nil, err
	}
	return &out, nil
}

func canonicalVaultTransfer(v *VaultTransferAction) (*VaultTransferAction, error) {
	out := *v
	out.Type = v.ActionType()
	var err error
	if out.VaultAddress, err = addressField("vaultAddress", v.VaultAddress); err != nil {
		return nil, err
	}
	return &out, nil
}

func canonicalVaultModify(v *VaultModifyAction) (*VaultModifyAction, error) {
	out := *v
	out.Type = v.ActionType()
	var err error
	if out.VaultAddress, err = addressField("vaultAddress", v.VaultAddress); err != nil {
		return nil, err
	}
	if v.AllowDeposits != nil {
		b := *v.AllowDeposits
		out.AllowDeposits = &b
	}
	if v.AlwaysCloseOnWithdraw != nil {
		b := *v.AlwaysCloseOnWithdraw
		out.AlwaysCloseOnWithdraw = &b
	}
	return &out, nil
}

func canonicalVaultDistribute(v *VaultDistributeAction) (*VaultDistributeAction, error) {
	out := *v
	out.Type = v.ActionType()
	var err error
	if out.VaultAddress, err = addressField("vaultAddress", v.VaultAddress); err != nil {
		return nil, err
	}
	return &out, nil
}

func canonicalSubAccountTransfer(v *SubAccountTransferAction) (*SubAccountTransferAction, error) {
	out := *v
	out.Type = v.ActionType()
	var err error
	if out.SubAccountUser, err = addressField("subAccountUser", v.SubAccountUser); err != nil {
		return nil, err
	}
	return &out, nil
}

func canonicalSubAccountSpotTransfer(v *SubAccountSpotTransferAction) (*SubAccountSpotTransferAction, error) {
	out := *v
	out.Type = v.ActionType()
	var err error
	if out.SubAccountUser, err = addressField("subAccountUser", v.SubAccountUser); err != nil {
		return nil, err
	}
	if out.Amount, err = decimalField("amount", v.Amount); err != nil {
		return nil, err
	}
	return &out, nil
}

func canonicalMultiSig(v *MultiSigAction) (*MultiSigAction, error) {
	out := &MultiSigAction{
		Type:             v.ActionType(),
		SignatureChainID: strings.ToLower(v.SignatureChainID),
		Signatures:       make([]chain.Signature, len(v.Signatures)),
	}
	copy(out.Signatures, v.Signatures)

	var err error
	if out.Payload.MultiSigUser, err = addressField("payload.multiSigUser", v.Payload.MultiSigUser); err != nil {
		return nil, err
	}
	if out.Payload.OuterSigner, err = addressField("payload.outerSigner", v.Payload.OuterSigner); err != nil {
		return nil, err
	}
	if v.Payload.Action == nil {
		return nil, &chain.EncodingError{Path: "payload.action", Type: "action", Reason: "missing inner action"}
	}
	if out.Payload.Action, err = Canonicalize(v.Payload.Action); err != nil {
		return nil, err
	}
	return out, nil
}

// amountField trims the leading decimal of an amount that may carry a
// trailing qualifier such as " subaccount:0x...".
func amountField(path, value string) (string, error) {
	amount, rest, found := strings.Cut(value, " ")
	amount, err := decimalField(path, amount)
	if err != nil {
		return "", err
	}
	if found {
		return amount + " " + rest, nil
	}
	return amount, nil
}

func canonicalUsdSend(v *UsdSendAction) (*UsdSendAction, error) {
	out := *v
	out.Type = v.ActionType()
	var err error
	if out.Destination, err = addressField("destination", v.Destination); err != nil {
		return nil, err
	}
	if out.Amount, err = decimalField("amount", v.Amount); err != nil {
		return nil, err
	}
	return &out, nil
}

func canonicalSpotSend(v *SpotSendAction) (*SpotSendAction, error) {
	out := *v
	out.Type = v.ActionType()
	var err error
	if out.Destination, err = addressField("destination", v.Destination); err != nil {
		return nil, err
	}
	if out.Amount, err = decimalField("amount", v.Amount); err != nil {
		return nil, err
	}
	return &out, nil
}

func canonicalWithdraw3(v *Withdraw3Action) (*Withdraw3Action, error) {
	out := *v
	out.Type = v.ActionType()
	var err error
	if out.Destination, err = addressField("destination", v.Destination); err != nil {
		return nil, err
	}
	if out.Amount, err = decimalField("amount", v.Amount); err != nil {
		return nil, err
	}
	return &out, nil
}

func canonicalUsdClassTransfer(v *UsdClassTransferAction) (*UsdClassTransferAction, error) {
	out := *v
	out.Type = v.ActionType()
	var err error
	if out.Amount, err = amountField("amount", v.Amount); err != nil {
		return nil, err
	}
	return &out, nil
}

func canonicalSendAsset(v *SendAssetAction) (*SendAssetAction, error) {
	out := *v
	out.Type = v.ActionType()
	var err error
	if out.Destination, err = addressField("destination", v.Destination); err != nil {
		return nil, err
	}
	if out.Amount, err = decimalField("amount", v.Amount); err != nil {
		return nil, err
	}
	if v.FromSubAccount != "" {
		if out.FromSubAccount, err = addressField("fromSubAccount", v.FromSubAccount); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

func canonicalApproveAgent(v *ApproveAgentAction) (*ApproveAgentAction, error) {
	out := *v
	out.Type = v.ActionType()
	var err error
	if out.AgentAddress, err = addressField("agentAddress", v.AgentAddress); err != nil {
		return nil, err
	}
	return &out, nil
}

func canonicalApproveBuilderFee(v *ApproveBuilderFeeAction) (*ApproveBuilderFeeAction, error) {
	out := *v
	out.Type = v.ActionType()
	var err error
	if out.Builder, err = addressField("builder", v.Builder); err != nil {
		return nil, err
	}
	rate, percent := strings.CutSuffix(v.MaxFeeRate, "%")
	if rate, err = decimalField("maxFeeRate", rate); err != nil {
		return nil, err
	}
	if percent {
		rate += "%"
	}
	out.MaxFeeRate = rate
	return &out, nil
}

func canonicalTokenDelegate(v *TokenDelegateAction) (*TokenDelegateAction, error) {
	out := *v
	out.Type = v.ActionType()
	var err error
	if out.Validator, err = addressField("validator", v.Validator); err != nil {
		return nil, err
	}
	return &out, nil
}

func canonicalConvertToMultiSigUser(v *ConvertToMultiSigUserAction) (*ConvertToMultiSigUserAction, error) {
	out := *v
	out.Type = v.ActionType()
	if strings.TrimSpace(out.Signers) == "" {
		return nil, &chain.EncodingError{Path: "signers", Type: "string", Reason: "signer set is required"}
	}
	return &out, nil
}
