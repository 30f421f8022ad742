// Package actions defines the venue's action variants in their canonical
// wire order and the canonicalization applied before hashing.
package actions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/kaifufi/hyperliquid-sdk-go/chain"
)

// Action is one tagged venue action. Struct field declaration order is the
// order the venue hashes fields in.
type Action interface {
	ActionType() string
}

// UserSignedAction is an action signed directly by the user under the
// HyperliquidSignTransaction domain rather than through a phantom agent.
type UserSignedAction interface {
	Action
	// PrimaryType is the EIP-712 primary type, e.g. HyperliquidTransaction:UsdSend
	PrimaryType() string
	// SignTypes lists the signed fields in schema order
	SignTypes() []chain.Field
	// NonceField names the field carrying the nonce: "time" or "nonce"
	NonceField() string
	// SetEnvelope fills the signing chain, network name and nonce
	SetEnvelope(signatureChainID, hyperliquidChain string, nonce uint64)
}

// IsUserSigned reports whether a is signed under the user-signed domain
func IsUserSigned(a Action) bool {
	_, ok := a.(UserSignedAction)
	return ok
}

var registry = map[string]func() Action{}

func register(fn func() Action) {
	registry[fn().ActionType()] = fn
}

func init() {
	for _, fn := range []func() Action{
		func() Action { return &OrderAction{} },
		func() Action { return &CancelAction{} },
		func() Action { return &CancelByCloidAction{} },
		func() Action { return &ModifyAction{} },
		func() Action { return &BatchModifyAction{} },
		func() Action { return &ScheduleCancelAction{} },
		func() Action { return &UpdateLeverageAction{} },
		func() Action { return &UpdateIsolatedMarginAction{} },
		func() Action { return &TwapOrderAction{} },
		func() Action { return &TwapCancelAction{} },
		func() Action { return &VaultTransferAction{} },
		func() Action { return &CreateVaultAction{} },
		func() Action { return &VaultModifyAction{} },
		func() Action { return &VaultDistributeAction{} },
		func() Action { return &CreateSubAccountAction{} },
		func() Action { return &SubAccountTransferAction{} },
		func() Action { return &SubAccountSpotTransferAction{} },
		func() Action { return &SetReferrerAction{} },
		func() Action { return &RegisterReferrerAction{} },
		func() Action { return &SpotUserAction{} },
		func() Action { return &NoopAction{} },
		func() Action { return &EvmUserModifyAction{} },
		func() Action { return &ReserveRequestWeightAction{} },
		func() Action { return &ClaimRewardsAction{} },
		func() Action { return &MultiSigAction{} },
		func() Action { return &UsdSendAction{} },
		func() Action { return &SpotSendAction{} },
		func() Action { return &Withdraw3Action{} },
		func() Action { return &UsdClassTransferAction{} },
		func() Action { return &SendAssetAction{} },
		func() Action { return &ApproveAgentAction{} },
		func() Action { return &ApproveBuilderFeeAction{} },
		func() Action { return &TokenDelegateAction{} },
		func() Action { return &CDepositAction{} },
		func() Action { return &CWithdrawAction{} },
		func() Action { return &ConvertToMultiSigUserAction{} },
	} {
		register(fn)
	}
}

// Types returns every action tag ParseAction accepts
func Types() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}

// ParseAction decodes a JSON action of any key order into its variant
// struct and canonicalizes it.
func ParseAction(data []byte) (Action, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, &chain.EncodingError{Path: "type", Type: "action", Reason: err.Error()}
	}
	newAction, ok := registry[tag.Type]
	if !ok {
		return nil, &chain.EncodingError{Path: "type", Type: "action", Reason: fmt.Sprintf("unknown action type %q", tag.Type)}
	}

	action := newAction()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(action); err != nil {
		return nil, &chain.EncodingError{Path: tag.Type, Type: "action", Reason: err.Error()}
	}
	return Canonicalize(action)
}

// TypedMessage projects the signed fields of a into an EIP-712 message.
// Fields hidden from the wire by omitempty are still signed with their zero value.
func TypedMessage(a UserSignedAction) map[string]any {
	values := jsonFields(a)
	msg := make(map[string]any, len(a.SignTypes()))
	for _, f := range a.SignTypes() {
		if v, ok := values[f.Name]; ok {
			msg[f.Name] = v
		}
	}
	return msg
}

// UserSignedTypedData builds the EIP-712 request for a user-signed action
// whose envelope has already been set.
func UserSignedTypedData(a UserSignedAction, signatureChainID string) (*chain.TypedData, error) {
	chainID, err := chain.ParseSignatureChainID(signatureChainID)
	if err != nil {
		return nil, err
	}
	return &chain.TypedData{
		Types:       chain.Types{a.PrimaryType(): a.SignTypes()},
		PrimaryType: a.PrimaryType(),
		Domain:      chain.UserSignedDomain(chainID),
		Message:     TypedMessage(a),
	}, nil
}

func jsonFields(v any) map[string]any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	out := make(map[string]any, rv.NumField())
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		out[name] = rv.Field(i).Interface()
	}
	return out
}
