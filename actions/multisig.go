package actions

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaifufi/hyperliquid-sdk-go/chain"
)

// MultiSigAction wraps an inner action signed by several authorized users
// of a multi-sig account. It is relayed by OuterSigner.
type MultiSigAction struct {
	Type             string            `json:"type"`
	SignatureChainID string            `json:"signatureChainId"`
	Signatures       []chain.Signature `json:"signatures"`
	Payload          MultiSigPayload   `json:"payload"`
}

func (*MultiSigAction) ActionType() string { return "multiSig" }

type MultiSigPayload struct {
	MultiSigUser string `json:"multiSigUser"`
	OuterSigner  string `json:"outerSigner"`
	Action       Action `json:"action"`
}

func (p *MultiSigPayload) UnmarshalJSON(data []byte) error {
	var raw struct {
		MultiSigUser string          `json:"multiSigUser"`
		OuterSigner  string          `json:"outerSigner"`
		Action       json.RawMessage `json:"action"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	inner, err := ParseAction(raw.Action)
	if err != nil {
		return fmt.Errorf("multiSig payload: %w", err)
	}
	p.MultiSigUser, p.OuterSigner, p.Action = raw.MultiSigUser, raw.OuterSigner, inner
	return nil
}

// multiSigBody is the outer action without its type tag, which is what
// the leader's SendMultiSig envelope commits to.
type multiSigBody struct {
	SignatureChainID string            `json:"signatureChainId"`
	Signatures       []chain.Signature `json:"signatures"`
	Payload          MultiSigPayload   `json:"payload"`
}

// HashBody returns the value hashed into multiSigActionHash
func (a *MultiSigAction) HashBody() any {
	return multiSigBody{
		SignatureChainID: a.SignatureChainID,
		Signatures:       a.Signatures,
		Payload:          a.Payload,
	}
}

// MultiSigL1Payload is what each authorized user hashes, in place of the
// bare action, when the inner action is a direct action.
func MultiSigL1Payload(multiSigUser, outerSigner string, inner Action) any {
	return []any{strings.ToLower(multiSigUser), strings.ToLower(outerSigner), inner}
}

// MultiSigUserSignedTypedData builds the typed data an authorized user signs
// for a user-signed inner action: payloadMultiSigUser and outerSigner are
// spliced in right after hyperliquidChain.
func MultiSigUserSignedTypedData(inner UserSignedAction, signatureChainID, multiSigUser, outerSigner string) (*chain.TypedData, error) {
	td, err := UserSignedTypedData(inner, signatureChainID)
	if err != nil {
		return nil, err
	}

	base := inner.SignTypes()
	fields := make([]chain.Field, 0, len(base)+2)
	spliced := false
	for _, f := range base {
		fields = append(fields, f)
		if f.Name == "hyperliquidChain" {
			fields = append(fields,
				chain.Field{Name: "payloadMultiSigUser", Type: "address"},
				chain.Field{Name: "outerSigner", Type: "address"},
			)
			spliced = true
		}
	}
	if !spliced {
		return nil, &chain.EncodingError{Path: "hyperliquidChain", Type: inner.PrimaryType(), Reason: "schema has no hyperliquidChain field"}
	}

	td.Types = chain.Types{inner.PrimaryType(): fields}
	td.Message["payloadMultiSigUser"] = strings.ToLower(multiSigUser)
	td.Message["outerSigner"] = strings.ToLower(outerSigner)
	return td, nil
}
