package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signature related errors
var (
	ErrInvalidSignatureLength = errors.New("signature must be 65 bytes")
	ErrInvalidRecoveryID      = errors.New("invalid signature recovery id")
)

// Domain constants of the venue's signing contexts
const (
	ExchangeDomainName    = "Exchange"
	ExchangeDomainVersion = "1"
	ExchangeDomainChainID = 1337

	UserSignedDomainName    = "HyperliquidSignTransaction"
	UserSignedDomainVersion = "1"

	// AgentType is the primary type of the phantom agent signed for direct actions
	AgentType = "Agent"

	// UserSignedTypePrefix prefixes the primary type of every user-signed action
	UserSignedTypePrefix = "HyperliquidTransaction:"
)

// AgentTypes is the schema of the phantom agent
var AgentTypes = Types{
	AgentType: {
		{Name: "source", Type: "string"},
		{Name: "connectionId", Type: "bytes32"},
	},
}

// ExchangeDomain returns the fixed domain that direct actions sign under
func ExchangeDomain() Domain {
	zero := common.Address{}
	return Domain{
		Name:              ExchangeDomainName,
		Version:           ExchangeDomainVersion,
		ChainID:           big.NewInt(ExchangeDomainChainID),
		VerifyingContract: &zero,
	}
}

// UserSignedDomain returns the domain that user-signed actions sign under
func UserSignedDomain(chainID *big.Int) Domain {
	zero := common.Address{}
	return Domain{
		Name:              UserSignedDomainName,
		Version:           UserSignedDomainVersion,
		ChainID:           new(big.Int).Set(chainID),
		VerifyingContract: &zero,
	}
}

// ParseSignatureChainID parses a hex chain id such as "0x66eee"
func ParseSignatureChainID(s string) (*big.Int, error) {
	v, err := hexutil.DecodeBig(s)
	if err != nil {
		return nil, &EncodingError{Path: "signatureChainId", Type: "uint256", Reason: fmt.Sprintf("invalid chain id %q: %v", s, err)}
	}
	return v, nil
}

// Signature is an ECDSA signature in the venue's {r, s, v} wire form
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V uint8  `json:"v"`
}

// SignatureFromBytes converts a 65-byte [R || S || V] signature, with V
// either 0/1 or 27/28, into wire form.
func SignatureFromBytes(sig []byte) (Signature, error) {
	if len(sig) != crypto.SignatureLength {
		return Signature{}, ErrInvalidSignatureLength
	}
	v := sig[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return Signature{}, ErrInvalidRecoveryID
	}
	return Signature{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: v,
	}, nil
}

// Bytes returns the 65-byte [R || S || V] form with V in {0, 1}
func (s Signature) Bytes() ([]byte, error) {
	r, err := hexutil.DecodeBig(trimHexZeros(s.R))
	if err != nil {
		return nil, fmt.Errorf("invalid r: %w", err)
	}
	sv, err := hexutil.DecodeBig(trimHexZeros(s.S))
	if err != nil {
		return nil, fmt.Errorf("invalid s: %w", err)
	}
	if r.BitLen() > 256 || sv.BitLen() > 256 {
		return nil, ErrInvalidSignatureLength
	}
	if s.V != 27 && s.V != 28 {
		return nil, ErrInvalidRecoveryID
	}
	out := make([]byte, crypto.SignatureLength)
	r.FillBytes(out[:32])
	sv.FillBytes(out[32:64])
	out[64] = s.V - 27
	return out, nil
}

// Trimmed returns s with leading zeros stripped from R and S
func (s Signature) Trimmed() (Signature, error) {
	raw, err := s.Bytes()
	if err != nil {
		return Signature{}, err
	}
	return Signature{
		R: hexutil.EncodeBig(new(big.Int).SetBytes(raw[:32])),
		S: hexutil.EncodeBig(new(big.Int).SetBytes(raw[32:64])),
		V: s.V,
	}, nil
}

// RecoverAddress returns the address that produced sig over digest
func RecoverAddress(digest common.Hash, sig Signature) (common.Address, error) {
	raw, err := sig.Bytes()
	if err != nil {
		return common.Address{}, err
	}
	pub, err := crypto.SigToPub(digest.Bytes(), raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// trimHexZeros drops leading zero digits, which hexutil.DecodeBig rejects
func trimHexZeros(s string) string {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return s
	}
	digits := strings.TrimLeft(s[2:], "0")
	if digits == "" {
		digits = "0"
	}
	return "0x" + digits
}
