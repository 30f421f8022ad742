package signer

import (
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"math/big"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kaifufi/hyperliquid-sdk-go/chain"
)

// KMSAPI is the subset of the AWS KMS client used for signing
type KMSAPI interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

var _ KMSAPI = (*kms.Client)(nil)

// KMSSignerConfig identifies an ECC_SECG_P256K1 signing key
type KMSSignerConfig struct {
	KeyID   string
	Region  string
	ChainID *big.Int
}

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

type asn1EcSig struct {
	R *big.Int
	S *big.Int
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

// KMSSigner signs digests with an AWS KMS secp256k1 key. The public key is
// fetched once and cached.
type KMSSigner struct {
	client  KMSAPI
	keyID   string
	chainID *big.Int
	logger  *zap.Logger

	mu     sync.Mutex
	pubKey *ecdsa.PublicKey
}

var _ Signer = (*KMSSigner)(nil)

// NewKMSSigner creates a signer backed by client
func NewKMSSigner(client KMSAPI, cfg *KMSSignerConfig, logger *zap.Logger) (*KMSSigner, error) {
	if cfg == nil || cfg.KeyID == "" {
		return nil, errors.New("kms key id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	chainID := cfg.ChainID
	if chainID == nil {
		chainID = big.NewInt(chain.ExchangeDomainChainID)
	}
	return &KMSSigner{
		client:  client,
		keyID:   cfg.KeyID,
		chainID: chainID,
		logger:  logger,
	}, nil
}

// NewKMSSignerFromConfig loads AWS credentials from the default chain
func NewKMSSignerFromConfig(ctx context.Context, cfg *KMSSignerConfig, logger *zap.Logger) (*KMSSigner, error) {
	if cfg == nil {
		return nil, errors.New("kms config is required")
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg.Region)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load aws config")
	}
	return NewKMSSigner(kms.NewFromConfig(awsCfg), cfg, logger)
}

// LoadAWSConfig loads the shared AWS config, honoring AWS_PROFILE
func LoadAWSConfig(ctx context.Context, regionOverride string) (aws.Config, error) {
	var options []func(*config.LoadOptions) error
	if profile := os.Getenv("AWS_PROFILE"); profile != "" {
		options = append(options, config.WithSharedConfigProfile(profile))
	}
	if regionOverride != "" {
		options = append(options, config.WithRegion(regionOverride))
	}
	return config.LoadDefaultConfig(ctx, options...)
}

// CallerIdentity reports which AWS principal the config resolves to
func CallerIdentity(ctx context.Context, cfg aws.Config) (*sts.GetCallerIdentityOutput, error) {
	return sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
}

func (s *KMSSigner) publicKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pubKey != nil {
		return s.pubKey, nil
	}

	out, err := s.client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(s.keyID)})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s", s.keyID)
	}
	pub, err := parseECDSAPublicKey(out.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for key %s", s.keyID)
	}
	s.pubKey = pub
	return pub, nil
}

func parseECDSAPublicKey(derBytes []byte) (*ecdsa.PublicKey, error) {
	var info asn1EcPublicKey
	if _, err := asn1.Unmarshal(derBytes, &info); err != nil {
		return nil, errors.Wrap(err, "failed to parse ASN.1 public key")
	}
	return crypto.UnmarshalPubkey(info.PublicKey.Bytes)
}

func (s *KMSSigner) Address(ctx context.Context) (common.Address, error) {
	pub, err := s.publicKey(ctx)
	if err != nil {
		return common.Address{}, signingErr(ProviderKMS, err, "address")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func (s *KMSSigner) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(s.chainID), nil
}

func (s *KMSSigner) SignTypedData(ctx context.Context, td *chain.TypedData) (chain.Signature, error) {
	digest, err := chain.HashTypedData(td)
	if err != nil {
		return chain.Signature{}, err
	}

	raw, err := s.signDigest(ctx, digest)
	if err != nil {
		return chain.Signature{}, signingErr(ProviderKMS, err, "kms sign")
	}
	return chain.SignatureFromBytes(raw)
}

func (s *KMSSigner) signDigest(ctx context.Context, digest common.Hash) ([]byte, error) {
	expected, err := s.publicKey(ctx)
	if err != nil {
		return nil, err
	}

	out, err := s.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyID),
		Message:          digest.Bytes(),
		SigningAlgorithm: types.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      types.MessageTypeDigest,
	})
	if err != nil {
		return nil, err
	}

	var der asn1EcSig
	if _, err := asn1.Unmarshal(out.Signature, &der); err != nil {
		return nil, errors.Wrap(err, "failed to parse DER signature")
	}
	r, sv := der.R, der.S
	if sv.Cmp(secp256k1HalfN) > 0 {
		sv = new(big.Int).Sub(secp256k1N, sv)
	}

	sig := make([]byte, crypto.SignatureLength)
	r.FillBytes(sig[:32])
	sv.FillBytes(sig[32:64])

	// KMS does not report the recovery id
	for recoveryID := byte(0); recoveryID < 2; recoveryID++ {
		sig[64] = recoveryID
		recovered, err := crypto.SigToPub(digest.Bytes(), sig)
		if err != nil {
			s.logger.Debug("Ecrecover failed", zap.Uint8("recoveryId", recoveryID), zap.Error(err))
			continue
		}
		if recovered.X.Cmp(expected.X) == 0 && recovered.Y.Cmp(expected.Y) == 0 {
			return sig, nil
		}
	}
	return nil, errors.New("could not determine recovery id")
}
