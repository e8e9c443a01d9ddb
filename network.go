package predictionmarket

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
)

// DevChainKey is the deployment map key used for local development chains
const DevChainKey = "dev"

// KeyKind classifies a connected chain
type KeyKind int

const (
	KeyUnsupported KeyKind = iota
	KeyPublic
	KeyDev
)

func (k KeyKind) String() string {
	switch k {
	case KeyPublic:
		return "public"
	case KeyDev:
		return "dev"
	default:
		return "unsupported"
	}
}

// RegistryKey is the result of classifying a chain id. Only KeyPublic and
// KeyDev keys address the deployment map.
type RegistryKey struct {
	Kind    KeyKind
	ChainID ChainID
}

// Supported reports whether the key addresses the deployment map.
func (k RegistryKey) Supported() bool {
	return k.Kind == KeyPublic || k.Kind == KeyDev
}

// String returns the deployment map key: "dev" for development chains and the
// decimal chain id otherwise.
func (k RegistryKey) String() string {
	if k.Kind == KeyDev {
		return DevChainKey
	}
	return strconv.FormatUint(uint64(k.ChainID), 10)
}

// NetworkPolicy decides which chain ids the market can be used on.
// Chain ids strictly below MinSupportedChainID are unsupported; the threshold
// itself is supported.
type NetworkPolicy struct {
	MinSupportedChainID ChainID
	DevChainID          ChainID
}

// DefaultNetworkPolicy returns the policy used when no config is supplied.
func DefaultNetworkPolicy() NetworkPolicy {
	return NetworkPolicy{
		MinSupportedChainID: DefaultMinSupportedChainID,
		DevChainID:          DefaultDevChainID,
	}
}

// Classify maps every chain id to a RegistryKey.
func Classify(id ChainID, policy NetworkPolicy) RegistryKey {
	switch {
	case policy.DevChainID != 0 && id == policy.DevChainID:
		return RegistryKey{Kind: KeyDev, ChainID: id}
	case id < policy.MinSupportedChainID:
		return RegistryKey{Kind: KeyUnsupported, ChainID: id}
	default:
		return RegistryKey{Kind: KeyPublic, ChainID: id}
	}
}

// ChainIDReader is the part of the provider the resolver needs.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Resolver determines the active chain and whether it is supported
type Resolver struct {
	provider ChainIDReader
	policy   NetworkPolicy
	logger   *slog.Logger
}

// NewResolver creates a new Resolver
func NewResolver(provider ChainIDReader, policy NetworkPolicy, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{provider: provider, policy: policy, logger: logger}
}

// Resolve reads the chain id once and classifies it. It returns
// ErrConnectionUnavailable when the provider cannot be reached and
// ErrUnsupportedNetwork, together with the unsupported key, when the chain id
// is below the threshold.
func (r *Resolver) Resolve(ctx context.Context) (RegistryKey, error) {
	if r.provider == nil {
		return RegistryKey{}, ErrConnectionUnavailable
	}

	raw, err := r.provider.ChainID(ctx)
	if err != nil {
		return RegistryKey{}, fmt.Errorf("%w: read chain id: %v", ErrConnectionUnavailable, err)
	}
	if raw == nil || raw.Sign() < 0 || !raw.IsUint64() {
		return RegistryKey{}, fmt.Errorf("%w: chain id %v out of range", ErrUnsupportedNetwork, raw)
	}
	id := ChainID(raw.Uint64())

	key := Classify(id, r.policy)
	if !key.Supported() {
		r.logger.Warn("unsupported network",
			"chain_id", uint64(id),
			"min_supported", uint64(r.policy.MinSupportedChainID))
		return key, fmt.Errorf("%w: chain id %d is below %d", ErrUnsupportedNetwork, id, r.policy.MinSupportedChainID)
	}

	r.logger.Debug("resolved network", "chain_id", uint64(id), "chain_key", key.String())
	return key, nil
}
