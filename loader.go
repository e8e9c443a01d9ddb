package predictionmarket

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kaifufi/prediction-market-sdk-go/chain"
)

var handleSeq atomic.Uint64

// ContractHandle is a market deployment bound to a live connection. A handle
// that could not be bound is unavailable and carries the reason.
type ContractHandle struct {
	id         uint64
	key        RegistryKey
	name       string
	descriptor *ContractDescriptor
	market     *chain.PredictionMarket
	backend    chain.Backend
	reason     error
}

func unavailableHandle(key RegistryKey, name string, reason error) *ContractHandle {
	return &ContractHandle{id: handleSeq.Add(1), key: key, name: name, reason: reason}
}

// Available reports whether the handle can issue calls
func (h *ContractHandle) Available() bool {
	return h != nil && h.market != nil
}

// ID uniquely identifies the handle within the process
func (h *ContractHandle) ID() uint64 {
	if h == nil {
		return 0
	}
	return h.id
}

// Key returns the registry key the handle was loaded for
func (h *ContractHandle) Key() RegistryKey { return h.key }

// Name returns the logical contract name
func (h *ContractHandle) Name() string { return h.name }

// Descriptor returns the interface descriptor, nil when unavailable
func (h *ContractHandle) Descriptor() *ContractDescriptor { return h.descriptor }

// Reason explains why the handle is unavailable
func (h *ContractHandle) Reason() error { return h.reason }

// Address returns the bound deployment address
func (h *ContractHandle) Address() common.Address {
	if h.descriptor == nil {
		return common.Address{}
	}
	return h.descriptor.Address
}

// Loader resolves deployments from a catalog and binds them to a backend
type Loader struct {
	registry  *Registry
	artifacts *ArtifactStore
	backend   chain.Backend
	logger    *slog.Logger
}

// NewLoader creates a new Loader
func NewLoader(catalog *Catalog, backend chain.Backend, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{backend: backend, logger: logger}
	if catalog != nil {
		l.registry = catalog.Registry
		l.artifacts = catalog.Artifacts
	}
	return l
}

// Load returns a handle for the newest deployment of name on key. Missing
// deployments and artifacts are logged and produce an unavailable handle with
// a nil error; transport failures return ErrConnectionUnavailable.
func (l *Loader) Load(ctx context.Context, key RegistryKey, name string) (*ContractHandle, error) {
	log := l.logger.With("chain_key", key.String(), "contract", name)

	if !key.Supported() {
		log.Warn("refusing to load contract on unsupported network")
		return unavailableHandle(key, name, fmt.Errorf("%w: chain id %d", ErrUnsupportedNetwork, key.ChainID)), nil
	}

	address, err := l.registry.LookupLatest(key.String(), name)
	if err != nil {
		log.Warn("couldn't find any deployed contract", "error", err)
		return unavailableHandle(key, name, err), nil
	}
	log = log.With("address", address.Hex())

	desc, err := l.artifacts.Descriptor(key.String(), address)
	if err != nil {
		log.Warn("failed to load contract artifact", "path", ArtifactPath(key.String(), address), "error", err)
		return unavailableHandle(key, name, err), nil
	}

	if l.backend == nil {
		return nil, ErrConnectionUnavailable
	}
	code, err := l.backend.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: code at %s: %v", ErrConnectionUnavailable, address.Hex(), err)
	}
	if len(code) == 0 {
		log.Warn("no contract code at deployment address")
		return unavailableHandle(key, name, fmt.Errorf("%w: no contract code at %s", ErrNoDeploymentFound, address.Hex())), nil
	}

	market, err := chain.NewPredictionMarket(address, desc.ABI, l.backend)
	if err != nil {
		log.Warn("artifact does not describe a prediction market", "error", err)
		return unavailableHandle(key, name, fmt.Errorf("%w: %w", ErrArtifactUnavailable, err)), nil
	}

	h := &ContractHandle{
		id:         handleSeq.Add(1),
		key:        key,
		name:       name,
		descriptor: desc,
		market:     market,
		backend:    l.backend,
	}
	log.Info("loaded contract", "handle", h.id)
	return h, nil
}
