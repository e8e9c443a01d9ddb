package predictionmarket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/kaifufi/prediction-market-sdk-go/chain"
)

// DeploymentRecord is one historical deployment of a contract on a chain.
type DeploymentRecord struct {
	Address  common.Address `json:"address"`
	ChainKey string         `json:"-"`
}

// UnmarshalJSON accepts both the plain address string written by brownie's
// deployment map and the {"address": "0x..."} object form.
func (r *DeploymentRecord) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		var obj struct {
			Address string `json:"address"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		raw = obj.Address
	}

	if !common.IsHexAddress(raw) {
		return fmt.Errorf("invalid deployment address %q", raw)
	}
	r.Address = common.HexToAddress(raw)
	return nil
}

// Registry is a frozen chain key -> contract name -> deployments catalog.
// Deployments are ordered newest first.
type Registry struct {
	deployments map[string]map[string][]DeploymentRecord
}

// NewRegistry copies the given catalog into a Registry. Later changes to the
// argument are not observed.
func NewRegistry(deployments map[string]map[string][]DeploymentRecord) *Registry {
	frozen := make(map[string]map[string][]DeploymentRecord, len(deployments))
	for chainKey, contracts := range deployments {
		byName := make(map[string][]DeploymentRecord, len(contracts))
		for name, records := range contracts {
			copied := make([]DeploymentRecord, len(records))
			for i, rec := range records {
				rec.ChainKey = chainKey
				copied[i] = rec
			}
			byName[name] = copied
		}
		frozen[chainKey] = byName
	}
	return &Registry{deployments: frozen}
}

// LookupLatest returns the address of the newest deployment of name on chainKey.
func (r *Registry) LookupLatest(chainKey, name string) (common.Address, error) {
	records := r.lookup(chainKey, name)
	if len(records) == 0 {
		return common.Address{}, fmt.Errorf("%w: %q on chain %q", ErrNoDeploymentFound, name, chainKey)
	}
	return records[0].Address, nil
}

// Deployments returns every known deployment of name on chainKey, newest first.
func (r *Registry) Deployments(chainKey, name string) []DeploymentRecord {
	records := r.lookup(chainKey, name)
	out := make([]DeploymentRecord, len(records))
	copy(out, records)
	return out
}

// ChainKeys returns the chain keys present in the registry.
func (r *Registry) ChainKeys() []string {
	keys := make([]string, 0, len(r.deployments))
	for k := range r.deployments {
		keys = append(keys, k)
	}
	return keys
}

func (r *Registry) lookup(chainKey, name string) []DeploymentRecord {
	if r == nil {
		return nil
	}
	contracts, ok := r.deployments[chainKey]
	if !ok {
		return nil
	}
	return contracts[name]
}

// ContractDescriptor is the callable interface of one deployment.
type ContractDescriptor struct {
	ContractName string
	Address      common.Address
	ABI          abi.ABI
}

// artifactFile is the subset of a deployment artifact this package reads.
type artifactFile struct {
	ABI          json.RawMessage `json:"abi"`
	ContractName string          `json:"contractName"`
	Address      string          `json:"address"`
}

// ArtifactPath returns the lookup key of the artifact for a deployment.
func ArtifactPath(chainKey string, address common.Address) string {
	return chainKey + "/" + address.Hex()
}

// ArtifactStore is an immutable lookup of parsed interface descriptors keyed
// by chain key and deployment address.
type ArtifactStore struct {
	descriptors map[string]*ContractDescriptor
	failures    map[string]error
}

// NewArtifactStore parses raw artifacts keyed by "{chainKey}/{address}" with an
// optional ".json" suffix. Artifacts that fail to parse are remembered and
// reported by Descriptor.
func NewArtifactStore(raw map[string][]byte) *ArtifactStore {
	s := &ArtifactStore{
		descriptors: make(map[string]*ContractDescriptor, len(raw)),
		failures:    make(map[string]error),
	}

	for p, data := range raw {
		chainKey, address, err := splitArtifactPath(p)
		if err != nil {
			s.failures[p] = err
			continue
		}
		key := ArtifactPath(chainKey, address)

		desc, err := parseArtifact(data, address)
		if err != nil {
			s.failures[key] = err
			continue
		}
		s.descriptors[key] = desc
	}
	return s
}

// Descriptor returns the descriptor for the exact chain key and address.
func (s *ArtifactStore) Descriptor(chainKey string, address common.Address) (*ContractDescriptor, error) {
	key := ArtifactPath(chainKey, address)
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrArtifactUnavailable, key)
	}
	if err, ok := s.failures[key]; ok {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactUnavailable, key, err)
	}
	desc, ok := s.descriptors[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s not found", ErrArtifactUnavailable, key)
	}
	return desc, nil
}

// Len returns the number of parsed descriptors.
func (s *ArtifactStore) Len() int {
	return len(s.descriptors)
}

func splitArtifactPath(p string) (string, common.Address, error) {
	p = strings.TrimSuffix(path.Clean(strings.TrimPrefix(p, "/")), ".json")
	chainKey, addr := path.Split(p)
	chainKey = strings.TrimSuffix(chainKey, "/")
	if chainKey == "" || strings.Contains(chainKey, "/") {
		return "", common.Address{}, fmt.Errorf("artifact path %q is not {chain}/{address}", p)
	}
	if !common.IsHexAddress(addr) {
		return "", common.Address{}, fmt.Errorf("artifact path %q has invalid address", p)
	}
	return chainKey, common.HexToAddress(addr), nil
}

func parseArtifact(data []byte, address common.Address) (*ContractDescriptor, error) {
	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if len(file.ABI) == 0 {
		return nil, fmt.Errorf("artifact has no abi")
	}
	if file.Address != "" && common.HexToAddress(file.Address) != address {
		return nil, fmt.Errorf("artifact address %s does not match %s", file.Address, address.Hex())
	}

	parsed, err := chain.ParseABI(file.ABI)
	if err != nil {
		return nil, err
	}

	return &ContractDescriptor{
		ContractName: file.ContractName,
		Address:      address,
		ABI:          parsed,
	}, nil
}
