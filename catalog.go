package predictionmarket

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// DeploymentMapFile is the name of the deployment map inside a catalog tree
const DeploymentMapFile = "map.json"

// Catalog is the build-time deployment catalog: the registry of deployment
// addresses and the interface descriptors for those deployments.
type Catalog struct {
	Registry  *Registry
	Artifacts *ArtifactStore
}

// ParseCatalog builds a Catalog from the raw deployment map and raw artifacts
// keyed by "{chainKey}/{address}.json".
func ParseCatalog(mapJSON []byte, artifacts map[string][]byte) (*Catalog, error) {
	deployments, err := parseDeploymentMap(mapJSON)
	if err != nil {
		return nil, err
	}
	return &Catalog{
		Registry:  NewRegistry(deployments),
		Artifacts: NewArtifactStore(artifacts),
	}, nil
}

func parseDeploymentMap(mapJSON []byte) (map[string]map[string][]DeploymentRecord, error) {
	var deployments map[string]map[string][]DeploymentRecord
	if err := json.Unmarshal(mapJSON, &deployments); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", DeploymentMapFile, err)
	}
	return deployments, nil
}

// LoadCatalogFS reads map.json and every {chain}/{address}.json artifact from
// fsys. It works with os.DirFS and embed.FS alike.
func LoadCatalogFS(fsys fs.FS) (*Catalog, error) {
	mapJSON, err := fs.ReadFile(fsys, DeploymentMapFile)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", DeploymentMapFile, err)
	}

	matches, err := fs.Glob(fsys, "*/*.json")
	if err != nil {
		return nil, fmt.Errorf("catalog: list artifacts: %w", err)
	}

	artifacts := make(map[string][]byte, len(matches))
	for _, m := range matches {
		data, err := fs.ReadFile(fsys, m)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", m, err)
		}
		artifacts[m] = data
	}

	return ParseCatalog(mapJSON, artifacts)
}

// IsArtifactKey reports whether an object key under a catalog root names an
// artifact file rather than the deployment map.
func IsArtifactKey(rel string) bool {
	rel = strings.TrimPrefix(rel, "/")
	if rel == DeploymentMapFile || path.Ext(rel) != ".json" {
		return false
	}
	return strings.Count(rel, "/") == 1
}
