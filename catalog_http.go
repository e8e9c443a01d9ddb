package predictionmarket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var errHTTPNotFound = errors.New("not found")

// HTTPCatalogSource fetches a catalog laid out as map.json plus
// {chain}/{address}.json from a static HTTP host, e.g. the frontend's
// artifacts/deployments directory.
type HTTPCatalogSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPCatalogSource creates a new HTTP catalog source
func NewHTTPCatalogSource(baseURL string) *HTTPCatalogSource {
	return &HTTPCatalogSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Load fetches the deployment map and the artifact of the newest deployment
// in every bucket. Missing artifacts are skipped; Descriptor reports them as
// unavailable.
func (c *HTTPCatalogSource) Load(ctx context.Context) (*Catalog, error) {
	mapJSON, err := c.get(ctx, DeploymentMapFile)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch %s: %w", DeploymentMapFile, err)
	}

	deployments, err := parseDeploymentMap(mapJSON)
	if err != nil {
		return nil, err
	}

	artifacts := make(map[string][]byte)
	for chainKey, contracts := range deployments {
		for _, records := range contracts {
			if len(records) == 0 {
				continue
			}
			p := ArtifactPath(chainKey, records[0].Address) + ".json"
			if _, seen := artifacts[p]; seen {
				continue
			}
			data, err := c.get(ctx, p)
			if errors.Is(err, errHTTPNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("catalog: fetch %s: %w", p, err)
			}
			artifacts[p] = data
		}
	}

	return &Catalog{
		Registry:  NewRegistry(deployments),
		Artifacts: NewArtifactStore(artifacts),
	}, nil
}

// get performs a GET request and returns the body of a 200 response
func (c *HTTPCatalogSource) get(ctx context.Context, rel string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, rel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, errHTTPNotFound
	}
	if resp.StatusCode != http.StatusOK {
		bodyStr := string(bodyBytes)
		if bodyStr == "" {
			bodyStr = resp.Status
		}
		if len(bodyStr) > 200 {
			bodyStr = bodyStr[:200] + "..."
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, bodyStr)
	}

	return bodyBytes, nil
}
