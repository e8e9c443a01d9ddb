package s3catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ethereum/go-ethereum/common"

	predictionmarket "github.com/kaifufi/prediction-market-sdk-go"
	"github.com/kaifufi/prediction-market-sdk-go/chain"
)

var market = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// fakeS3 serves objects from memory, one key per page to exercise pagination.
type fakeS3 struct {
	objects map[string][]byte
	keys    []string
	gets    []string
	listErr error
}

func newFakeS3(objects map[string][]byte) *fakeS3 {
	f := &fakeS3{objects: objects}
	for k := range objects {
		f.keys = append(f.keys, k)
	}
	return f
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}

	var matching []string
	for _, k := range f.keys {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			matching = append(matching, k)
		}
	}

	start := 0
	if in.ContinuationToken != nil {
		fmt.Sscanf(*in.ContinuationToken, "%d", &start)
	}
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if start < len(matching) {
		out.Contents = []types.Object{{Key: aws.String(matching[start])}}
	}
	if start+1 < len(matching) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(fmt.Sprintf("%d", start+1))
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	f.gets = append(f.gets, key)
	data, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func catalogObjects(prefix string) map[string][]byte {
	return map[string][]byte{
		prefix + predictionmarket.DeploymentMapFile: []byte(fmt.Sprintf(`{"dev":{"PredictionMarket":[%q]}}`, market.Hex())),
		prefix + "dev/" + market.Hex() + ".json": []byte(fmt.Sprintf(`{"address":%q,"abi":%s}`, market.Hex(), chain.PredictionMarketABIJSON)),
		prefix + "dev/notes.txt":                 []byte("ignored"),
	}
}

func TestSourceLoad(t *testing.T) {
	objects := catalogObjects("deployments/")
	objects["other/map.json"] = []byte(`not read`)
	api := newFakeS3(objects)

	c, err := NewWithAPI(api, "artifacts", "/deployments/").Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	addr, err := c.Registry.LookupLatest("dev", predictionmarket.DefaultContractName)
	if err != nil || addr != market {
		t.Errorf("LookupLatest = %s, %v", addr.Hex(), err)
	}
	if _, err := c.Artifacts.Descriptor("dev", market); err != nil {
		t.Errorf("Descriptor: %v", err)
	}
	if len(api.gets) != 2 {
		t.Errorf("downloaded %v, want map.json and one artifact", api.gets)
	}
}

func TestSourceLoadErrors(t *testing.T) {
	t.Run("missing map", func(t *testing.T) {
		objects := catalogObjects("")
		delete(objects, predictionmarket.DeploymentMapFile)

		_, err := NewWithAPI(newFakeS3(objects), "artifacts", "").Load(context.Background())
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("list failure", func(t *testing.T) {
		api := newFakeS3(catalogObjects(""))
		api.listErr = errors.New("access denied")

		_, err := NewWithAPI(api, "artifacts", "").Load(context.Background())
		if err == nil || !strings.Contains(err.Error(), "access denied") {
			t.Errorf("got %v, want list error", err)
		}
	})
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(fmt.Errorf("wrapped: %w", &types.NoSuchKey{})) {
		t.Error("NoSuchKey should be not found")
	}
	if !isNotFound(&types.NotFound{}) {
		t.Error("NotFound should be not found")
	}
	if isNotFound(errors.New("timeout")) {
		t.Error("generic error reported as not found")
	}
}

func TestNew(t *testing.T) {
	if _, err := New(context.Background(), predictionmarket.S3Config{Region: "us-east-1"}); err == nil {
		t.Error("expected error without bucket")
	}
	if _, err := New(context.Background(), predictionmarket.S3Config{Bucket: "artifacts"}); err == nil {
		t.Error("expected error without region")
	}

	src, err := New(context.Background(), predictionmarket.S3Config{
		Endpoint:       "minio.local",
		Region:         "us-east-1",
		Bucket:         "artifacts",
		Prefix:         "deployments",
		AccessKey:      "key",
		SecretKey:      "secret",
		ForcePathStyle: true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if src.bucket != "artifacts" || src.prefix != "deployments/" {
		t.Errorf("source = %s/%s", src.bucket, src.prefix)
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		useSSL   bool
		want     string
	}{
		{"https://s3.example.com", false, "https://s3.example.com"},
		{"minio.local", false, "http://minio.local"},
		{"minio.local", true, "https://minio.local"},
	}
	for _, tt := range tests {
		if got := normaliseEndpoint(tt.endpoint, tt.useSSL); got != tt.want {
			t.Errorf("normaliseEndpoint(%q, %v) = %q, want %q", tt.endpoint, tt.useSSL, got, tt.want)
		}
	}
}
