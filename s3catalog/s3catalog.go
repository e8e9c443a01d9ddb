// Package s3catalog loads the deployment catalog from S3-compatible object
// storage (AWS S3, MinIO, R2). The bucket holds the same tree as the on-disk
// catalog: map.json at the prefix root and {chainKey}/{address}.json below it.
package s3catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	predictionmarket "github.com/kaifufi/prediction-market-sdk-go"
)

// ErrNotFound is returned when the deployment map is missing from the bucket.
var ErrNotFound = errors.New("s3catalog: object not found")

// API is the subset of the S3 client the loader uses.
type API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Source reads a catalog tree from one bucket prefix.
type Source struct {
	api    API
	bucket string
	prefix string
}

// New builds a Source from the catalog S3 settings using static credentials.
func New(ctx context.Context, cfg predictionmarket.S3Config) (*Source, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3catalog: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3catalog: region is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	if cfg.AccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		loadOpts = append(loadOpts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3catalog: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := normaliseEndpoint(cfg.Endpoint, cfg.UseSSL)
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewWithAPI(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket, cfg.Prefix), nil
}

// Load reads the catalog described by cfg.
func Load(ctx context.Context, cfg predictionmarket.S3Config) (*predictionmarket.Catalog, error) {
	src, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return src.Load(ctx)
}

// NewWithAPI builds a Source over an existing client.
func NewWithAPI(api API, bucket, prefix string) *Source {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Source{api: api, bucket: bucket, prefix: prefix}
}

// Load lists the prefix, downloads map.json and every artifact object and
// parses them into a Catalog. Objects that are neither are ignored.
func (s *Source) Load(ctx context.Context) (*predictionmarket.Catalog, error) {
	var mapJSON []byte
	artifacts := make(map[string][]byte)

	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3catalog: list prefix %q: %w", s.prefix, err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			rel := strings.TrimPrefix(key, s.prefix)

			switch {
			case rel == predictionmarket.DeploymentMapFile:
				data, err := s.get(ctx, key)
				if err != nil {
					return nil, err
				}
				mapJSON = data
			case predictionmarket.IsArtifactKey(rel):
				data, err := s.get(ctx, key)
				if err != nil {
					return nil, err
				}
				artifacts[rel] = data
			}
		}
	}

	if mapJSON == nil {
		return nil, fmt.Errorf("s3catalog: %s%s: %w", s.prefix, predictionmarket.DeploymentMapFile, ErrNotFound)
	}
	return predictionmarket.ParseCatalog(mapJSON, artifacts)
}

func (s *Source) get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3catalog: get %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("s3catalog: get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3catalog: read %s: %w", key, err)
	}
	return data, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}

// normaliseEndpoint prepends a scheme when the endpoint has none.
func normaliseEndpoint(endpoint string, useSSL bool) string {
	parsed, err := url.Parse(endpoint)
	if err == nil && parsed.Scheme != "" {
		return endpoint
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + endpoint
}
