// Package export writes person and identity-link snapshots to S3 as
// gzipped NDJSON, one object per run, for downstream warehouse loads.
package export

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/matchwell/growth-plane/internal/domain"
	"github.com/matchwell/growth-plane/internal/identity"
	"github.com/matchwell/growth-plane/internal/pkg/logger"
)

// Config holds S3 snapshot settings.
type Config struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Enabled   bool   `yaml:"enabled"`
}

// s3API is the slice of the S3 client the exporter uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Exporter snapshots the identity graph to S3.
type Exporter struct {
	api    s3API
	repo   identity.Repository
	bucket string
	prefix string
}

// NewExporter creates an S3-backed exporter.
func NewExporter(ctx context.Context, cfg Config, repo identity.Repository) (*Exporter, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &Exporter{
		api:    s3.NewFromConfig(awsCfg),
		repo:   repo,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// NewExporterWithAPI wires a pre-built S3 API, for tests.
func NewExporterWithAPI(api s3API, repo identity.Repository, bucket, prefix string) *Exporter {
	return &Exporter{api: api, repo: repo, bucket: bucket, prefix: prefix}
}

// snapshotRecord is one NDJSON line: a person joined with their identity
// links.
type snapshotRecord struct {
	Person *domain.Person        `json:"person"`
	Links  []domain.IdentityLink `json:"links,omitempty"`
}

// Result summarizes one snapshot run.
type Result struct {
	Key     string
	Persons int
	Failed  int
	Bytes   int
}

// Snapshot exports every person and their links to one gzipped NDJSON
// object. Per-person read failures are logged and skipped so one bad row
// does not abort the run.
func (e *Exporter) Snapshot(ctx context.Context) (*Result, error) {
	ids, err := e.repo.ListPersonIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)

	result := &Result{}
	for _, id := range ids {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		person, err := e.repo.GetPerson(ctx, id)
		if err != nil || person == nil {
			result.Failed++
			logger.Error("snapshot person read failed", "person_id", id, "error", err)
			continue
		}
		links, err := e.repo.ListLinks(ctx, id)
		if err != nil {
			result.Failed++
			logger.Error("snapshot links read failed", "person_id", id, "error", err)
			continue
		}
		if err := enc.Encode(snapshotRecord{Person: person, Links: links}); err != nil {
			return nil, fmt.Errorf("encode person %s: %w", id, err)
		}
		result.Persons++
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("close gzip: %w", err)
	}

	result.Key = fmt.Sprintf("%spersons/%s.ndjson.gz", e.prefix, time.Now().UTC().Format("2006-01-02T15-04-05"))
	result.Bytes = buf.Len()

	_, err = e.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(e.bucket),
		Key:             aws.String(result.Key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}

	logger.Info("identity snapshot exported",
		"key", result.Key, "persons", result.Persons, "failed", result.Failed, "bytes", result.Bytes)
	return result, nil
}
