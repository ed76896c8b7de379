package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Store is the production artifact backend: static credentials, a
// region-scoped *s3.Client, and manager.NewUploader for multipart-aware
// uploads of arbitrarily sized artifacts.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// S3Config names the connection parameters for NewS3Store.
type S3Config struct {
	Endpoint  string // empty for AWS; set for S3-compatible providers (MinIO, Hetzner, ...)
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// NewS3Store builds an S3-backed artifact Store; a non-empty Endpoint
// switches it to path-style addressing for S3-compatible providers.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("artifact: loading aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, uploader: manager.NewUploader(client), bucket: cfg.Bucket}, nil
}

func (s *S3Store) Upload(ctx context.Context, runID, name string, content []byte, mime string, scope Scope) (*Artifact, error) {
	id := uuid.NewString()
	key := objectKey(scope, runID, id, name)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(mime),
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: uploading %s: %w", key, err)
	}
	return &Artifact{ArtifactID: id, FileID: key, RunID: runID, Name: name, MIME: mime, Scope: scope}, nil
}

func (s *S3Store) Download(ctx context.Context, artifactID string) ([]byte, *Artifact, error) {
	// FileID carries the object key; callers that only have an artifactID
	// must resolve it via the relational store's artifact record first.
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(artifactID)})
	if err != nil {
		return nil, nil, fmt.Errorf("artifact: fetching %s: %w", artifactID, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("artifact: reading body for %s: %w", artifactID, err)
	}
	return data, &Artifact{ArtifactID: artifactID, FileID: artifactID}, nil
}

func objectKey(scope Scope, runID, id, name string) string {
	if scope == ScopeGlobal {
		return fmt.Sprintf("global/%s-%s", id, name)
	}
	return fmt.Sprintf("runs/%s/%s-%s", runID, id, name)
}
