// Package snapshots copies project file trees to S3-compatible storage and
// hands out short-lived download links.
package snapshots

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/coderoom/internal/common"
	"github.com/dmitrijs2005/coderoom/internal/filetree"
	sc "github.com/dmitrijs2005/coderoom/internal/server/config"
)

// PresignExpiry is the lifetime of download links.
const PresignExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
	newS3PresignClient    = func(c *s3.Client) *s3.PresignClient { return s3.NewPresignClient(c) }
)

// Key is the object key of a project's snapshot.
func Key(projectID string) string {
	return fmt.Sprintf("projects/%s/filetree.json", projectID)
}

type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewS3Store builds a client with static credentials against the configured
// endpoint using path-style addressing, which MinIO needs.
func NewS3Store(ctx context.Context, cfg *sc.Config) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Store{
		client:  client,
		presign: newS3PresignClient(client),
		bucket:  cfg.S3Bucket,
	}, nil
}

// Put uploads tree as JSON and returns the object key.
func (s *S3Store) Put(ctx context.Context, projectID string, tree filetree.Tree) (string, error) {
	body, err := json.Marshal(tree)
	if err != nil {
		return "", fmt.Errorf("encode tree: %w", err)
	}

	key := Key(projectID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put snapshot: %w", err)
	}
	return key, nil
}

// PresignGet returns a download link for the project's snapshot, or
// common.ErrorNotFound when none has been written yet.
func (s *S3Store) PresignGet(ctx context.Context, projectID string) (string, error) {
	key := Key(projectID)

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("head snapshot: %w", err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign snapshot: %w", err)
	}
	return req.URL, nil
}

// Nop is used when object storage is disabled.
type Nop struct{}

func (Nop) Put(context.Context, string, filetree.Tree) (string, error) { return "", nil }
func (Nop) PresignGet(context.Context, string) (string, error)         { return "", common.ErrorNotFound }
