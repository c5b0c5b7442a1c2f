package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"staybook/internal/app/policies"
)

const feedContentType = "text/calendar; charset=utf-8"

// Config describes the bucket holding published listing feeds.
type Config struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	Region         string
	UseSSL         bool
}

// FeedPublisher stores exported listing feeds in an S3-compatible bucket
// and returns their public URL. The bucket is created on first use and made
// publicly readable so calendar providers can subscribe without credentials.
type FeedPublisher struct {
	bucket         string
	publicBaseURL  string
	client         *minio.Client
	logger         *slog.Logger
	bucketInitOnce sync.Once
	bucketInitErr  error
}

func NewFeedPublisher(cfg Config, logger *slog.Logger) (*FeedPublisher, error) {
	cleanEndpoint := strings.TrimSpace(cfg.Endpoint)
	if cleanEndpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	minioClient, err := minio.New(parseEndpoint(cleanEndpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}

	base := strings.TrimSpace(cfg.PublicEndpoint)
	if base == "" {
		base = cleanEndpoint
		if !strings.Contains(base, "://") {
			scheme := "http://"
			if cfg.UseSSL {
				scheme = "https://"
			}
			base = scheme + base
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedPublisher{
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
		client:        minioClient,
		logger:        logger,
	}, nil
}

func (p *FeedPublisher) Publish(ctx context.Context, listingID string, data []byte) (string, error) {
	key, err := feedKey(listingID)
	if err != nil {
		return "", err
	}
	if err := p.ensureBucket(ctx); err != nil {
		return "", err
	}
	_, err = p.client.PutObject(ctx, p.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  feedContentType,
		CacheControl: "no-cache",
	})
	if err != nil {
		return "", fmt.Errorf("s3: put object: %w", err)
	}
	publicURL := p.objectURL(key)
	p.logger.Info("listing feed published", "bucket", p.bucket, "key", key, "url", publicURL)
	return publicURL, nil
}

func feedKey(listingID string) (string, error) {
	id := strings.TrimSpace(listingID)
	if id == "" || strings.ContainsAny(id, "/\\") {
		return "", errors.New("s3: invalid listing id for feed key")
	}
	return "feeds/" + id + ".ics", nil
}

func (p *FeedPublisher) ensureBucket(ctx context.Context) error {
	p.bucketInitOnce.Do(func() {
		exists, err := p.client.BucketExists(ctx, p.bucket)
		if err != nil {
			p.bucketInitErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
			p.bucketInitErr = fmt.Errorf("s3: create bucket: %w", err)
			return
		}
		if err := p.allowPublicRead(ctx); err != nil {
			p.bucketInitErr = err
		}
	})
	return p.bucketInitErr
}

func (p *FeedPublisher) allowPublicRead(ctx context.Context) error {
	policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/feeds/*"]}]}`, p.bucket)
	if err := p.client.SetBucketPolicy(ctx, p.bucket, policy); err != nil {
		return fmt.Errorf("s3: set bucket policy: %w", err)
	}
	return nil
}

func (p *FeedPublisher) objectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", p.publicBaseURL, p.bucket, strings.TrimLeft(key, "/"))
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ policies.FeedPublisher = (*FeedPublisher)(nil)
