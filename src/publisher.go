package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
)

// Publisher receives each run's records after they were persisted. Publisher
// errors never fail a run.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, runID string, rows []MergedRow) error
	Close() error
}

const latestKeyPrefix = "funding:latest:"

// RedisPublisher keeps the most recent row per asset in Redis.
type RedisPublisher struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPublisher(cfg CacheConfig) *RedisPublisher {
	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl: cfg.TTL,
	}
}

func (p *RedisPublisher) Name() string {
	return "redis"
}

func latestKey(asset string) string {
	return latestKeyPrefix + asset
}

func (p *RedisPublisher) Publish(ctx context.Context, runID string, rows []MergedRow) error {
	pipe := p.client.TxPipeline()
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal row %s: %w", row.ID, err)
		}
		pipe.Set(ctx, latestKey(row.Name), data, p.ttl)
	}
	pipe.Set(ctx, latestKey("run"), runID, p.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set latest rates in redis: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// S3Archiver writes every run's records as one JSON object.
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Archiver(ctx context.Context, cfg ArchiveConfig) (*S3Archiver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return &S3Archiver{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (a *S3Archiver) Name() string {
	return "s3"
}

// archiveKey lays objects out by UTC day of the run timestamp.
func archiveKey(prefix string, timestamp float64) string {
	t := time.UnixMicro(int64(timestamp * 1e6)).UTC()
	name := strconv.FormatFloat(timestamp, 'f', -1, 64) + ".json"
	return path.Join(strings.Trim(prefix, "/"), t.Format("2006/01/02"), name)
}

func (a *S3Archiver) Close() error {
	return nil
}

func (a *S3Archiver) Publish(ctx context.Context, runID string, rows []MergedRow) error {
	if len(rows) == 0 {
		return nil
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshaling rows: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(archiveKey(a.prefix, rows[0].Timestamp)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{"run-id": runID},
	})
	if err != nil {
		return fmt.Errorf("uploading archive to s3://%s: %w", a.bucket, err)
	}
	return nil
}
