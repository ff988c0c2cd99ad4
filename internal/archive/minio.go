// Package archive stores canvas snapshots in object storage. It is a
// best-effort sidecar: failures are logged, never surfaced to the sync
// path.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Service struct {
	client *minio.Client
	bucket string
}

// New connects to the object store and ensures the snapshot bucket
// exists. Returns nil (archive disabled) when no endpoint is configured.
func New(ctx context.Context, cfg Config) (*Service, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &Service{client: client, bucket: cfg.Bucket}, nil
}

// StoreSnapshot uploads one canvas snapshot keyed by sermon, revision and
// timestamp. Safe to call on a nil service.
func (s *Service) StoreSnapshot(ctx context.Context, sermonID string, revision int64, snapshot any) {
	if s == nil {
		return
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("archive: marshal snapshot sermon=%s: %v", sermonID, err)
		return
	}

	key := fmt.Sprintf("canvas/%s/%d-%s.json", sermonID, revision, time.Now().UTC().Format("20060102T150405Z"))
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		log.Printf("archive: upload snapshot sermon=%s rev=%d: %v", sermonID, revision, err)
		return
	}
}
