package projectindex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string // object key prefix, usually the project name
	UseSSL    bool
}

// S3Store keeps the snapshot files as objects in an S3-compatible bucket.
type S3Store struct {
	client *minio.Client
	bucket string
	region string
	prefix string

	bucketMu    sync.Mutex
	bucketReady bool
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("projectindex: s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("projectindex: s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("projectindex: s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("projectindex: init s3 client: %w", err)
	}
	return &S3Store{
		client: client,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// ensureBucket creates the bucket on first use. A failed attempt is retried
// by the next call.
func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	if s.bucketReady {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return err
		}
	}
	s.bucketReady = true
	return nil
}

func (s *S3Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3Store) get(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}
	return data, nil
}

func (s *S3Store) put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	return err
}

func (s *S3Store) Load(ctx context.Context) (*Index, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("projectindex: ensure bucket: %w", err)
	}
	files, err := s.get(ctx, FilesSnapshotName)
	if err != nil {
		return nil, err
	}
	notes, err := s.get(ctx, NamespaceSnapshotName)
	if errors.Is(err, ErrNoSnapshot) {
		return LoadSnapshot(bytes.NewReader(files), nil)
	}
	if err != nil {
		return nil, err
	}
	return LoadSnapshot(bytes.NewReader(files), bytes.NewReader(notes))
}

func (s *S3Store) Save(ctx context.Context, x *Index) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("projectindex: ensure bucket: %w", err)
	}
	var files, notes bytes.Buffer
	if err := x.WriteFiles(&files); err != nil {
		return err
	}
	if err := x.WriteNamespaces(&notes); err != nil {
		return err
	}
	if err := s.put(ctx, FilesSnapshotName, files.Bytes()); err != nil {
		return fmt.Errorf("projectindex: put files: %w", err)
	}
	if err := s.put(ctx, NamespaceSnapshotName, notes.Bytes()); err != nil {
		return fmt.Errorf("projectindex: put namespaces: %w", err)
	}
	return nil
}
