package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	ctxTimeout = 10 * time.Second
)

// S3Config holds the connection settings for an S3-compatible backend.
type S3Config struct {
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	UseSSL          bool   `json:"use_ssl"`
	Region          string `json:"region"`
	Bucket          string `json:"bucket"`
	KeyPrefix       string `json:"key_prefix"`
}

// S3Store implements the Store interface using a MinIO client.
// Object layout:
//
//	bucket/
//	└── [keyPrefix/]
//	    ├── report.pdf.ren      # encrypted file
//	    ├── report.pdf.renkey   # companion key file
//	    └── notes.txt.ren
type S3Store struct {
	// client is the MinIO client used to interact with the S3 service.
	client *minio.Client

	// bucketName is the bucket holding the artifacts.
	bucketName string

	// keyPrefix is an optional namespace prefix, allowing multiple
	// applications to share a bucket.
	keyPrefix string
}

// NewS3Store initializes a new S3Store, connecting to the configured
// endpoint and ensuring the bucket exists.
func NewS3Store(config S3Config) (*S3Store, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	// Create MinIO client
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	store := &S3Store{
		client:     client,
		bucketName: config.Bucket,
		keyPrefix:  config.KeyPrefix,
	}

	ctx, cancel := context.WithTimeout(context.Background(), ctxTimeout)
	defer cancel()

	if err = store.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return store, nil
}

// NewS3StoreFromConfig initializes a new S3Store instance from the given StoreConfig.
func NewS3StoreFromConfig(config StoreConfig) (*S3Store, error) {
	if config.Type != StoreTypeS3 {
		return nil, fmt.Errorf("invalid store type for S3: %s", config.Type)
	}

	// Parse the config map into S3Config
	configBytes, err := json.Marshal(config.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	var s3Config S3Config
	if err = json.Unmarshal(configBytes, &s3Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal S3 config: %w", err)
	}

	return NewS3Store(s3Config)
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (s *S3Store) objectKey(name, ext string) string {
	return s.keyPrefix + name + ext
}

func (s *S3Store) putObject(key string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), ctxTimeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, s.bucketName, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) getObject(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ctxTimeout)
	defer cancel()

	object, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		var errResp minio.ErrorResponse
		if errors.As(err, &errResp) && errResp.Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

func (s *S3Store) objectExists(key string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ctxTimeout)
	defer cancel()

	_, err := s.client.StatObject(ctx, s.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		var errResp minio.ErrorResponse
		if errors.As(err, &errResp) && errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return true, nil
}

func (s *S3Store) SaveEnvelope(name string, envelope []byte) error {
	if err := validateArtifactName(name); err != nil {
		return err
	}
	return s.putObject(s.objectKey(name, EnvelopeExt), envelope)
}

func (s *S3Store) LoadEnvelope(name string) ([]byte, error) {
	if err := validateArtifactName(name); err != nil {
		return nil, err
	}

	data, err := s.getObject(s.objectKey(name, EnvelopeExt))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("envelope %s: %w", name, ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

func (s *S3Store) EnvelopeExists(name string) (bool, error) {
	if err := validateArtifactName(name); err != nil {
		return false, err
	}
	return s.objectExists(s.objectKey(name, EnvelopeExt))
}

func (s *S3Store) SaveKeyFile(name string, keyFileText string) error {
	if err := validateArtifactName(name); err != nil {
		return err
	}
	return s.putObject(s.objectKey(name, KeyFileExt), []byte(keyFileText))
}

func (s *S3Store) LoadKeyFile(name string) (string, error) {
	if err := validateArtifactName(name); err != nil {
		return "", err
	}

	data, err := s.getObject(s.objectKey(name, KeyFileExt))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("key file %s: %w", name, ErrNotFound)
		}
		return "", err
	}
	return string(data), nil
}

func (s *S3Store) KeyFileExists(name string) (bool, error) {
	if err := validateArtifactName(name); err != nil {
		return false, err
	}
	return s.objectExists(s.objectKey(name, KeyFileExt))
}

// List enumerates envelopes under the key prefix, sorted by name.
func (s *S3Store) List() ([]ArtifactInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ctxTimeout)
	defer cancel()

	keyFiles := make(map[string]bool)
	var artifacts []ArtifactInfo

	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    s.keyPrefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}

		key := strings.TrimPrefix(object.Key, s.keyPrefix)
		switch {
		case strings.HasSuffix(key, KeyFileExt):
			keyFiles[strings.TrimSuffix(key, KeyFileExt)] = true
		case strings.HasSuffix(key, EnvelopeExt):
			artifacts = append(artifacts, ArtifactInfo{
				Name:       strings.TrimSuffix(key, EnvelopeExt),
				Size:       object.Size,
				ModifiedAt: object.LastModified,
			})
		}
	}

	for i := range artifacts {
		artifacts[i].HasKeyFile = keyFiles[artifacts[i].Name]
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Name < artifacts[j].Name
	})
	return artifacts, nil
}

// Delete removes an envelope and its companion key file, if any.
func (s *S3Store) Delete(name string) error {
	if err := validateArtifactName(name); err != nil {
		return err
	}

	exists, err := s.EnvelopeExists(name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("envelope %s: %w", name, ErrNotFound)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ctxTimeout)
	defer cancel()

	if err = s.client.RemoveObject(ctx, s.bucketName, s.objectKey(name, EnvelopeExt), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete envelope %s: %w", name, err)
	}

	// Companion key file is optional; RemoveObject on a missing key is a no-op
	if err = s.client.RemoveObject(ctx, s.bucketName, s.objectKey(name, KeyFileExt), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete key file %s: %w", name, err)
	}
	return nil
}

func (s *S3Store) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), ctxTimeout)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("S3 backend not reachable: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucketName)
	}
	return nil
}

func (s *S3Store) GetType() string {
	return string(StoreTypeS3)
}
