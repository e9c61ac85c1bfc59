package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	ErrMediaEmpty       = errors.New("media reference has neither url nor data")
	ErrMediaURLInvalid  = errors.New("media url must be an absolute http(s) url")
	ErrMediaTooLarge    = errors.New("media blob exceeds size limit")
	ErrMediaUnsupported = errors.New("unsupported media content type")
)

// MaxMediaBytes bounds an inline media upload.
const MaxMediaBytes = 5 << 20

var allowedMediaTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// MediaRef is either an existing URL or raw bytes to upload.
type MediaRef struct {
	URL         string
	Data        []byte
	ContentType string
	Filename    string
}

// MediaStore turns a blob or URL into a stable media URL.
type MediaStore interface {
	StoreMedia(ctx context.Context, ref MediaRef) (string, error)
}

// PresignedUpload describes a direct browser upload slot.
type PresignedUpload struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
	PublicURL string `json:"public_url"`
	ExpiresIn int64  `json:"expires_in"`
}

type S3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3PresignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3MediaStore uploads wizard media to a bucket.
type S3MediaStore struct {
	client    S3PutAPI
	presigner S3PresignAPI
	bucket    string
	prefix    string
	endpoint  string
	cdnDomain string
}

func NewS3MediaStore(client S3PutAPI, presigner S3PresignAPI, bucket, prefix, endpoint, cdnDomain string) *S3MediaStore {
	return &S3MediaStore{
		client:    client,
		presigner: presigner,
		bucket:    bucket,
		prefix:    prefix,
		endpoint:  endpoint,
		cdnDomain: cdnDomain,
	}
}

// StoreMedia passes URLs through after checking them and uploads blobs.
func (m *S3MediaStore) StoreMedia(ctx context.Context, ref MediaRef) (string, error) {
	if ref.URL != "" {
		return checkMediaURL(ref.URL)
	}
	if len(ref.Data) == 0 {
		return "", ErrMediaEmpty
	}
	if len(ref.Data) > MaxMediaBytes {
		return "", ErrMediaTooLarge
	}
	ext, ok := allowedMediaTypes[ref.ContentType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMediaUnsupported, ref.ContentType)
	}
	if fe := filepath.Ext(ref.Filename); fe != "" {
		ext = strings.ToLower(fe)
	}

	key := m.objectKey(ext)
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(ref.Data),
		ContentType: aws.String(ref.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}
	return m.publicURL(key), nil
}

// GeneratePresignedUpload returns a presigned PUT for a browser upload.
func (m *S3MediaStore) GeneratePresignedUpload(ctx context.Context, filename, contentType string, expiresSeconds int64) (*PresignedUpload, error) {
	if _, ok := allowedMediaTypes[contentType]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrMediaUnsupported, contentType)
	}
	if expiresSeconds <= 0 {
		expiresSeconds = 900
	}
	key := m.objectKey(strings.ToLower(filepath.Ext(filename)))

	req, err := m.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = time.Duration(expiresSeconds) * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("failed to presign put object: %w", err)
	}
	return &PresignedUpload{
		UploadURL: req.URL,
		Key:       key,
		PublicURL: m.publicURL(key),
		ExpiresIn: expiresSeconds,
	}, nil
}

func (m *S3MediaStore) objectKey(ext string) string {
	return fmt.Sprintf("%swizard_media_%s%s", m.prefix, uuid.New().String(), ext)
}

func (m *S3MediaStore) publicURL(key string) string {
	switch {
	case m.cdnDomain != "":
		return fmt.Sprintf("https://%s/%s", strings.TrimRight(m.cdnDomain, "/"), key)
	case m.endpoint != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(m.endpoint, "/"), m.bucket, key)
	default:
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", m.bucket, key)
	}
}

func checkMediaURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrMediaURLInvalid
	}
	return raw, nil
}

// URLOnlyMediaStore accepts URLs only. Used when no bucket is configured.
type URLOnlyMediaStore struct{}

func (URLOnlyMediaStore) StoreMedia(_ context.Context, ref MediaRef) (string, error) {
	if ref.URL == "" {
		return "", ErrMediaEmpty
	}
	return checkMediaURL(ref.URL)
}
