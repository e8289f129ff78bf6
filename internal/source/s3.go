// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type (
	// S3Config describes an S3-compatible mirror holding source archives.
	S3Config struct {
		Endpoint  string
		Region    string
		AccessKey string
		SecretKey string
		UseSSL    bool
		MaxBytes  int64
	}

	// S3Fetcher downloads archives addressed as s3://bucket/key.
	S3Fetcher struct {
		client   *minio.Client
		maxBytes int64
	}
)

// NewS3Fetcher creates an S3Fetcher. Anonymous access is used when no
// credentials are configured, which is what public mirrors expect.
func NewS3Fetcher(cfg S3Config) (*S3Fetcher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, &ConfigurationError{Field: "mirror endpoint", Reason: "is required for s3:// sources"}
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	var creds *credentials.Credentials
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	switch {
	case access == "" && secret == "":
		creds = credentials.NewStaticV4("", "", "")
	case access == "" || secret == "":
		return nil, &ConfigurationError{Field: "mirror credentials", Reason: "access key and secret key must be set together"}
	default:
		creds = credentials.NewStaticV4(access, secret, "")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxArchiveBytes
	}

	return &S3Fetcher{client: client, maxBytes: maxBytes}, nil
}

// Fetch downloads the object named by uri into a temp file under dir.
func (f *S3Fetcher) Fetch(ctx context.Context, uri, dir string) (*FetchResult, error) {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return nil, err
	}

	obj, err := f.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s3NetworkError(uri, err)
	}
	defer func() { _ = obj.Close() }()

	// GetObject is lazy; Stat performs the request and surfaces 404/403.
	info, err := obj.Stat()
	if err != nil {
		return nil, s3NetworkError(uri, err)
	}
	if info.Size > f.maxBytes {
		return nil, &NetworkError{URL: redactURL(uri), Err: fmt.Errorf("archive is %d bytes, limit is %d", info.Size, f.maxBytes)}
	}

	return writeTemp(dir, uri, obj, info.Size, f.maxBytes)
}

func parseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "s3" || u.Host == "" || strings.Trim(u.Path, "/") == "" {
		return "", "", &ConfigurationError{Field: "source URI", Value: redactURL(uri), Reason: "must look like s3://bucket/key"}
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

func s3NetworkError(uri string, err error) *NetworkError {
	resp := minio.ToErrorResponse(err)
	return &NetworkError{URL: redactURL(uri), StatusCode: resp.StatusCode, Err: err}
}
