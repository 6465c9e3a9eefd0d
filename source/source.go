// Package source turns a container location into a local file path.
// Plain paths pass through; s3://bucket/key objects are downloaded to a
// temporary file first.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hashicorp/go-hclog"

	"github.com/robert-malhotra/h5cat/internal/config"
)

const s3Scheme = "s3://"

var (
	ErrNoClient       = errors.New("no S3 client configured")
	ErrInvalidURI     = errors.New("invalid s3 URI")
	ErrObjectNotFound = errors.New("object not found")
)

// ObjectGetter is the part of *s3.Client used for downloads.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewS3Client builds a client from cfg. A custom endpoint together with
// PathStyle targets S3-compatible stores such as Ceph.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	}), nil
}

// ParseS3URI splits s3://bucket/key. ok is false for anything that is not
// an s3 URI.
func ParseS3URI(uri string) (bucket, key string, ok bool, err error) {
	if !strings.HasPrefix(uri, s3Scheme) {
		return "", "", false, nil
	}
	bucket, key, _ = strings.Cut(strings.TrimPrefix(uri, s3Scheme), "/")
	if bucket == "" || key == "" {
		return "", "", true, fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	return bucket, key, true, nil
}

// Resolver maps locations to local paths.
type Resolver struct {
	Client ObjectGetter
	// TempDir holds downloads; empty means os.TempDir.
	TempDir string
	Logger  hclog.Logger
}

// Resolve returns a local path for uri and a cleanup func that removes any
// temporary download. cleanup is never nil.
func (r *Resolver) Resolve(ctx context.Context, uri string) (string, func(), error) {
	noop := func() {}
	bucket, key, isS3, err := ParseS3URI(uri)
	if err != nil {
		return "", noop, err
	}
	if !isS3 {
		return uri, noop, nil
	}
	if r.Client == nil {
		return "", noop, ErrNoClient
	}

	log := r.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}

	out, err := r.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return "", noop, fmt.Errorf("%w: %s", ErrObjectNotFound, uri)
		}
		return "", noop, fmt.Errorf("fetching %s: %w", uri, err)
	}
	defer out.Body.Close()

	f, err := os.CreateTemp(r.TempDir, "h5cat-*.h5")
	if err != nil {
		return "", noop, err
	}
	cleanup := func() { os.Remove(f.Name()) }

	n, err := io.Copy(f, out.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", noop, fmt.Errorf("downloading %s: %w", uri, err)
	}
	log.Debug("downloaded object", "path", uri, "bytes", n, "file", f.Name())
	return f.Name(), cleanup, nil
}
