package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/papervault/internal/common"
)

// ObjectAPI is the subset of *s3.Client used by S3Store.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Options configures an S3-compatible backend (AWS or MinIO).
type S3Options struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
	Bucket    string
	Prefix    string
}

// seams for tests
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) ObjectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Store keeps blobs as objects "<prefix><name>" in one bucket. The prefix
// plays the role of the root directory.
type S3Store struct {
	client  ObjectAPI
	bucket  string
	prefix  string
	limiter limiter
}

// NewS3Store builds an S3 client with static credentials and a path-style
// custom endpoint.
func NewS3Store(ctx context.Context, o S3Options, maxInFlight int64) (*S3Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(o.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(opts *s3.Options) {
		if o.Endpoint != "" {
			opts.BaseEndpoint = aws.String(o.Endpoint)
		}
		opts.UsePathStyle = true
	})

	return NewS3StoreWithClient(client, o.Bucket, o.Prefix, maxInFlight), nil
}

// NewS3StoreWithClient wires an existing client.
func NewS3StoreWithClient(client ObjectAPI, bucket, prefix string, maxInFlight int64) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix, limiter: newLimiter(maxInFlight)}
}

func (s *S3Store) key(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return s.prefix + name, nil
}

func (s *S3Store) Locate(name string) (string, error) {
	return s.key(name)
}

func (s *S3Store) checkKey(path string) (string, error) {
	name, ok := strings.CutPrefix(path, s.prefix)
	if !ok {
		return "", fmt.Errorf("%w: outside root", common.ErrInvalidFileName)
	}
	return s.key(name)
}

func (s *S3Store) Write(ctx context.Context, name string, data []byte) (string, error) {
	key, err := s.key(name)
	if err != nil {
		return "", err
	}

	err = s.limiter.do(ctx, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String("application/octet-stream"),
		})
		if err != nil {
			return ioError("put object", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (s *S3Store) Read(ctx context.Context, path string) ([]byte, error) {
	key, err := s.checkKey(path)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = s.limiter.do(ctx, func() error {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return ioError("get object", err)
		}
		defer out.Body.Close()

		data, err = io.ReadAll(out.Body)
		if err != nil {
			return ioError("read body", err)
		}
		return nil
	})
	return data, err
}

// Delete removes the object. S3 reports success for missing keys.
func (s *S3Store) Delete(ctx context.Context, path string) error {
	key, err := s.checkKey(path)
	if err != nil {
		return err
	}

	return s.limiter.do(ctx, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return ioError("delete object", err)
		}
		return nil
	})
}

func (s *S3Store) List(ctx context.Context) ([]Object, error) {
	var out []Object
	err := s.limiter.do(ctx, func() error {
		p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket:    aws.String(s.bucket),
			Prefix:    aws.String(s.prefix),
			Delimiter: aws.String("/"),
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return ioError("list objects", err)
			}
			for _, o := range page.Contents {
				if _, err := s.checkKey(aws.ToString(o.Key)); err != nil {
					continue
				}
				out = append(out, Object{
					Path:    aws.ToString(o.Key),
					Size:    aws.ToInt64(o.Size),
					ModTime: aws.ToTime(o.LastModified),
				})
			}
		}
		return nil
	})
	return out, err
}
