// Copyright 2026 The Aegisfs Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/aegisfs/aegisfs/internal/logger"
)

// Config describes the connection parameters for an S3-compatible
// backend, mirroring the [s3] table of the mount configuration file.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// S3Store is the Store implementation backed by an S3-compatible
// object service, reached through the AWS SDK for Go v2.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds an S3Store from cfg, resolving credentials and endpoint
// overrides the way the mount command's config loader prepares them.
// If cfg.AccessKeyID is empty, credentials fall back to the SDK's
// ambient discovery chain (environment, shared config, IMDS).
func New(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Prefix != "" && !strings.HasSuffix(cfg.Prefix, "/") {
		logger.Warnf("object store prefix %q does not end with '/'; using it verbatim", cfg.Prefix)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = awssdk.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// objectKey implements §4.1's key construction: configured prefix
// concatenated with the path, leading slash trimmed.
func (s *S3Store) objectKey(path string) string {
	return s.prefix + strings.TrimPrefix(path, "/")
}

func (s *S3Store) Get(ctx context.Context, path string) ([]byte, error) {
	key := s.objectKey(path)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: awssdk.String(s.bucket),
		Key:    awssdk.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, &Unavailable{Op: "get", Key: key, Err: err}
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &Unavailable{Op: "get", Key: key, Err: err}
	}
	return body, nil
}

func (s *S3Store) Put(ctx context.Context, path string, body []byte) error {
	key := s.objectKey(path)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: awssdk.String(s.bucket),
		Key:    awssdk.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return &Unavailable{Op: "put", Key: key, Err: err}
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, path string) error {
	key := s.objectKey(path)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: awssdk.String(s.bucket),
		Key:    awssdk.String(key),
	})
	if err != nil && !isNotFound(err) {
		return &Unavailable{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]Entry, error) {
	key := s.objectKey(prefix)
	var entries []Entry
	var token *string

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            awssdk.String(s.bucket),
			Prefix:            awssdk.String(key),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, &Unavailable{Op: "list", Key: key, Err: err}
		}

		for _, obj := range out.Contents {
			logicalPath := strings.TrimPrefix(awssdk.ToString(obj.Key), s.prefix)
			size := int64(0)
			if obj.Size != nil {
				size = *obj.Size
			}
			entries = append(entries, Entry{Path: logicalPath, Size: size})
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}

	return entries, nil
}

func (s *S3Store) Exists(ctx context.Context, path string) (bool, error) {
	key := s.objectKey(path)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: awssdk.String(s.bucket),
		Key:    awssdk.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, &Unavailable{Op: "exists", Key: key, Err: err}
}

// isNotFound recognizes the handful of shapes the SDK uses to signal a
// missing key or object across GetObject, HeadObject, and DeleteObject.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var respErr *http.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return true
	}
	return false
}
