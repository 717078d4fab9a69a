/*
Copyright 2018 Google LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package objectstore

import (
	"bytes"
	"context"
	"fmt"

	goerrors "errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// s3API is the subset of *s3.Client this package calls, narrowed for
// testability.
type s3API interface {
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Store is the real Store implementation, backed by
// github.com/aws/aws-sdk-go-v2/service/s3.
type S3Store struct {
	api s3API
}

var _ Store = (*S3Store)(nil)

// NewS3Store wraps an aws.Config into an S3Store.
func NewS3Store(cfg aws.Config) *S3Store {
	return &S3Store{api: s3.NewFromConfig(cfg)}
}

func (s *S3Store) CreateMultipartUpload(ctx context.Context, bucket, key string, metadata map[string]string) (string, error) {
	logrus.Debugf("objectstore: CreateMultipartUpload bucket=%s key=%s", bucket, key)
	out, err := s.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		Metadata: metadata,
	})
	if err != nil {
		return "", wrapStoreError(err, "create multipart upload")
	}
	return aws.ToString(out.UploadId), nil
}

func (s *S3Store) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int32, body []byte) (string, error) {
	logrus.Debugf("objectstore: UploadPart bucket=%s key=%s part=%d", bucket, key, partNumber)
	out, err := s.api.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
		Body:       bytes.NewReader(body),
	})
	if err != nil {
		return "", wrapStoreError(err, "upload part")
	}
	return aws.ToString(out.ETag), nil
}

func (s *S3Store) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []Part) error {
	logrus.Debugf("objectstore: CompleteMultipartUpload bucket=%s key=%s parts=%d", bucket, key, len(parts))
	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		}
	}
	_, err := s.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return wrapStoreError(err, "complete multipart upload")
	}
	return nil
}

func (s *S3Store) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	logrus.Debugf("objectstore: AbortMultipartUpload bucket=%s key=%s", bucket, key)
	_, err := s.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return wrapStoreError(err, "abort multipart upload")
	}
	return nil
}

func (s *S3Store) PutObject(ctx context.Context, bucket, key string, body []byte, metadata map[string]string) error {
	logrus.Debugf("objectstore: PutObject bucket=%s key=%s len=%d", bucket, key, len(body))
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(body),
		Metadata: metadata,
	})
	if err != nil {
		return wrapStoreError(err, "put object")
	}
	return nil
}

func (s *S3Store) GetObject(ctx context.Context, bucket, key string, byteRange *ByteRange) (*GetObjectOutput, error) {
	logrus.Debugf("objectstore: GetObject bucket=%s key=%s range=%v", bucket, key, byteRange)
	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if byteRange != nil {
		input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", byteRange.Start, byteRange.End))
	}
	out, err := s.api.GetObject(ctx, input)
	if err != nil {
		return nil, wrapStoreError(err, "get object")
	}
	return &GetObjectOutput{
		Body:          out.Body,
		ContentLength: aws.ToInt64(out.ContentLength),
		Metadata:      out.Metadata,
	}, nil
}

func (s *S3Store) HeadObject(ctx context.Context, bucket, key string) (*HeadObjectOutput, error) {
	logrus.Debugf("objectstore: HeadObject bucket=%s key=%s", bucket, key)
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrapStoreError(err, "head object")
	}
	return &HeadObjectOutput{
		ContentLength: aws.ToInt64(out.ContentLength),
		Metadata:      out.Metadata,
	}, nil
}

// wrapStoreError normalizes a NoSuchKey/NoSuchUpload/NotFound API error
// into ErrNotFound, and otherwise wraps with call-site context.
func wrapStoreError(err error, op string) error {
	if isNotFound(err) {
		return errors.Wrapf(ErrNotFound, "objectstore: %s", op)
	}
	return errors.Wrapf(err, "objectstore: %s", op)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if goerrors.As(err, &nsk) {
		return true
	}
	var nsu *types.NoSuchUpload
	if goerrors.As(err, &nsu) {
		return true
	}
	var apiErr smithy.APIError
	if goerrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchUpload", "NotFound", "404":
			return true
		}
	}
	return false
}
