// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package oss

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type NewBucketOptions struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	AccessKeySecret string
	Region          string
	PathStyle       bool
}

type s3Bucket struct {
	client *s3.Client
	name   string
}

var (
	_ Bucket = &s3Bucket{}
)

// NewBucket opens an S3 (or S3-compatible) bucket. Custom endpoints use
// path-style addressing, which is what MinIO/R2 style backends expect.
func NewBucket(ctx context.Context, opts *NewBucketOptions) (Bucket, error) {
	region := opts.Region
	if len(region) == 0 {
		region = "auto"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if len(opts.AccessKeyID) != 0 {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.AccessKeySecret, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if len(opts.Endpoint) != 0 {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle || len(opts.Endpoint) != 0
	})
	return &s3Bucket{client: client, name: opts.Bucket}, nil
}

func (b *s3Bucket) translateError(key string, err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return notExist(key)
	}
	return err
}

func (b *s3Bucket) Stat(ctx context.Context, key string) (*Stat, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, b.translateError(key, err)
	}
	return &Stat{
		Size: aws.ToInt64(out.ContentLength),
		Mime: aws.ToString(out.ContentType),
		ETag: aws.ToString(out.ETag),
	}, nil
}

func (b *s3Bucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, b.translateError(key, err)
	}
	return out.Body, nil
}

func (b *s3Bucket) Get(ctx context.Context, key string) ([]byte, error) {
	body, err := b.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close() // nolint
	return io.ReadAll(body)
}

func (b *s3Bucket) Put(ctx context.Context, key string, r io.Reader, mime string) error {
	var body io.Reader = r
	if _, seekable := r.(io.ReadSeeker); !seekable {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
		Body:   body,
	}
	if len(mime) != 0 {
		input.ContentType = aws.String(mime)
	}
	_, err := b.client.PutObject(ctx, input)
	return err
}

func (b *s3Bucket) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	return err
}

func (b *s3Bucket) Head(ctx context.Context, key string) (bool, error) {
	_, err := b.Stat(ctx, key)
	if err == nil {
		return true, nil
	}
	if IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (b *s3Bucket) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.name),
		CopySource: aws.String(b.name + "/" + srcKey),
		Key:        aws.String(dstKey),
	})
	return b.translateError(srcKey, err)
}

func (b *s3Bucket) DeleteMultipleObjects(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	identifiers := make([]types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		identifiers = append(identifiers, types.ObjectIdentifier{Key: aws.String(key)})
	}
	_, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(b.name),
		Delete: &types.Delete{Objects: identifiers, Quiet: aws.Bool(true)},
	})
	return err
}

func (b *s3Bucket) ListObjects(ctx context.Context, prefix, continuationToken string) ([]*Object, string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.name),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(MaxKeys),
	}
	if len(continuationToken) != 0 {
		input.ContinuationToken = aws.String(continuationToken)
	}
	out, err := b.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, "", err
	}
	objects := make([]*Object, 0, len(out.Contents))
	for _, o := range out.Contents {
		objects = append(objects, &Object{
			Key:  aws.ToString(o.Key),
			Size: aws.ToInt64(o.Size),
			ETag: aws.ToString(o.ETag),
		})
	}
	if aws.ToBool(out.IsTruncated) {
		return objects, aws.ToString(out.NextContinuationToken), nil
	}
	return objects, "", nil
}
