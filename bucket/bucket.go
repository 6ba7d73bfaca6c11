// Package bucket is the concrete remote object bucket adapter (spec §6
// "Remote object store") over github.com/aws/aws-sdk-go-v2/service/s3,
// the teacher's go.mod cloud-storage dependency.
package bucket

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/zetavcs/zeta/hostapi"
)

// S3Bucket implements hostapi.RemoteBucket over a single S3 (or
// S3-compatible) bucket.
type S3Bucket struct {
	client *s3.Client
	bucket string
}

var _ hostapi.RemoteBucket = (*S3Bucket)(nil)

// New loads the default AWS credential chain and returns an S3Bucket
// bound to bucketName.
func New(ctx context.Context, bucketName string) (*S3Bucket, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &S3Bucket{client: s3.NewFromConfig(cfg), bucket: bucketName}, nil
}

// NewWithClient wraps an already-configured S3 client, e.g. one pointed
// at a non-AWS S3-compatible endpoint.
func NewWithClient(client *s3.Client, bucketName string) *S3Bucket {
	return &S3Bucket{client: client, bucket: bucketName}
}

func (b *S3Bucket) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(key)})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *S3Bucket) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (b *S3Bucket) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(key)})
	return err
}

func (b *S3Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (b *S3Bucket) GetRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	rangeHeader := aws.String(httpRange(offset, length))
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Range:  rangeHeader,
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func httpRange(offset, length int64) string {
	end := offset + length - 1
	return "bytes=" + itoa(offset) + "-" + itoa(end)
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
