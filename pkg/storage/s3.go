package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Archive stores artifacts in an S3 bucket, optionally under a key prefix
// so one bucket can hold archives for several deployments.
type S3Archive struct {
	Client *s3.Client
	Bucket string
	Prefix string
}

func NewS3Archive(cfg aws.Config, bucket, prefix string) *S3Archive {
	return &S3Archive{
		Client: s3.NewFromConfig(cfg),
		Bucket: bucket,
		Prefix: prefix,
	}
}

func (a *S3Archive) fullKey(key string) string {
	if a.Prefix == "" {
		return key
	}
	return a.Prefix + "/" + key
}

func (a *S3Archive) Put(ctx context.Context, key string, data []byte) error {
	_, err := a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(a.fullKey(key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("upload %s to s3: %w", key, err)
	}
	return nil
}

func (a *S3Archive) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := a.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(a.fullKey(key)),
	})
	if err != nil {
		return nil, fmt.Errorf("download %s from s3: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (a *S3Archive) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(a.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.Bucket),
		Prefix: aws.String(a.fullKey(prefix)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3 artifacts: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}
