package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/lysyi3m/news-comb/app/news"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver stores each processing result as a JSON object under
// <prefix><source>/<yyyy>/<mm>/<dd>/<article id>.json.
type S3Archiver struct {
	client objectPutter
	bucket string
	prefix string
}

func NewS3Archiver(ctx context.Context, bucket, prefix, region string) (*S3Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 archiver requires a bucket")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return newS3Archiver(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func newS3Archiver(client objectPutter, bucket, prefix string) *S3Archiver {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Archiver) Key(article news.Article, result news.ProcessingResult) string {
	source := article.Source
	if source == "" {
		source = "unknown"
	}
	return fmt.Sprintf("%s%s/%s/%d.json", s.prefix, source, result.ProcessedAt.UTC().Format("2006/01/02"), article.ID)
}

func (s *S3Archiver) Publish(ctx context.Context, article news.Article, result news.ProcessingResult) error {
	body, err := json.Marshal(NewEvent(article, result))
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.Key(article, result)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object to S3: %w", err)
	}
	return nil
}
