package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/maneesh/fasttranscribe/internal/logging"
)

var tracer = otel.Tracer("fasttranscribe-storage")

// MinioClient stores uploaded audio and transcripts in MinIO with tracing
type MinioClient struct {
	client     *minio.Client
	bucketName string
}

// NewMinioClient initializes a new MinIO client
func NewMinioClient(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinioClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	mc := &MinioClient{
		client:     client,
		bucketName: bucketName,
	}

	// Ensure bucket exists
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		logging.Info("creating bucket", zap.String("bucket", bucketName))
		err = client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return mc, nil
}

// PutObject streams an object of the given size to the bucket
func (mc *MinioClient) PutObject(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error {
	ctx, span := tracer.Start(ctx, "minio.put_object",
		trace.WithAttributes(
			attribute.String("object_key", objectKey),
			attribute.Int64("size_bytes", size),
		),
	)
	defer span.End()

	_, err := mc.client.PutObject(ctx, mc.bucketName, objectKey, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upload object: %w", err)
	}

	span.SetAttributes(attribute.Bool("upload_success", true))
	return nil
}

// ReadObject downloads a whole object. A missing key is not an error and
// returns nil, nil.
func (mc *MinioClient) ReadObject(ctx context.Context, objectKey string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "minio.read_object",
		trace.WithAttributes(
			attribute.String("object_key", objectKey),
		),
	)
	defer span.End()

	object, err := mc.client.GetObject(ctx, mc.bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer object.Close()

	// GetObject is lazy, the missing key only surfaces on the first read
	data, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			span.SetAttributes(attribute.Bool("found", false))
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read object data: %w", err)
	}

	span.SetAttributes(
		attribute.Int("size_bytes", len(data)),
		attribute.Bool("found", true),
	)
	return data, nil
}

// DeleteObject removes an object. Removing a missing key succeeds.
func (mc *MinioClient) DeleteObject(ctx context.Context, objectKey string) error {
	ctx, span := tracer.Start(ctx, "minio.delete_object",
		trace.WithAttributes(
			attribute.String("object_key", objectKey),
		),
	)
	defer span.End()

	err := mc.client.RemoveObject(ctx, mc.bucketName, objectKey, minio.RemoveObjectOptions{})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}
