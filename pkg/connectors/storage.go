package connectors

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/jjpp222/tutor-aleman-backend/config"
	"github.com/jjpp222/tutor-aleman-backend/pkg/commons"
)

// BlobProperties are the only artifact properties the mixing pipeline inspects.
type BlobProperties struct {
	Size int64
}

// BlobStorageConnector is the object-storage surface the session and mixer
// code consumes. Blob names are keyed {userId}/{sessionId}/{artifact}.
type BlobStorageConnector interface {
	Exists(ctx context.Context, blobName string) (bool, error)
	GetProperties(ctx context.Context, blobName string) (*BlobProperties, error)
	DownloadToFile(ctx context.Context, blobName, localPath string) error
	UploadFile(ctx context.Context, localPath, blobName, contentType string) error
	PresignGet(blobName string, expiry time.Duration) (string, error)
}

type s3Connector struct {
	bucket     string
	client     *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	logger     commons.Logger
}

func NewBlobStorageConnector(cfg *config.AppConfig, logger commons.Logger) (BlobStorageConnector, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.BlobStoreConfig.Region)
	if cfg.BlobStoreConfig.AccessKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(
			cfg.BlobStoreConfig.AccessKey, cfg.BlobStoreConfig.SecretKey, ""))
	}
	if cfg.BlobStoreConfig.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.BlobStoreConfig.Endpoint).WithS3ForcePathStyle(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create blob store session: %w", err)
	}

	logger.Infof("blob store connected: bucket=%s region=%s",
		cfg.BlobStoreConfig.Bucket, cfg.BlobStoreConfig.Region)

	return &s3Connector{
		bucket:     cfg.BlobStoreConfig.Bucket,
		client:     s3.New(sess),
		uploader:   s3manager.NewUploader(sess),
		downloader: s3manager.NewDownloader(sess),
		logger:     logger,
	}, nil
}

func (c *s3Connector) Exists(ctx context.Context, blobName string) (bool, error) {
	_, err := c.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(blobName),
	})
	if err != nil {
		if aerr, ok := err.(awserr.RequestFailure); ok && aerr.StatusCode() == 404 {
			return false, nil
		}
		return false, fmt.Errorf("head object %s: %w", blobName, err)
	}
	return true, nil
}

func (c *s3Connector) GetProperties(ctx context.Context, blobName string) (*BlobProperties, error) {
	out, err := c.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(blobName),
	})
	if err != nil {
		return nil, fmt.Errorf("head object %s: %w", blobName, err)
	}
	return &BlobProperties{Size: aws.Int64Value(out.ContentLength)}, nil
}

func (c *s3Connector) DownloadToFile(ctx context.Context, blobName, localPath string) error {
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = c.downloader.DownloadWithContext(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(blobName),
	})
	if err != nil {
		return fmt.Errorf("download %s: %w", blobName, err)
	}
	return nil
}

func (c *s3Connector) UploadFile(ctx context.Context, localPath, blobName, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = c.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(blobName),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", blobName, err)
	}
	return nil
}

// PresignGet returns a time-limited download URL for a blob. Used by the
// download endpoint once a session's mix is completed.
func (c *s3Connector) PresignGet(blobName string, expiry time.Duration) (string, error) {
	req, _ := c.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(blobName),
	})
	url, err := req.Presign(expiry)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", blobName, err)
	}
	return url, nil
}
