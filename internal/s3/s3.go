package s3

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const snapshotBucket = "snapshots"

// Client хранит снапшоты кадров, приложенные к алертам
type Client struct {
	client *minio.Client
}

func NewMinioClient(endpoint, accessKey, secretKey string) (*Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &Client{client: client}, nil
}

// SaveSnapshot сохраняет кадр алерта в бакет snapshots
// в папку с именем стрима под именем файла - номером кадра.
// Returns the object path to reference from the alert.
func (c *Client) SaveSnapshot(ctx context.Context, streamID string, frameSeq uint64, jpeg []byte) (string, error) {
	objectPath := fmt.Sprintf("%s/%d.jpg", streamID, frameSeq)

	_, err := c.client.PutObject(
		ctx,
		snapshotBucket,
		objectPath,
		bytes.NewReader(jpeg),
		int64(len(jpeg)),
		minio.PutObjectOptions{
			ContentType: "image/jpeg",
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to save snapshot to S3: %w", err)
	}

	return snapshotBucket + "/" + objectPath, nil
}
