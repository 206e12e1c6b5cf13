package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Capitan-Parrot/site-safety-monitor/internal/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioSource serves frames from a bucket folder, one object per frame.
// The source URL has the shape minio://host/bucket/folder (the scheme is
// ignored); keys are listed once at open and read lazily so memory stays
// bounded by one frame. A failed read does not advance the cursor, so the
// pipeline can retry the same frame after its reconnect backoff without
// losing stream identity.
type MinioSource struct {
	streamID string
	client   *minio.Client
	bucket   string
	keys     []string
	next     int
}

// NewMinioSource connects to MinIO and lists the frame objects under the
// bucket/folder encoded in sourceURL.
func NewMinioSource(ctx context.Context, streamID, endpoint, accessKey, secretKey, sourceURL string) (*MinioSource, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	bucket, folder, err := splitSourceURL(sourceURL)
	if err != nil {
		return nil, err
	}

	s := &MinioSource{streamID: streamID, client: client, bucket: bucket}
	if err := s.listKeys(ctx, folder); err != nil {
		return nil, err
	}
	return s, nil
}

func splitSourceURL(sourceURL string) (bucket, folder string, err error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return "", "", fmt.Errorf("parse source url: %w", err)
	}
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("source url %q: want bucket/folder", sourceURL)
	}
	return parts[0], parts[1], nil
}

func (s *MinioSource) listKeys(ctx context.Context, folder string) error {
	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    folder,
		Recursive: true,
	})

	for object := range objectCh {
		if object.Err != nil {
			return Unavailable(s.streamID, object.Err)
		}
		if strings.HasSuffix(object.Key, "/") {
			continue
		}
		s.keys = append(s.keys, object.Key)
	}
	sort.Strings(s.keys)
	return nil
}

func (s *MinioSource) Next(ctx context.Context) (*models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.keys) {
		return nil, ErrEndOfStream
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.keys[s.next], minio.GetObjectOptions{})
	if err != nil {
		return nil, Unavailable(s.streamID, err)
	}

	buf := new(bytes.Buffer)
	_, err = io.Copy(buf, obj)
	obj.Close()
	if err != nil {
		return nil, Unavailable(s.streamID, err)
	}

	frame := &models.Frame{
		StreamID:  s.streamID,
		Seq:       uint64(s.next),
		Timestamp: time.Now().UTC(),
		Data:      buf.Bytes(),
	}
	s.next++
	return frame, nil
}

func (s *MinioSource) Close() error { return nil }
