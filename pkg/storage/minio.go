package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const uploadURLExpiry = 15 * time.Minute

// Service talks to the S3-compatible audio bucket. Uploads go directly
// from the browser via presigned PUT URLs; the server only issues URLs
// and constructs the public playback URL afterwards.
type Service struct {
	client        *minio.Client
	logger        *zap.Logger
	bucket        string
	publicBaseURL string
}

// UploadTicket is what a client needs to upload one audio file.
type UploadTicket struct {
	UploadURL  string `json:"upload_url"`
	StorageKey string `json:"storage_key"`
	PublicURL  string `json:"public_url"`
}

func Connect(endpoint, accessKey, secretKey, bucket, publicBaseURL string, useSSL bool, log *zap.Logger) (*Service, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("error checking if bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("error creating bucket: %w", err)
		}
		log.Info("bucket created", zap.String("bucket", bucket))
	}

	log.Info("storage client initialized", zap.String("endpoint", endpoint), zap.String("bucket", bucket))

	return &Service{
		client:        client,
		logger:        log,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// IssueUploadURL returns a presigned PUT ticket for one song file.
func (s *Service) IssueUploadURL(ctx context.Context, storageKey string) (*UploadTicket, error) {
	uploadURL, err := s.client.PresignedPutObject(ctx, s.bucket, storageKey, uploadURLExpiry)
	if err != nil {
		s.logger.Error("failed to presign upload", zap.String("key", storageKey), zap.Error(err))
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &UploadTicket{
		UploadURL:  uploadURL.String(),
		StorageKey: storageKey,
		PublicURL:  s.PublicURL(storageKey),
	}, nil
}

// PublicURL builds the playback URL for a stored object.
func (s *Service) PublicURL(storageKey string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucket, storageKey)
}

// BuildSongKey derives the object key for an uploaded song file:
// rooms/{roomId}/{unix-timestamp}_{sanitized-filename}.
func BuildSongKey(roomID, filename string) string {
	return fmt.Sprintf("rooms/%s/%d_%s", roomID, time.Now().Unix(), SanitizeFilename(filename))
}

// SanitizeFilename strips path separators and characters that are unsafe
// in object keys, keeping the extension readable.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if idx := strings.LastIndexAny(name, "/\\"); idx >= 0 {
		name = name[idx+1:]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	sanitized := b.String()
	if sanitized == "" || sanitized == "." {
		sanitized = "upload"
	}
	// Object keys end up in URLs, keep them escapable as-is.
	return url.PathEscape(sanitized)
}
