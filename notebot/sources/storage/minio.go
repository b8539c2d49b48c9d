package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"notebot/notebot/config"
)

// VoiceArchive keeps the raw voice recordings behind voice notes.
type VoiceArchive struct {
	client *minio.Client
	bucket string
}

func NewVoiceArchive(ctx context.Context, cfg config.Config) (*VoiceArchive, error) {
	client, err := minio.New(
		cfg.MinIOEndpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
			Secure: cfg.MinIOUseSSL,
		},
	)
	if err != nil {
		return nil, err
	}
	// Create bucket if not exists
	exists, err := client.BucketExists(ctx, cfg.MinIOBucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinIOBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}
	return &VoiceArchive{client: client, bucket: cfg.MinIOBucket}, nil
}

// VoiceKey is the object key for a note's recording: voice/<user>/<note><ext>.
func VoiceKey(userID int64, noteID uint, file string) string {
	ext := strings.ToLower(filepath.Ext(file))
	if ext == "" {
		ext = ".ogg"
	}
	return path.Join("voice", fmt.Sprint(userID), fmt.Sprintf("%d%s", noteID, ext))
}

func (a *VoiceArchive) UploadVoice(ctx context.Context, userID int64, noteID uint, file string) (string, error) {
	key := VoiceKey(userID, noteID, file)
	_, err := a.client.FPutObject(ctx, a.bucket, key, file, minio.PutObjectOptions{
		ContentType: contentType(file),
		UserMetadata: map[string]string{
			"user-id":     fmt.Sprint(userID),
			"note-id":     fmt.Sprint(noteID),
			"archived-at": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	default:
		return "audio/ogg"
	}
}
