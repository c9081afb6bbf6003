package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/Dmitryqr/defect-detection-website/internal/repository"
)

const s3Prefix = "sessions/"

// S3Store keeps one object per session item under sessions/<id>/<key>.
type S3Store struct {
	repo repository.S3Repository
}

var _ Storage = (*S3Store)(nil)

func NewS3Store(repo repository.S3Repository) *S3Store {
	return &S3Store{repo: repo}
}

func itemKey(sessionID, key string) string {
	return path.Join(strings.TrimSuffix(s3Prefix, "/"), sessionID, key)
}

func (s *S3Store) SetItem(ctx context.Context, sessionID, key, value string) error {
	body := strings.NewReader(value)
	if err := s.repo.UploadFile(ctx, itemKey(sessionID, key), body, int64(len(value)), "text/plain; charset=utf-8"); err != nil {
		return fmt.Errorf("failed to set item: %w", err)
	}
	return nil
}

func (s *S3Store) GetItem(ctx context.Context, sessionID, key string) (string, bool, error) {
	rc, err := s.repo.DownloadFile(ctx, itemKey(sessionID, key))
	if errors.Is(err, repository.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get item: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", false, fmt.Errorf("failed to read item: %w", err)
	}
	return string(data), true, nil
}

func (s *S3Store) Clear(ctx context.Context, sessionID string) error {
	objects, err := s.repo.ListFiles(ctx, s3Prefix+sessionID+"/")
	if err != nil {
		return fmt.Errorf("failed to list session items: %w", err)
	}
	for _, obj := range objects {
		if err := s.repo.DeleteFile(ctx, obj.Key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", obj.Key, err)
		}
	}
	return nil
}

func (s *S3Store) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	objects, err := s.repo.ListFiles(ctx, s3Prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list session items: %w", err)
	}

	removed := 0
	for _, obj := range objects {
		if !obj.LastModified.Before(cutoff) {
			continue
		}
		if err := s.repo.DeleteFile(ctx, obj.Key); err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", obj.Key, err)
		}
		removed++
	}
	return removed, nil
}

func (s *S3Store) Close() error { return nil }
