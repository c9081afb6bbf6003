// Package session holds the single-session handoff between the upload page
// and the results page: a small key/value space per browser session that
// expires with the session.
package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Dmitryqr/defect-detection-website/internal/domain"
)

// Keys written by the analysis and read by the results page.
const (
	KeyAnalyzedImage = "analyzedImage"
	KeyFileName      = "fileName"
)

// Storage is a session-scoped key/value store. Last write wins.
type Storage interface {
	SetItem(ctx context.Context, sessionID, key, value string) error
	// GetItem reports ok=false when the key was never written or expired.
	GetItem(ctx context.Context, sessionID, key string) (value string, ok bool, err error)
	Clear(ctx context.Context, sessionID string) error
	// Sweep removes every item last written before cutoff.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// WritePayload stores both handoff keys for sessionID.
func WritePayload(ctx context.Context, s Storage, sessionID string, p domain.SessionPayload) error {
	if err := s.SetItem(ctx, sessionID, KeyAnalyzedImage, p.ImageData); err != nil {
		return fmt.Errorf("failed to store %s: %w", KeyAnalyzedImage, err)
	}
	if err := s.SetItem(ctx, sessionID, KeyFileName, p.FileName); err != nil {
		return fmt.Errorf("failed to store %s: %w", KeyFileName, err)
	}
	return nil
}

// ReadPayload loads the handoff keys for sessionID. Missing keys are left
// empty; each field is independent.
func ReadPayload(ctx context.Context, s Storage, sessionID string) (domain.SessionPayload, error) {
	var p domain.SessionPayload

	image, _, err := s.GetItem(ctx, sessionID, KeyAnalyzedImage)
	if err != nil {
		return p, fmt.Errorf("failed to read %s: %w", KeyAnalyzedImage, err)
	}
	name, _, err := s.GetItem(ctx, sessionID, KeyFileName)
	if err != nil {
		return p, fmt.Errorf("failed to read %s: %w", KeyFileName, err)
	}

	p.ImageData = image
	p.FileName = name
	return p, nil
}

// Sweeper removes state last touched before cutoff.
type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// RunJanitor sweeps state older than ttl every interval until ctx ends.
func RunJanitor(ctx context.Context, s Sweeper, ttl, every time.Duration, log *zap.Logger) error {
	if every <= 0 {
		every = time.Minute
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.Sweep(ctx, time.Now().Add(-ttl))
			if err != nil {
				log.Warn("Session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("Expired session state removed", zap.Int("count", n))
			}
		}
	}
}
