package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Dmitryqr/defect-detection-website/internal/config"
	"github.com/Dmitryqr/defect-detection-website/internal/domain"
	"github.com/Dmitryqr/defect-detection-website/internal/presentation"
	"github.com/Dmitryqr/defect-detection-website/internal/results"
	"github.com/Dmitryqr/defect-detection-website/internal/session"
	"github.com/Dmitryqr/defect-detection-website/internal/simulation"
	"github.com/Dmitryqr/defect-detection-website/internal/upload"
	"github.com/Dmitryqr/defect-detection-website/pkg/utils"
)

// ResultsPath is where a finished analysis navigates to.
const ResultsPath = "/results"

type AnalysisService interface {
	// OpenPage starts a fresh upload page for the session, discarding the
	// previous one with its selection.
	OpenPage(sessionID string) *Page
	SelectFile(ctx context.Context, sessionID string, file *domain.SelectedFile) (domain.Preview, error)
	StartAnalysis(sessionID string) error
	State(sessionID string) PageState
	Subscribe(sessionID string) (<-chan presentation.Event, func())
	Results(ctx context.Context, sessionID string) (results.View, error)
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
	Close()
}

// Page is the server-side controller of one upload page.
type Page struct {
	SessionID string
	View      *presentation.View
	Upload    *upload.Handler
	Pipeline  *simulation.Pipeline

	mu       sync.Mutex
	lastSeen time.Time
}

func (p *Page) touch(now time.Time) {
	p.mu.Lock()
	p.lastSeen = now
	p.mu.Unlock()
}

func (p *Page) seenBefore(cutoff time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen.Before(cutoff)
}

func (p *Page) close() {
	p.Pipeline.Cancel()
	p.Upload.Reset()
	p.View.Close()
}

// PageState is the pollable state of a page.
type PageState struct {
	State     simulation.State      `json:"state"`
	Progress  int                   `json:"progress"`
	Selection *domain.SelectedFile  `json:"selection,omitempty"`
	DemoMode  bool                  `json:"demo_mode"`
	View      presentation.Snapshot `json:"view"`
}

type analysisService struct {
	cfg       *config.Config
	store     session.Storage
	validator *upload.Validator
	proc      *utils.ImageProcessor
	renderer  *results.Renderer
	log       *zap.Logger
	now       func() time.Time

	mu    sync.Mutex
	pages map[string]*Page
}

func NewAnalysisService(store session.Storage, cfg *config.Config, log *zap.Logger) AnalysisService {
	return &analysisService{
		cfg:       cfg,
		store:     store,
		validator: upload.NewValidator(cfg.App.AllowedFormats, cfg.App.MaxUploadSize),
		proc:      utils.NewImageProcessor(log),
		renderer:  results.NewRenderer(store, cfg.App.FallbackImage, log),
		log:       log,
		now:       time.Now,
		pages:     make(map[string]*Page),
	}
}

func (s *analysisService) newPage(sessionID string) *Page {
	view := presentation.NewView()
	log := s.log.With(zap.String("session", sessionID))

	page := &Page{
		SessionID: sessionID,
		View:      view,
		Upload:    upload.NewHandler(s.validator, s.proc, view, log),
		lastSeen:  s.now(),
	}
	page.Pipeline = simulation.New(simulation.Options{
		Interval:        s.cfg.App.TickInterval,
		CompletionDelay: s.cfg.App.CompletionDelay,
		DemoMode:        s.cfg.App.DemoMode,
	}, view, s.handoff(sessionID), log)

	view.SetVisible(presentation.DemoModeBadge, s.cfg.App.DemoMode)
	return page
}

func (s *analysisService) OpenPage(sessionID string) *Page {
	page := s.newPage(sessionID)

	s.mu.Lock()
	old := s.pages[sessionID]
	s.pages[sessionID] = page
	s.mu.Unlock()

	if old != nil {
		old.close()
	}
	return page
}

// page returns the session's page, opening one if needed.
func (s *analysisService) page(sessionID string) *Page {
	s.mu.Lock()
	page, ok := s.pages[sessionID]
	if !ok {
		page = s.newPage(sessionID)
		s.pages[sessionID] = page
	}
	s.mu.Unlock()

	page.touch(s.now())
	return page
}

func (s *analysisService) SelectFile(ctx context.Context, sessionID string, file *domain.SelectedFile) (domain.Preview, error) {
	page := s.page(sessionID)

	task, err := page.Upload.HandleSelection(file)
	if err != nil {
		return domain.Preview{}, err
	}

	preview, err := task.Wait(ctx)
	if err != nil {
		return domain.Preview{}, fmt.Errorf("failed to render preview: %w", err)
	}
	return preview, nil
}

func (s *analysisService) StartAnalysis(sessionID string) error {
	page := s.page(sessionID)
	return page.Pipeline.Start(page.Upload.Current())
}

func (s *analysisService) State(sessionID string) PageState {
	page := s.page(sessionID)

	state := PageState{
		State:     page.Pipeline.State(),
		Progress:  page.Pipeline.Progress(),
		Selection: page.Pipeline.Selection(),
		DemoMode:  s.cfg.App.DemoMode,
		View:      page.View.Snapshot(),
	}
	if state.Selection == nil {
		state.Selection = page.Upload.Current()
	}
	return state
}

func (s *analysisService) Subscribe(sessionID string) (<-chan presentation.Event, func()) {
	return s.page(sessionID).View.Subscribe(64)
}

func (s *analysisService) Results(ctx context.Context, sessionID string) (results.View, error) {
	return s.renderer.Render(ctx, sessionID)
}

// handoff writes the session payload once the simulation completes.
func (s *analysisService) handoff(sessionID string) simulation.Handoff {
	return func(ctx context.Context, sel *domain.SelectedFile) (string, error) {
		payload := domain.SessionPayload{
			ImageData: utils.DataURI(sel.MIMEType, sel.Data),
			FileName:  sel.Name,
		}
		if sel.Synthetic {
			payload = domain.SessionPayload{
				ImageData: s.cfg.App.FallbackImage,
				FileName:  domain.DemoFileName,
			}
		}

		if err := session.WritePayload(ctx, s.store, sessionID, payload); err != nil {
			return "", err
		}

		s.log.Info("Session payload written",
			zap.String("session", sessionID),
			zap.String("file", payload.FileName),
			zap.Int("image_bytes", len(payload.ImageData)))

		return ResultsPath, nil
	}
}

// Sweep drops pages idle since before cutoff together with their stored
// payload, then any stored payload older than cutoff whose page is gone.
func (s *analysisService) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	var stale []*Page

	s.mu.Lock()
	for id, page := range s.pages {
		if page.seenBefore(cutoff) {
			stale = append(stale, page)
			delete(s.pages, id)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, page := range stale {
		page.close()
		if err := s.store.Clear(ctx, page.SessionID); err != nil {
			errs = append(errs, fmt.Errorf("failed to clear session %s: %w", page.SessionID, err))
		}
	}

	n, err := s.store.Sweep(ctx, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to sweep session storage: %w", err))
	}
	return len(stale) + n, errors.Join(errs...)
}

func (s *analysisService) Close() {
	s.mu.Lock()
	pages := s.pages
	s.pages = make(map[string]*Page)
	s.mu.Unlock()

	for _, page := range pages {
		page.close()
	}
}
