// Package simulation runs the cosmetic "analysis" shown after the user asks
// for a result: a fixed five-step progress animation followed by the
// handoff of the selection to the results page.
package simulation

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Dmitryqr/defect-detection-website/internal/domain"
	"github.com/Dmitryqr/defect-detection-website/internal/presentation"
)

type State int

const (
	Idle State = iota
	Running
	Completed
	NavigatedAway
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case NavigatedAway:
		return "navigated_away"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

const stepPercent = 20

// Steps are shown in lockstep with 20, 40, 60, 80 and 100 percent.
var Steps = []string{
	"Uploading image...",
	"Preprocessing...",
	"Neural network analysis...",
	"Post-processing results...",
	"Generating report...",
}

var ErrAlreadyStarted = errors.New("analysis already started")

// NoSelectionMessage is shown when analysis is requested without a file
// and demo mode is off.
const NoSelectionMessage = "Please select an image first"

// HandoffFailedMessage is shown when the result could not be stored; the
// pipeline is Idle again and the user may retry.
const HandoffFailedMessage = "Failed to save the analysis result. Please try again."

// Handoff stores the analyzed selection and returns the location of the
// results view. It is called exactly once per completed run.
type Handoff func(ctx context.Context, sel *domain.SelectedFile) (string, error)

type Options struct {
	Interval        time.Duration
	CompletionDelay time.Duration
	DemoMode        bool
}

// Pipeline is the Idle -> Running -> Completed -> NavigatedAway state
// machine of one upload page.
type Pipeline struct {
	opts    Options
	surface presentation.Surface
	handoff Handoff
	log     *zap.Logger

	mu        sync.Mutex
	state     State
	progress  int
	selection *domain.SelectedFile
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
}

func New(opts Options, surface presentation.Surface, handoff Handoff, log *zap.Logger) *Pipeline {
	return &Pipeline{
		opts:    opts,
		surface: surface,
		handoff: handoff,
		log:     log,
	}
}

// Start begins the simulation for sel. With no selection, demo mode
// substitutes a placeholder; otherwise the request is refused and the
// pipeline stays Idle.
func (p *Pipeline) Start(sel *domain.SelectedFile) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Idle {
		return ErrAlreadyStarted
	}

	if sel == nil {
		if !p.opts.DemoMode {
			p.surface.Alert(NoSelectionMessage)
			return domain.NewUserError(domain.KindNoSelection, NoSelectionMessage, domain.ErrNoSelection)
		}
		sel = domain.DemoSelection()
		p.log.Info("No selection, using demo placeholder", zap.String("file", sel.Name))
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.state = Running
	p.progress = 0
	p.selection = sel
	p.cancel = cancel
	p.done = make(chan struct{})
	p.err = nil

	p.surface.SetVisible(presentation.ProgressContainer, true)
	p.log.Info("Analysis started",
		zap.String("file", sel.Name),
		zap.Bool("synthetic", sel.Synthetic))

	go p.run(ctx, sel, p.done)
	return nil
}

func (p *Pipeline) run(ctx context.Context, sel *domain.SelectedFile, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

ticking:
	for {
		select {
		case <-ctx.Done():
			p.finish(Idle, ctx.Err())
			p.log.Info("Analysis cancelled", zap.String("file", sel.Name))
			return
		case <-ticker.C:
			percent := p.advance()
			p.surface.SetProgress(percent, Steps[percent/stepPercent-1])
			if percent >= 100 {
				ticker.Stop()
				break ticking
			}
		}
	}

	p.setState(Completed)

	// The completion callback fires once, after the fixed delay, even if a
	// cancel arrives now.
	time.Sleep(p.opts.CompletionDelay)

	location, err := p.handoff(context.WithoutCancel(ctx), sel)
	if err != nil {
		p.log.Error("Failed to hand off analysis result",
			zap.String("file", sel.Name),
			zap.Error(err))
		p.surface.Alert(HandoffFailedMessage)
		p.surface.SetVisible(presentation.ProgressContainer, false)
		p.finish(Idle, err)
		return
	}

	p.surface.Navigate(location)
	p.finish(NavigatedAway, nil)
	p.log.Info("Analysis completed",
		zap.String("file", sel.Name),
		zap.String("location", location))
}

func (p *Pipeline) advance() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress += stepPercent
	return p.progress
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

func (p *Pipeline) finish(s State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
	p.err = err
	if s == Idle {
		p.progress = 0
		p.selection = nil
	}
	p.cancel()
}

// Cancel stops a running simulation before it completes. The pipeline
// returns to Idle without writing anything. It has no effect in other
// states.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Running && p.cancel != nil {
		p.cancel()
	}
}

// Wait blocks until the current run ends and returns its error.
func (p *Pipeline) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) Progress() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Selection returns the file being analyzed, including a substituted
// placeholder, or nil when Idle.
func (p *Pipeline) Selection() *domain.SelectedFile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selection
}
