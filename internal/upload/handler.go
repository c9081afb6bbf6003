// Package upload validates user-selected files, keeps the single current
// selection of an upload page and renders its preview.
package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Dmitryqr/defect-detection-website/internal/domain"
	"github.com/Dmitryqr/defect-detection-website/internal/presentation"
)

// ErrStalePreview is returned by PreviewTask.Wait when a newer selection
// replaced the file before its preview was ready.
var ErrStalePreview = errors.New("preview superseded by a newer selection")

// Previewer turns a selection into something displayable.
type Previewer interface {
	Preview(file *domain.SelectedFile) domain.Preview
}

// Handler owns the current selection of one upload page.
type Handler struct {
	validator *Validator
	previewer Previewer
	surface   presentation.Surface
	log       *zap.Logger

	mu      sync.Mutex
	current *domain.SelectedFile
	gen     uint64
}

func NewHandler(validator *Validator, previewer Previewer, surface presentation.Surface, log *zap.Logger) *Handler {
	return &Handler{
		validator: validator,
		previewer: previewer,
		surface:   surface,
		log:       log,
	}
}

// HandleSelection validates file and, if accepted, makes it the current
// selection and starts reading its preview. A rejected file leaves the
// previous selection untouched.
func (h *Handler) HandleSelection(file *domain.SelectedFile) (*PreviewTask, error) {
	if file == nil {
		return nil, fmt.Errorf("nil file")
	}

	if err := h.validator.Validate(file.MIMEType, file.Size); err != nil {
		if ue, ok := domain.AsUserError(err); ok {
			h.surface.Alert(ue.Message)
		}
		h.log.Info("File rejected",
			zap.String("file", file.Name),
			zap.String("mime_type", file.MIMEType),
			zap.Int64("size", file.Size),
			zap.Error(err))
		return nil, err
	}

	if file.SelectedAt.IsZero() {
		file.SelectedAt = time.Now()
	}

	h.mu.Lock()
	h.gen++
	gen := h.gen
	h.current = file
	h.mu.Unlock()

	h.log.Info("File selected",
		zap.String("file", file.Name),
		zap.String("mime_type", file.MIMEType),
		zap.Int64("size", file.Size))

	task := newPreviewTask()
	go h.readPreview(task, gen, file)
	return task, nil
}

// Current returns the current selection, or nil.
func (h *Handler) Current() *domain.SelectedFile {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Reset discards the current selection. Previews still in flight are
// dropped.
func (h *Handler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = nil
	h.gen++
}

func (h *Handler) readPreview(task *PreviewTask, gen uint64, file *domain.SelectedFile) {
	preview := h.previewer.Preview(file)

	if err := task.ctx.Err(); err != nil {
		task.finish(domain.Preview{}, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if gen != h.gen {
		h.log.Debug("Discarding stale preview", zap.String("file", file.Name))
		task.finish(domain.Preview{}, ErrStalePreview)
		return
	}

	h.surface.SetVisible(presentation.PreviewContainer, true)
	h.surface.SetImage(presentation.PreviewImage, preview.Src)
	h.surface.SetText(presentation.FileName, file.Name)
	h.surface.SetText(presentation.FileSize, FormatFileSize(file.Size))
	h.surface.SetText(presentation.FileType, FileType(file.MIMEType))
	if preview.Width > 0 && preview.Height > 0 {
		h.surface.SetText(presentation.FileDimensions, fmt.Sprintf("%d×%d", preview.Width, preview.Height))
	}
	if preview.Camera != "" {
		h.surface.SetText(presentation.FileCamera, preview.Camera)
	}

	task.finish(preview, nil)
}

// PreviewTask is an in-flight preview read. It resolves exactly once.
type PreviewTask struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	preview domain.Preview
	err     error
}

func newPreviewTask() *PreviewTask {
	ctx, cancel := context.WithCancel(context.Background())
	return &PreviewTask{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

func (t *PreviewTask) finish(p domain.Preview, err error) {
	t.once.Do(func() {
		t.preview, t.err = p, err
		t.cancel()
		close(t.done)
	})
}

// Wait blocks until the preview is rendered, discarded or ctx ends.
func (t *PreviewTask) Wait(ctx context.Context) (domain.Preview, error) {
	select {
	case <-t.done:
		return t.preview, t.err
	case <-ctx.Done():
		return domain.Preview{}, ctx.Err()
	}
}

// Cancel stops the preview from reaching the page. The read itself runs to
// completion.
func (t *PreviewTask) Cancel() {
	t.cancel()
}

// Done is closed once the task has resolved.
func (t *PreviewTask) Done() <-chan struct{} { return t.done }
