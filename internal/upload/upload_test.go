package upload

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Dmitryqr/defect-detection-website/internal/domain"
	"github.com/Dmitryqr/defect-detection-website/internal/presentation"
)

var defaultTypes = []string{"image/jpeg", "image/png", "image/bmp", "image/webp"}

const maxSize = 10 * 1024 * 1024

func TestValidator(t *testing.T) {
	t.Parallel()

	v := NewValidator(defaultTypes, maxSize)

	tests := []struct {
		name     string
		mimeType string
		size     int64
		wantErr  error
		wantKind domain.ErrorKind
	}{
		{name: "jpeg", mimeType: "image/jpeg", size: 1024},
		{name: "png at limit", mimeType: "image/png", size: maxSize},
		{name: "bmp empty", mimeType: "image/bmp", size: 0},
		{name: "upper case is not allowed", mimeType: "IMAGE/PNG", size: 10, wantErr: domain.ErrUnsupportedFormat, wantKind: domain.KindUnsupportedFormat},
		{name: "gif", mimeType: "image/gif", size: 10, wantErr: domain.ErrUnsupportedFormat, wantKind: domain.KindUnsupportedFormat},
		{name: "pdf", mimeType: "application/pdf", size: 10, wantErr: domain.ErrUnsupportedFormat, wantKind: domain.KindUnsupportedFormat},
		{name: "empty type", mimeType: "", size: 10, wantErr: domain.ErrUnsupportedFormat, wantKind: domain.KindUnsupportedFormat},
		{name: "one byte over", mimeType: "image/png", size: maxSize + 1, wantErr: domain.ErrFileTooLarge, wantKind: domain.KindFileTooLarge},
		{name: "huge jpeg", mimeType: "image/jpeg", size: 1 << 40, wantErr: domain.ErrFileTooLarge, wantKind: domain.KindFileTooLarge},
		{name: "huge gif reports format first", mimeType: "image/gif", size: 1 << 40, wantErr: domain.ErrUnsupportedFormat, wantKind: domain.KindUnsupportedFormat},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := v.Validate(tt.mimeType, tt.size)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			ue, ok := domain.AsUserError(err)
			if !ok {
				t.Fatalf("error %v is not a user error", err)
			}
			if ue.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", ue.Kind, tt.wantKind)
			}
		})
	}
}

func TestValidatorMessages(t *testing.T) {
	t.Parallel()

	v := NewValidator(defaultTypes, maxSize)

	err := v.Validate("image/gif", 1)
	if got, want := err.Error(), "Only JPG, PNG, BMP, WebP formats are supported"; got != want {
		t.Errorf("format message = %q, want %q", got, want)
	}
	err = v.Validate("image/png", maxSize+1)
	if got, want := err.Error(), "File is too large (max 10 MB)"; got != want {
		t.Errorf("size message = %q, want %q", got, want)
	}
}

func TestFormatFileSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 Bytes"},
		{1, "1 Bytes"},
		{1023, "1023 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1234, "1.21 KB"},
		{1048576, "1 MB"},
		{10 * 1024 * 1024, "10 MB"},
		{1073741824, "1 GB"},
		{5 * 1024 * 1024 * 1024 * 1024, "5120 GB"},
	}

	for _, tt := range tests {
		if got := FormatFileSize(tt.bytes); got != tt.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestFileType(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"image/jpeg": "JPEG Image",
		"image/png":  "PNG Image",
		"image/bmp":  "BMP Image",
		"image/webp": "WebP Image",
		"image/gif":  "Unknown",
		"":           "Unknown",
	}
	for mime, want := range tests {
		if got := FileType(mime); got != want {
			t.Errorf("FileType(%q) = %q, want %q", mime, got, want)
		}
	}
}

// stubPreviewer returns a fixed preview, optionally blocking per file name.
type stubPreviewer struct {
	gates map[string]chan struct{}
}

func (s *stubPreviewer) Preview(file *domain.SelectedFile) domain.Preview {
	if gate, ok := s.gates[file.Name]; ok {
		<-gate
	}
	return domain.Preview{Src: "preview:" + file.Name, Width: 4, Height: 3}
}

func newTestHandler(t *testing.T, previewer Previewer) (*Handler, *presentation.View) {
	t.Helper()
	view := presentation.NewView()
	h := NewHandler(NewValidator(defaultTypes, maxSize), previewer, view, zaptest.NewLogger(t))
	return h, view
}

func waitPreview(t *testing.T, task *PreviewTask) (domain.Preview, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return task.Wait(ctx)
}

func TestHandleSelectionAccepts(t *testing.T) {
	t.Parallel()

	h, view := newTestHandler(t, &stubPreviewer{})
	file := &domain.SelectedFile{Name: "weld.png", Size: 1536, MIMEType: "image/png"}

	task, err := h.HandleSelection(file)
	if err != nil {
		t.Fatalf("HandleSelection() error = %v", err)
	}
	if h.Current() != file {
		t.Error("current selection should be the accepted file")
	}
	if file.SelectedAt.IsZero() {
		t.Error("accepted file should carry its selection time")
	}

	preview, err := waitPreview(t, task)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if preview.Src != "preview:weld.png" {
		t.Errorf("preview.Src = %q", preview.Src)
	}

	s := view.Snapshot()
	if !s.Visible[presentation.PreviewContainer] {
		t.Error("preview container should be visible")
	}
	if s.Images[presentation.PreviewImage] != "preview:weld.png" {
		t.Errorf("preview image = %q", s.Images[presentation.PreviewImage])
	}
	want := map[presentation.Target]string{
		presentation.FileName:       "weld.png",
		presentation.FileSize:       "1.5 KB",
		presentation.FileType:       "PNG Image",
		presentation.FileDimensions: "4×3",
	}
	for target, text := range want {
		if s.Texts[target] != text {
			t.Errorf("text %s = %q, want %q", target, s.Texts[target], text)
		}
	}
}

func TestHandleSelectionRejectKeepsPrevious(t *testing.T) {
	t.Parallel()

	h, view := newTestHandler(t, &stubPreviewer{})
	first := &domain.SelectedFile{Name: "ok.jpg", Size: 10, MIMEType: "image/jpeg"}
	task, err := h.HandleSelection(first)
	if err != nil {
		t.Fatalf("HandleSelection() error = %v", err)
	}
	if _, err := waitPreview(t, task); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	rejected := []*domain.SelectedFile{
		{Name: "anim.gif", Size: 10, MIMEType: "image/gif"},
		{Name: "big.png", Size: maxSize + 1, MIMEType: "image/png"},
	}
	for _, f := range rejected {
		task, err := h.HandleSelection(f)
		if err == nil {
			t.Fatalf("%s should be rejected", f.Name)
		}
		if task != nil {
			t.Errorf("%s: rejected selection must not start a preview", f.Name)
		}
		if h.Current() != first {
			t.Errorf("%s: previous selection was replaced", f.Name)
		}
		if view.Snapshot().LastAlert != err.Error() {
			t.Errorf("%s: alert = %q, want %q", f.Name, view.Snapshot().LastAlert, err.Error())
		}
	}
	if view.Snapshot().Texts[presentation.FileName] != "ok.jpg" {
		t.Error("rejected files must not change displayed metadata")
	}
}

func TestHandleSelectionReplaces(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, &stubPreviewer{})
	a := &domain.SelectedFile{Name: "a.png", Size: 1, MIMEType: "image/png"}
	b := &domain.SelectedFile{Name: "b.bmp", Size: 2, MIMEType: "image/bmp"}

	if _, err := h.HandleSelection(a); err != nil {
		t.Fatal(err)
	}
	if _, err := h.HandleSelection(b); err != nil {
		t.Fatal(err)
	}
	if h.Current() != b {
		t.Errorf("Current() = %v, want b", h.Current())
	}

	h.Reset()
	if h.Current() != nil {
		t.Error("Reset should clear the selection")
	}
}

func TestStalePreviewIsDiscarded(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	h, view := newTestHandler(t, &stubPreviewer{gates: map[string]chan struct{}{"slow.png": gate}})

	slow, err := h.HandleSelection(&domain.SelectedFile{Name: "slow.png", Size: 1, MIMEType: "image/png"})
	if err != nil {
		t.Fatal(err)
	}
	fast, err := h.HandleSelection(&domain.SelectedFile{Name: "fast.png", Size: 1, MIMEType: "image/png"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := waitPreview(t, fast); err != nil {
		t.Fatalf("fast preview: %v", err)
	}

	close(gate)
	if _, err := waitPreview(t, slow); !errors.Is(err, ErrStalePreview) {
		t.Fatalf("slow preview error = %v, want ErrStalePreview", err)
	}

	s := view.Snapshot()
	if s.Texts[presentation.FileName] != "fast.png" {
		t.Errorf("displayed file = %q, want fast.png", s.Texts[presentation.FileName])
	}
	if s.Images[presentation.PreviewImage] != "preview:fast.png" {
		t.Errorf("displayed preview = %q", s.Images[presentation.PreviewImage])
	}
}

func TestPreviewTaskCancel(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	h, view := newTestHandler(t, &stubPreviewer{gates: map[string]chan struct{}{"x.png": gate}})

	task, err := h.HandleSelection(&domain.SelectedFile{Name: "x.png", Size: 1, MIMEType: "image/png"})
	if err != nil {
		t.Fatal(err)
	}
	task.Cancel()
	close(gate)

	if _, err := waitPreview(t, task); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() error = %v, want context.Canceled", err)
	}
	if _, ok := view.Snapshot().Images[presentation.PreviewImage]; ok {
		t.Error("cancelled preview must not reach the page")
	}
}
