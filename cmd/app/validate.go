package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Dmitryqr/defect-detection-website/internal/domain"
	"github.com/Dmitryqr/defect-detection-website/internal/upload"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <image>...",
		Short: "Check whether images would be accepted for upload",
		Long: `Validate applies the upload rules of the website to local files: the
format must be one of the allowed image types and the file must not exceed
the size limit. The format is detected from the file contents.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runValidateCmd,
	}
}

func runValidateCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	validator := upload.NewValidator(cfg.App.AllowedFormats, cfg.App.MaxUploadSize)
	out := cmd.OutOrStdout()

	rejected := 0
	for _, path := range args {
		mimeType, size, err := sniff(path)
		if err != nil {
			return err
		}

		name := filepath.Base(path)
		if err := validator.Validate(mimeType, size); err != nil {
			rejected++
			msg := err.Error()
			if uerr, ok := domain.AsUserError(err); ok {
				msg = uerr.Message
			}
			fmt.Fprintf(out, "%s: rejected: %s\n", name, msg)
			continue
		}
		fmt.Fprintf(out, "%s: ok (%s, %s)\n", name, upload.FileType(mimeType), upload.FormatFileSize(size))
	}

	if rejected > 0 {
		return fmt.Errorf("%d of %d files rejected", rejected, len(args))
	}
	return nil
}

// sniff returns the detected MIME type and the size of the file at path.
func sniff(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return http.DetectContentType(head[:n]), info.Size(), nil
}
