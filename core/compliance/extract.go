package compliance

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"aegis-grc/config"
)

// ExtractionError marks a failure of the external text extraction step so
// callers can tell it apart from a document that merely fails the rules.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor turns a stored file into plain text. missing reports that the
// file no longer exists, which is scored, not failed.
type Extractor interface {
	ExtractText(ctx context.Context, path string) (text string, missing bool, err error)
}

// FileExtractor shells out to pdftotext and pandoc by extension; anything
// else is read as plain text.
type FileExtractor struct {
	cfg config.ComplianceConfig
}

func NewFileExtractor(cfg config.ComplianceConfig) *FileExtractor {
	return &FileExtractor{cfg: cfg}
}

func (x *FileExtractor) ExtractText(ctx context.Context, path string) (string, bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", true, nil
	}
	if x.cfg.ExtractTimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(x.cfg.ExtractTimeoutSec)*time.Second)
		defer cancel()
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err := x.runPdfToText(ctx, path)
		if err != nil {
			return "", false, &ExtractionError{Path: path, Err: err}
		}
		return text, false, nil
	case ".docx":
		text, err := x.runPandoc(ctx, path)
		if err != nil {
			return "", false, &ExtractionError{Path: path, Err: err}
		}
		return text, false, nil
	default:
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", false, &ExtractionError{Path: path, Err: err}
		}
		return string(raw), false, nil
	}
}

func (x *FileExtractor) runPdfToText(ctx context.Context, path string) (string, error) {
	bin := strings.TrimSpace(x.cfg.PdfToTextPath)
	if bin == "" {
		bin = "pdftotext"
	}
	cmd := exec.CommandContext(ctx, bin, "-q", path, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("extraction timeout exceeded")
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", err
		}
		return "", fmt.Errorf("%w: %s", err, msg)
	}
	return stdout.String(), nil
}

func (x *FileExtractor) runPandoc(ctx context.Context, path string) (string, error) {
	bin := strings.TrimSpace(x.cfg.PandocPath)
	if bin == "" {
		bin = "pandoc"
	}
	cmd := exec.CommandContext(ctx, bin, "-f", "docx", "-t", "plain", path)
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("extraction timeout exceeded")
	}
	if err != nil {
		return "", fmt.Errorf("pandoc convert failed: %v: %s", err, string(out))
	}
	return string(out), nil
}
