// Package upload stores files attached to chat messages.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"voice-chat-service/internal/config"
	"voice-chat-service/internal/models"
	"voice-chat-service/internal/observability/metrics"
)

// URLPrefix is where stored files are served.
const URLPrefix = "/static/uploads/"

// Errors carry the messages returned to the widget.
var (
	ErrNoFile         = errors.New("No file part")
	ErrNoFilename     = errors.New("No selected file")
	ErrTypeNotAllowed = errors.New("File type not allowed")
	ErrTooLarge       = errors.New("File too large")
)

// Store writes uploads to a directory under unique names.
type Store struct {
	dir      string
	maxBytes int64
	allowed  map[string]bool
	metrics  *metrics.Metrics
	newID    func() string
}

// New creates the upload directory if needed.
func New(cfg config.UploadConfig, m *metrics.Metrics) (*Store, error) {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &Store{
		dir:      cfg.Dir,
		maxBytes: cfg.MaxBytes,
		allowed:  allowed,
		metrics:  m,
		newID:    uuid.NewString,
	}, nil
}

// Dir returns the directory files are stored in.
func (s *Store) Dir() string { return s.dir }

// MaxBytes returns the largest accepted file size.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Allowed reports whether filename has an allowed extension.
func (s *Store) Allowed(filename string) bool {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return false
	}
	return s.allowed[strings.ToLower(filename[i+1:])]
}

// Save stores the contents of r under "<uuid>_<basename>".
func (s *Store) Save(filename string, r io.Reader) (models.UploadResult, error) {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(filename, "\\", "/")))
	if strings.TrimSpace(filename) == "" || base == "/" || base == "." {
		s.metrics.RecordUpload("rejected", 0)
		return models.UploadResult{Error: ErrNoFilename.Error()}, ErrNoFilename
	}
	if !s.Allowed(base) {
		s.metrics.RecordUpload("rejected", 0)
		return models.UploadResult{Error: ErrTypeNotAllowed.Error()}, ErrTypeNotAllowed
	}

	name := s.newID() + "_" + base
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		s.metrics.RecordUpload("error", 0)
		return models.UploadResult{}, fmt.Errorf("create upload: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			s.metrics.RecordUpload("too_large", 0)
			return models.UploadResult{Error: ErrTooLarge.Error()}, err
		}
		s.metrics.RecordUpload("error", 0)
		return models.UploadResult{}, fmt.Errorf("write upload: %w", err)
	}

	s.metrics.RecordUpload("stored", n)
	log.Info().Str("filename", name).Int64("bytes", n).Msg("Upload stored")

	return models.UploadResult{
		Success:  true,
		Filename: name,
		URL:      URLPrefix + name,
	}, nil
}
