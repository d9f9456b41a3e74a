package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ymakhloufi/taux-livrets/internal/pkg/model"
	"go.uber.org/zap"
)

// JSONFile keeps the rate document in a single JSON file, written 2-space indented with a trailing newline.
type JSONFile struct {
	path   string
	logger *zap.Logger
}

func NewJSONFile(path string, logger *zap.Logger) *JSONFile {
	return &JSONFile{path: path, logger: logger}
}

func (s *JSONFile) Path() string {
	return s.path
}

func (s *JSONFile) Load(_ context.Context) (*model.RateDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &model.PersistenceError{Target: s.path, Err: fmt.Errorf("failed to read file: %w", err)}
	}

	var doc model.RateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &model.PersistenceError{Target: s.path, Err: fmt.Errorf("failed to parse document: %w", err)}
	}
	if doc.Products == nil {
		return nil, &model.PersistenceError{Target: s.path, Err: fmt.Errorf("document has no products")}
	}

	s.logger.Debug("loaded rate document", zap.String("path", s.path), zap.Int("products", len(doc.Products)))
	return &doc, nil
}

// Save replaces the file atomically: a crashed write never leaves a truncated document behind.
func (s *JSONFile) Save(_ context.Context, doc *model.RateDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return &model.PersistenceError{Target: s.path, Err: fmt.Errorf("failed to encode document: %w", err)}
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return &model.PersistenceError{Target: s.path, Err: fmt.Errorf("failed to indent document: %w", err)}
	}
	out.WriteByte('\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return &model.PersistenceError{Target: s.path, Err: fmt.Errorf("failed to create temp file: %w", err)}
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(out.Bytes()); err != nil {
		_ = tmp.Close()
		return &model.PersistenceError{Target: s.path, Err: fmt.Errorf("failed to write temp file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return &model.PersistenceError{Target: s.path, Err: fmt.Errorf("failed to close temp file: %w", err)}
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return &model.PersistenceError{Target: s.path, Err: fmt.Errorf("failed to chmod temp file: %w", err)}
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return &model.PersistenceError{Target: s.path, Err: fmt.Errorf("failed to replace file: %w", err)}
	}

	s.logger.Debug("saved rate document", zap.String("path", s.path), zap.Int("bytes", out.Len()))
	return nil
}
