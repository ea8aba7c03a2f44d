package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ChaseRain/pdf2deck/internal/infra/config"
	"github.com/ChaseRain/pdf2deck/internal/infra/logger"
	"github.com/ChaseRain/pdf2deck/pkg/errors"
)

// Backend stores objects under flat keys.
type Backend interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns a NOT_FOUND error when key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
}

type Service struct {
	storageType string
	backend     Backend
	baseURL     string
	logger      *logger.Logger
}

// New builds the backend selected by cfg.Type. Unknown types fall back to
// the local filesystem.
func New(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (*Service, error) {
	var (
		backend Backend
		err     error
	)

	switch cfg.Type {
	case "s3":
		backend, err = newS3Backend(ctx, cfg.Bucket, cfg.Region, cfg.Prefix)
	case "gcs":
		backend, err = newGCSBackend(ctx, cfg.Bucket, cfg.Prefix)
	default:
		cfg.Type = "local"
		backend = newLocalBackend(cfg.BasePath)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorage, fmt.Sprintf("failed to initialise %s storage", cfg.Type))
	}

	return NewWithBackend(cfg.Type, backend, cfg.BaseURL, log), nil
}

func NewWithBackend(storageType string, backend Backend, baseURL string, log *logger.Logger) *Service {
	return &Service{
		storageType: storageType,
		backend:     backend,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		logger:      log,
	}
}

// SaveDeck stores an exported presentation and returns the URL it is served
// under.
func (s *Service) SaveDeck(ctx context.Context, filename string, data []byte) (string, error) {
	if err := validateName(filename); err != nil {
		return "", err
	}

	contentType := mimetype.Detect(data).String()
	if err := s.backend.Put(ctx, filename, data, contentType); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorage, "failed to store file")
	}

	url := fmt.Sprintf("%s/%s", s.baseURL, filename)
	s.logger.Info("stored file",
		"storage", s.storageType,
		"name", filename,
		"url", url,
		"size", len(data),
	)
	return url, nil
}

func (s *Service) GetFile(ctx context.Context, filename string) ([]byte, error) {
	if err := validateName(filename); err != nil {
		return nil, err
	}

	data, err := s.backend.Get(ctx, filename)
	if err != nil {
		if errors.Is(err, errors.ErrCodeNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "failed to read file")
	}
	return data, nil
}

// validateName only admits plain file names so keys cannot escape the
// storage root.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return errors.New(errors.ErrCodeInvalidReq, "invalid file name")
	}
	return nil
}

func notFound(key string) error {
	return errors.New(errors.ErrCodeNotFound, fmt.Sprintf("file %s not found", key))
}

func objectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
