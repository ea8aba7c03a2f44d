package storage

import (
	"context"
	"os"
	"path/filepath"
)

type localBackend struct {
	basePath string
}

func newLocalBackend(basePath string) *localBackend {
	if basePath == "" {
		basePath = "./output"
	}
	return &localBackend{basePath: basePath}
}

func (b *localBackend) Put(_ context.Context, key string, data []byte, _ string) error {
	if err := os.MkdirAll(b.basePath, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(b.basePath, key), data, 0644)
}

func (b *localBackend) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(b.basePath, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(key)
		}
		return nil, err
	}
	return data, nil
}
