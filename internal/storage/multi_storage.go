package storage

import (
	"context"

	"github.com/elijahthis/pitscrapy/internal/shared"
	"github.com/rs/zerolog/log"
)

// MultiStorage writes every key to a primary store and its mirrors.
// Only the primary decides whether a save succeeded; mirror failures are
// logged. Loads are served by the primary only.
type MultiStorage struct {
	primary shared.Storage
	mirrors []shared.Storage
}

func NewMultiStorage(primary shared.Storage, mirrors ...shared.Storage) *MultiStorage {
	return &MultiStorage{primary: primary, mirrors: mirrors}
}

func (m *MultiStorage) Save(ctx context.Context, key string, data []byte) error {
	if err := m.primary.Save(ctx, key, data); err != nil {
		return err
	}
	for i, mirror := range m.mirrors {
		if err := mirror.Save(ctx, key, data); err != nil {
			log.Warn().Err(err).Str("key", key).Int("mirror", i).Msg("Failed to mirror artifact")
		}
	}
	return nil
}

func (m *MultiStorage) Load(ctx context.Context, key string) ([]byte, error) {
	return m.primary.Load(ctx, key)
}
