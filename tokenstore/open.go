package tokenstore

import (
	"github.com/redis/go-redis/v9"

	"github.com/opengovern/tentacles"
)

// Open builds the Store named by settings. The returned close function
// releases the backend's connections.
func Open(s *tentacles.Settings) (Store, func() error, error) {
	var sealer *Sealer
	if s.EncryptionKey != "" {
		var err error
		if sealer, err = NewSealer(s.EncryptionKey); err != nil {
			return nil, nil, tentacles.WrapError(tentacles.ErrConfiguration, err, "token store encryption key")
		}
	}
	noop := func() error { return nil }

	switch s.TokenBackend {
	case "", "file":
		b, err := NewFileBackend(s.TokenDir)
		if err != nil {
			return nil, nil, tentacles.WrapError(tentacles.ErrConfiguration, err, "token store directory")
		}
		return New(b, sealer), noop, nil
	case "redis":
		if s.RedisAddr == "" {
			return nil, nil, tentacles.NewError(tentacles.ErrConfiguration, "token backend redis needs redis_addr")
		}
		client := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
		return New(NewRedisBackend(client), sealer), client.Close, nil
	case "sqlite":
		path := s.SQLitePath
		if path == "" {
			path = "tentacles.db"
		}
		b, err := NewSQLiteBackend(path)
		if err != nil {
			return nil, nil, tentacles.WrapError(tentacles.ErrConfiguration, err, "token store database")
		}
		return New(b, sealer), b.Close, nil
	case "memory":
		return New(NewMemoryBackend(), sealer), noop, nil
	default:
		return nil, nil, tentacles.NewError(tentacles.ErrConfiguration, "unknown token backend %q", s.TokenBackend)
	}
}
