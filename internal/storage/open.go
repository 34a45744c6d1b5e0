package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/annel0/voxel-editor/internal/config"
)

// Open создаёт хранилище по конфигурации
func Open(ctx context.Context, cfg config.StorageConfig) (VolumeRepo, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "badger":
		return NewBadgerVolumeStore(Options{Path: cfg.Path, InMemory: cfg.InMemory})
	case "memory":
		return NewMemoryVolumeStore()
	case "redis":
		return NewRedisVolumeStore(ctx, RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	case "maria", "mariadb", "mysql":
		return NewMariaVolumeStore(ctx, MariaConfig{DSN: cfg.Maria.DSN, Table: cfg.Maria.Table})
	case "mongo", "mongodb":
		return NewMongoVolumeStore(ctx, MongoConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
	default:
		return nil, fmt.Errorf("неизвестное хранилище: %q", cfg.Backend)
	}
}
