package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string // Адрес Redis сервера
	Password  string // Пароль (пустой если не требуется)
	DB        int    // Номер базы данных
	KeyPrefix string // Префикс для ключей
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "voxel:",
	}
}

// RedisVolumeStore хранит объёмы в Redis: <prefix>volume:<id> (zstd),
// <prefix>meta:<id> (JSON описание) и множество <prefix>index с ID.
type RedisVolumeStore struct {
	client  *redis.Client
	codec   *codec
	prefix  string
	logger  *logging.Logger
	mutex   sync.RWMutex
	isReady bool
}

// NewRedisVolumeStore подключается к Redis и проверяет соединение
func NewRedisVolumeStore(ctx context.Context, cfg RedisConfig) (*RedisVolumeStore, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultRedisConfig().Addr
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultRedisConfig().KeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis %s: %w", cfg.Addr, err)
	}

	c, err := newCodec()
	if err != nil {
		client.Close()
		return nil, err
	}

	logger := logging.GetStorageLogger()
	logger.Info("🔴 Хранилище объёмов подключено к Redis %s", cfg.Addr)
	return &RedisVolumeStore{
		client:  client,
		codec:   c,
		prefix:  cfg.KeyPrefix,
		logger:  logger,
		isReady: true,
	}, nil
}

func (s *RedisVolumeStore) volumeKey(id uuid.UUID) string { return s.prefix + volumePrefix + id.String() }
func (s *RedisVolumeStore) metaKey(id uuid.UUID) string   { return s.prefix + metaPrefix + id.String() }
func (s *RedisVolumeStore) indexKey() string              { return s.prefix + "index" }

// SaveVolume реализует VolumeRepo
func (s *RedisVolumeStore) SaveVolume(ctx context.Context, id uuid.UUID, data *world.VolumeData) (err error) {
	ctx, span := startSpan(ctx, "RedisVolumeStore.SaveVolume", id)
	defer func() { endSpan(span, err) }()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrStoreClosed
	}
	if data == nil {
		return fmt.Errorf("пустые данные объёма %s", id)
	}

	payload, err := s.codec.encode(data)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(newInfo(id, data, payload))
	if err != nil {
		return fmt.Errorf("ошибка сериализации описания: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.volumeKey(id), payload, 0)
		pipe.Set(ctx, s.metaKey(id), meta, 0)
		pipe.SAdd(ctx, s.indexKey(), id.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в Redis: %w", err)
	}
	s.logger.Debug("Объём %s сохранён в Redis: %d байт", id, len(payload))
	return nil
}

// LoadVolume реализует VolumeRepo
func (s *RedisVolumeStore) LoadVolume(ctx context.Context, id uuid.UUID) (_ *world.VolumeData, err error) {
	ctx, span := startSpan(ctx, "RedisVolumeStore.LoadVolume", id)
	defer func() { endSpan(span, err) }()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrStoreClosed
	}

	payload, err := s.client.Get(ctx, s.volumeKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrVolumeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из Redis: %w", err)
	}
	return s.codec.decode(payload)
}

// DeleteVolume реализует VolumeRepo
func (s *RedisVolumeStore) DeleteVolume(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := startSpan(ctx, "RedisVolumeStore.DeleteVolume", id)
	defer func() { endSpan(span, err) }()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrStoreClosed
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.volumeKey(id), s.metaKey(id))
		pipe.SRem(ctx, s.indexKey(), id.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления из Redis: %w", err)
	}
	return nil
}

// ListVolumes реализует VolumeRepo
func (s *RedisVolumeStore) ListVolumes(ctx context.Context) ([]VolumeInfo, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrStoreClosed
	}

	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения индекса Redis: %w", err)
	}
	if len(ids) == 0 {
		return []VolumeInfo{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.logger.Warn("Некорректный ID в индексе Redis: %q", raw)
			continue
		}
		keys = append(keys, s.metaKey(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения описаний из Redis: %w", err)
	}

	infos := make([]VolumeInfo, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue // запись удалена между SMEMBERS и MGET
		}
		var info VolumeInfo
		if err := json.Unmarshal([]byte(str), &info); err != nil {
			return nil, fmt.Errorf("повреждённое описание объёма: %w", err)
		}
		infos = append(infos, info)
	}
	sortInfos(infos)
	return infos, nil
}

// Close закрывает соединение
func (s *RedisVolumeStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}
	s.isReady = false
	s.codec.close()
	return s.client.Close()
}
