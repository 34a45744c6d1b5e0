package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	volumePrefix = "volume:"
	metaPrefix   = "meta:"
)

var tracer = otel.Tracer("github.com/annel0/voxel-editor/internal/storage")

// BadgerVolumeStore хранит объёмы в BadgerDB.
// Ключ volume:<uuid> содержит сжатый VolumeData, meta:<uuid> его описание.
type BadgerVolumeStore struct {
	db      *badger.DB
	codec   *codec
	logger  *logging.Logger
	mutex   sync.RWMutex
	isReady bool
}

// Options параметры открытия хранилища
type Options struct {
	Path     string
	InMemory bool
}

// NewBadgerVolumeStore открывает (или создаёт) хранилище
func NewBadgerVolumeStore(opts Options) (*BadgerVolumeStore, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	c, err := newCodec()
	if err != nil {
		db.Close()
		return nil, err
	}

	logger := logging.GetStorageLogger()
	if opts.InMemory {
		logger.Info("Хранилище объёмов открыто в памяти")
	} else {
		logger.Info("Хранилище объёмов открыто: %s", opts.Path)
	}

	return &BadgerVolumeStore{
		db:      db,
		codec:   c,
		logger:  logger,
		isReady: true,
	}, nil
}

// Close закрывает хранилище
func (s *BadgerVolumeStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}

	s.isReady = false
	s.codec.close()
	return s.db.Close()
}

func startSpan(ctx context.Context, name string, id uuid.UUID) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("volume.id", id.String())))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// SaveVolume сохраняет объём
func (s *BadgerVolumeStore) SaveVolume(ctx context.Context, id uuid.UUID, data *world.VolumeData) (err error) {
	_, span := startSpan(ctx, "VolumeStore.SaveVolume", id)
	defer func() { endSpan(span, err) }()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
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
	span.SetAttributes(attribute.Int("volume.bytes", len(payload)), attribute.Int("volume.chunks", len(data.Chunks)))

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(volumePrefix+id.String()), payload); err != nil {
			return err
		}
		return txn.Set([]byte(metaPrefix+id.String()), meta)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	s.logger.Debug("Объём %s сохранён: %d чанков, %d байт", id, len(data.Chunks), len(payload))
	return nil
}

// LoadVolume загружает объём
func (s *BadgerVolumeStore) LoadVolume(ctx context.Context, id uuid.UUID) (_ *world.VolumeData, err error) {
	_, span := startSpan(ctx, "VolumeStore.LoadVolume", id)
	defer func() { endSpan(span, err) }()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrStoreClosed
	}

	var payload []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(volumePrefix + id.String()))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrVolumeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	return s.codec.decode(payload)
}

// DeleteVolume удаляет объём
func (s *BadgerVolumeStore) DeleteVolume(ctx context.Context, id uuid.UUID) (err error) {
	_, span := startSpan(ctx, "VolumeStore.DeleteVolume", id)
	defer func() { endSpan(span, err) }()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrStoreClosed
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(volumePrefix + id.String())); err != nil {
			return err
		}
		return txn.Delete([]byte(metaPrefix + id.String()))
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}
	return nil
}

// ListVolumes перечисляет сохранённые объёмы
func (s *BadgerVolumeStore) ListVolumes(ctx context.Context) (_ []VolumeInfo, err error) {
	_, span := tracer.Start(ctx, "VolumeStore.ListVolumes")
	defer func() { endSpan(span, err) }()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrStoreClosed
	}

	infos := make([]VolumeInfo, 0)
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(metaPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var info VolumeInfo
				if err := json.Unmarshal(val, &info); err != nil {
					return err
				}
				infos = append(infos, info)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка объёмов: %w", err)
	}

	sortInfos(infos)
	span.SetAttributes(attribute.Int("volume.count", len(infos)))
	return infos, nil
}
