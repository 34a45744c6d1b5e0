package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/annel0/voxel-editor/internal/world"
	"github.com/google/uuid"
)

// MemoryVolumeStore реализует VolumeRepo в памяти.
// Используется в тестах и как fallback, когда BadgerDB не открывается.
// ВНИМАНИЕ: данные теряются при перезапуске!
type MemoryVolumeStore struct {
	mu     sync.RWMutex
	codec  *codec
	data   map[uuid.UUID][]byte
	infos  map[uuid.UUID]VolumeInfo
	closed bool
}

// NewMemoryVolumeStore создаёт пустое хранилище
func NewMemoryVolumeStore() (*MemoryVolumeStore, error) {
	c, err := newCodec()
	if err != nil {
		return nil, err
	}
	return &MemoryVolumeStore{
		codec: c,
		data:  make(map[uuid.UUID][]byte),
		infos: make(map[uuid.UUID]VolumeInfo),
	}, nil
}

// SaveVolume реализует VolumeRepo
func (r *MemoryVolumeStore) SaveVolume(ctx context.Context, id uuid.UUID, data *world.VolumeData) error {
	if data == nil {
		return fmt.Errorf("пустые данные объёма %s", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrStoreClosed
	}
	payload, err := r.codec.encode(data)
	if err != nil {
		return err
	}
	r.data[id] = payload
	r.infos[id] = newInfo(id, data, payload)
	return nil
}

// LoadVolume реализует VolumeRepo
func (r *MemoryVolumeStore) LoadVolume(ctx context.Context, id uuid.UUID) (*world.VolumeData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payload, ok := r.data[id]
	if r.closed {
		return nil, ErrStoreClosed
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVolumeNotFound, id)
	}
	return r.codec.decode(payload)
}

// DeleteVolume реализует VolumeRepo
func (r *MemoryVolumeStore) DeleteVolume(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrStoreClosed
	}
	delete(r.data, id)
	delete(r.infos, id)
	return nil
}

// ListVolumes реализует VolumeRepo
func (r *MemoryVolumeStore) ListVolumes(ctx context.Context) ([]VolumeInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrStoreClosed
	}
	infos := make([]VolumeInfo, 0, len(r.infos))
	for _, info := range r.infos {
		infos = append(infos, info)
	}
	sortInfos(infos)
	return infos, nil
}

// Close реализует VolumeRepo
func (r *MemoryVolumeStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.codec.close()
	return nil
}
