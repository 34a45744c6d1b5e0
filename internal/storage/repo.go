package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/annel0/voxel-editor/internal/world"
	"github.com/google/uuid"
)

var (
	// ErrVolumeNotFound объём с таким ID не сохранён
	ErrVolumeNotFound = errors.New("объём не найден")
	// ErrStoreClosed хранилище уже закрыто
	ErrStoreClosed = errors.New("хранилище закрыто")
)

// VolumeInfo краткое описание сохранённого объёма
type VolumeInfo struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Chunks    int       `json:"chunks"`
	Bytes     int       `json:"bytes"`
	UpdatedAt time.Time `json:"updated_at"` // время последнего сохранения (UTC)
}

// newInfo описание объёма на момент сохранения
func newInfo(id uuid.UUID, data *world.VolumeData, payload []byte) VolumeInfo {
	return VolumeInfo{
		ID:        id,
		Name:      data.Name,
		Chunks:    len(data.Chunks),
		Bytes:     len(payload),
		UpdatedAt: time.Now().UTC(),
	}
}

// VolumeRepo определяет интерфейс для сохранения и загрузки объёмов.
// Формат VolumeData принадлежит пакету world, хранилище отвечает только
// за кодирование и ключи.
type VolumeRepo interface {
	// SaveVolume сохраняет (или перезаписывает) объём
	SaveVolume(ctx context.Context, id uuid.UUID, data *world.VolumeData) error

	// LoadVolume загружает объём. Если его нет, возвращает ErrVolumeNotFound.
	LoadVolume(ctx context.Context, id uuid.UUID) (*world.VolumeData, error)

	// DeleteVolume удаляет объём. Удаление отсутствующего объёма не ошибка.
	DeleteVolume(ctx context.Context, id uuid.UUID) error

	// ListVolumes возвращает описания всех объёмов, упорядоченные по ID
	ListVolumes(ctx context.Context) ([]VolumeInfo, error)

	Close() error
}

func sortInfos(infos []VolumeInfo) {
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID.String() < infos[j].ID.String()
	})
}
