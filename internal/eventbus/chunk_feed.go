package eventbus

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/google/uuid"
)

// Типы событий ленты изменений
const (
	TypeChunkCreated  = "chunk.created"
	TypeChunkRebuilt  = "chunk.rebuilt"
	TypeChunkRemoved  = "chunk.removed"
	TypeVolumeRemoved = "volume.removed"
)

// MetaVolume ключ метаданных с ID объёма
const MetaVolume = "volume"

// ChunkEvent полезная нагрузка событий чанка
type ChunkEvent struct {
	Volume    string  `json:"volume"`
	X         int     `json:"x"`
	Z         int     `json:"z"`
	Kind      string  `json:"kind,omitempty"`
	Triangles int     `json:"triangles"`
	ElapsedMS float64 `json:"elapsed_ms,omitempty"`
}

// ChunkFeed превращает события объёмов в события шины. Реализует
// world.Observer; вызовы из цикла редактора только ставят событие
// в очередь, публикацию выполняет Run.
type ChunkFeed struct {
	bus     EventBus
	source  string
	queue   chan *Envelope
	dropped atomic.Uint64
	logger  *logging.Logger
}

// NewChunkFeed создаёт ленту с очередью buffer
func NewChunkFeed(bus EventBus, buffer int) *ChunkFeed {
	if buffer <= 0 {
		buffer = 1024
	}
	return &ChunkFeed{
		bus:    bus,
		source: "editor",
		queue:  make(chan *Envelope, buffer),
		logger: logging.GetComponentLogger("events"),
	}
}

// Dropped число событий, не поместившихся в очередь
func (f *ChunkFeed) Dropped() uint64 {
	return f.dropped.Load()
}

// Run публикует события до отмены контекста
func (f *ChunkFeed) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-f.queue:
			if err := f.bus.Publish(ctx, ev); err != nil {
				f.logger.Warn("Не удалось опубликовать %s: %v", ev.EventType, err)
			}
		}
	}
}

func (f *ChunkFeed) enqueue(eventType, volume string, priority int, payload ChunkEvent) {
	data, err := json.Marshal(payload)
	if err != nil {
		f.logger.Error("Ошибка сериализации события %s: %v", eventType, err)
		return
	}
	ev := &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    f.source,
		EventType: eventType,
		Version:   1,
		Priority:  priority,
		Payload:   data,
		Metadata:  map[string]string{MetaVolume: volume},
	}
	select {
	case f.queue <- ev:
	default:
		if f.dropped.Add(1)%100 == 1 {
			f.logger.Warn("Очередь ленты изменений переполнена, событие %s отброшено", eventType)
		}
	}
}

func (f *ChunkFeed) ChunkCreated(volume string, coord vec.Vec2) {
	f.enqueue(TypeChunkCreated, volume, 1, ChunkEvent{Volume: volume, X: coord.X, Z: coord.Z})
}

func (f *ChunkFeed) ChunkRebuilt(ev world.RebuildEvent) {
	f.enqueue(TypeChunkRebuilt, ev.Volume, 1, ChunkEvent{
		Volume:    ev.Volume,
		X:         ev.Coord.X,
		Z:         ev.Coord.Z,
		Kind:      string(ev.Kind),
		Triangles: ev.Triangles,
		ElapsedMS: float64(ev.Elapsed.Microseconds()) / 1000,
	})
}

// ChunkRemoved клиент обязан убрать сетку чанка, поэтому приоритет высокий
func (f *ChunkFeed) ChunkRemoved(volume string, coord vec.Vec2, triangles int) {
	f.enqueue(TypeChunkRemoved, volume, HighPriority, ChunkEvent{Volume: volume, X: coord.X, Z: coord.Z, Triangles: triangles})
}

func (f *ChunkFeed) BordersPropagated(string, int) {}

// ForgetVolume публикует удаление объёма
func (f *ChunkFeed) ForgetVolume(volume string) {
	f.enqueue(TypeVolumeRemoved, volume, HighPriority, ChunkEvent{Volume: volume})
}
