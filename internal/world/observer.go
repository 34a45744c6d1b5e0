package world

import (
	"time"

	"github.com/annel0/voxel-editor/internal/vec"
)

// RebuildKind вид перестройки чанка
type RebuildKind string

const (
	// RebuildFull перестройка изменённого чанка с синхронизацией рамки
	RebuildFull RebuildKind = "full"
	// RebuildBorder повторная перестройка соседа после изменения его рамки
	RebuildBorder RebuildKind = "border"
)

// RebuildEvent сведения об одной перестройке чанка
type RebuildEvent struct {
	Volume        string
	Coord         vec.Vec2
	Kind          RebuildKind
	Triangles     int
	PrevTriangles int
	Elapsed       time.Duration
}

// Observer получает события жизненного цикла чанков (метрики, трассировка).
// Вызывается синхронно из потока, выполняющего Update.
type Observer interface {
	ChunkCreated(volume string, coord vec.Vec2)
	ChunkRebuilt(ev RebuildEvent)
	ChunkRemoved(volume string, coord vec.Vec2, triangles int)
	BordersPropagated(volume string, count int)
}

type nopObserver struct{}

func (nopObserver) ChunkCreated(string, vec.Vec2)      {}
func (nopObserver) ChunkRebuilt(RebuildEvent)          {}
func (nopObserver) ChunkRemoved(string, vec.Vec2, int) {}
func (nopObserver) BordersPropagated(string, int)      {}

// multiObserver рассылает события нескольким наблюдателям по порядку
type multiObserver []Observer

// Observers объединяет наблюдателей. nil пропускаются; ForgetVolume
// передаётся тем, кто его реализует.
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	switch len(out) {
	case 0:
		return nopObserver{}
	case 1:
		return out[0]
	}
	return out
}

func (m multiObserver) ChunkCreated(volume string, coord vec.Vec2) {
	for _, o := range m {
		o.ChunkCreated(volume, coord)
	}
}

func (m multiObserver) ChunkRebuilt(ev RebuildEvent) {
	for _, o := range m {
		o.ChunkRebuilt(ev)
	}
}

func (m multiObserver) ChunkRemoved(volume string, coord vec.Vec2, triangles int) {
	for _, o := range m {
		o.ChunkRemoved(volume, coord, triangles)
	}
}

func (m multiObserver) BordersPropagated(volume string, count int) {
	for _, o := range m {
		o.BordersPropagated(volume, count)
	}
}

// ForgetVolume сообщает об удалении объёма
func (m multiObserver) ForgetVolume(volume string) {
	for _, o := range m {
		if f, ok := o.(interface{ ForgetVolume(string) }); ok {
			f.ForgetVolume(volume)
		}
	}
}
