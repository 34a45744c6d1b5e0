package editor

import (
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/google/uuid"
)

// entry узел сцены; volume заполняется при вставке, если узел объём
type entry struct {
	node   world.Node
	volume *world.Volume
}

// Scene набор узлов редактора в порядке добавления.
// Не потокобезопасна: используется только из цикла Service.
type Scene struct {
	entries map[uuid.UUID]*entry
	order   []uuid.UUID
}

// NewScene создаёт пустую сцену
func NewScene() *Scene {
	return &Scene{entries: make(map[uuid.UUID]*entry)}
}

// Add добавляет узел. Повторное добавление заменяет узел с тем же ID.
func (s *Scene) Add(n world.Node) {
	e := &entry{node: n}
	if n.Kind() == world.NodeVolume {
		e.volume = n.(*world.Volume)
	}
	if _, exists := s.entries[n.ID()]; !exists {
		s.order = append(s.order, n.ID())
	}
	s.entries[n.ID()] = e
}

// Remove удаляет узел, возвращает false, если его не было
func (s *Scene) Remove(id uuid.UUID) bool {
	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	for i, other := range s.order {
		if other == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Node возвращает узел по ID
func (s *Scene) Node(id uuid.UUID) (world.Node, bool) {
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.node, true
}

// Volume возвращает объём по ID; false, если узла нет или это не объём
func (s *Scene) Volume(id uuid.UUID) (*world.Volume, bool) {
	e, ok := s.entries[id]
	if !ok || e.volume == nil {
		return nil, false
	}
	return e.volume, true
}

// Volumes возвращает объёмы сцены в порядке добавления
func (s *Scene) Volumes() []*world.Volume {
	out := make([]*world.Volume, 0, len(s.order))
	for _, id := range s.order {
		if v := s.entries[id].volume; v != nil {
			out = append(out, v)
		}
	}
	return out
}

// Len количество узлов
func (s *Scene) Len() int {
	return len(s.order)
}
