package editor

import "github.com/annel0/voxel-editor/internal/world"

// history стек отмены одного объёма с ограниченной глубиной.
// Новая правка очищает стек повтора.
type history struct {
	depth int
	undo  []world.Snapshot
	redo  []world.Snapshot
}

func newHistory(depth int) *history {
	if depth < 1 {
		depth = 1
	}
	return &history{depth: depth}
}

func (h *history) push(s world.Snapshot) {
	if len(h.undo) == h.depth {
		copy(h.undo, h.undo[1:])
		h.undo = h.undo[:len(h.undo)-1]
	}
	h.undo = append(h.undo, s)
	h.redo = nil
}

func (h *history) popUndo() (world.Snapshot, bool) {
	return pop(&h.undo)
}

func (h *history) popRedo() (world.Snapshot, bool) {
	return pop(&h.redo)
}

func pop(stack *[]world.Snapshot) (world.Snapshot, bool) {
	n := len(*stack)
	if n == 0 {
		return nil, false
	}
	s := (*stack)[n-1]
	(*stack)[n-1] = nil
	*stack = (*stack)[:n-1]
	return s, true
}

func (h *history) pushRedo(s world.Snapshot) {
	h.redo = append(h.redo, s)
}

// pushUndoKeepRedo кладёт снимок в стек отмены, не трогая стек повтора
func (h *history) pushUndoKeepRedo(s world.Snapshot) {
	redo := h.redo
	h.push(s)
	h.redo = redo
}
