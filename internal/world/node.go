package world

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// NodeKind вид узла сцены
type NodeKind uint8

const (
	// NodeGroup обычный узел с трансформацией, без вокселей
	NodeGroup NodeKind = iota
	// NodeVolume воксельный объём
	NodeVolume
)

// String возвращает строковое представление вида узла
func (k NodeKind) String() string {
	switch k {
	case NodeGroup:
		return "group"
	case NodeVolume:
		return "volume"
	default:
		return "unknown"
	}
}

// Node закрытый набор узлов сцены. Вид определяется один раз при вставке
// через Kind, без проверок типов по месту использования.
type Node interface {
	ID() uuid.UUID
	Name() string
	Kind() NodeKind
	Transform() mgl32.Mat4
	sealed()
}

// Kind реализует Node
func (v *Volume) Kind() NodeKind { return NodeVolume }

func (v *Volume) sealed() {}

// Group узел сцены без вокселей
type Group struct {
	id        uuid.UUID
	name      string
	transform mgl32.Mat4
}

// NewGroup создаёт узел с единичной трансформацией
func NewGroup(name string) *Group {
	return &Group{id: uuid.New(), name: name, transform: mgl32.Ident4()}
}

// ID реализует Node
func (g *Group) ID() uuid.UUID { return g.id }

// Name реализует Node
func (g *Group) Name() string { return g.name }

// Kind реализует Node
func (g *Group) Kind() NodeKind { return NodeGroup }

// Transform реализует Node
func (g *Group) Transform() mgl32.Mat4 { return g.transform }

// SetTransform задаёт трансформацию узла
func (g *Group) SetTransform(m mgl32.Mat4) { g.transform = m }

func (g *Group) sealed() {}
