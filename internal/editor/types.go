package editor

import (
	"errors"

	"github.com/annel0/voxel-editor/internal/material"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var (
	ErrVolumeNotFound   = errors.New("объём не найден")
	ErrNothingToUndo    = errors.New("нечего отменять")
	ErrNothingToRedo    = errors.New("нечего повторять")
	ErrUnknownTemplate  = errors.New("неизвестный шаблон объёма")
	ErrUnknownMaterial  = errors.New("неизвестный материал")
	ErrNoStore          = errors.New("хранилище не настроено")
	ErrServiceStopped   = errors.New("сервис редактора остановлен")
	ErrChunkNotFound    = errors.New("чанк не найден")
	ErrInvalidTransform = errors.New("вырожденная трансформация")
)

// CreateRequest параметры нового объёма
type CreateRequest struct {
	Name     string       `json:"name"`
	Template string       `json:"template"`
	Flags    *world.Flags `json:"flags,omitempty"` // nil означает флаги по умолчанию
	Seed     int64        `json:"seed"`
}

// DrawRequest один мазок кисти
type DrawRequest struct {
	Position mgl32.Vec3  `json:"position"`
	Shape    world.Shape `json:"shape"`
	Radius   int         `json:"radius"`
	Material material.ID `json:"material"`
	// World означает, что Position задана в мировых координатах
	World bool `json:"world"`
}

// DrawResponse итог мазка
type DrawResponse struct {
	Changed int               `json:"changed"`
	Update  world.UpdateStats `json:"update"`
	Stats   world.VolumeStats `json:"stats"`
}

// VolumeInfo описание объёма сцены
type VolumeInfo struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"name"`
	Flags     world.Flags       `json:"flags"`
	Transform [16]float32       `json:"transform"`
	Stats     world.VolumeStats `json:"stats"`
	UndoDepth int               `json:"undo_depth"`
	RedoDepth int               `json:"redo_depth"`
}

// ChunkMesh геометрия одного чанка для клиента.
// Вершины в координатах чанка; Origin переводит их в координаты объёма.
// Materials содержит материал каждой вершины (в JSON как base64).
type ChunkMesh struct {
	X         int           `json:"x"`
	Z         int           `json:"z"`
	Origin    [3]float32    `json:"origin"`
	Positions []float32     `json:"positions"`
	Normals   []float32     `json:"normals"`
	Indices   []uint32      `json:"indices"`
	Materials []material.ID `json:"materials"`
}
