package mesh

import (
	"github.com/annel0/voxel-editor/internal/material"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/go-gl/mathgl/mgl32"
)

// Mode определяет способ построения поверхности
type Mode uint8

const (
	// ModeBlocky строит по кубу на каждый непустой воксель
	ModeBlocky Mode = iota
	// ModeSmooth строит изоповерхность методом marching cubes
	ModeSmooth
)

// String возвращает строковое представление режима
func (m Mode) String() string {
	switch m {
	case ModeBlocky:
		return "blocky"
	case ModeSmooth:
		return "smooth"
	default:
		return "unknown"
	}
}

// IsoLevel порог поверхности для бинарных выборок (пусто=0, занято=1)
const IsoLevel float32 = 0.5

// Sampler источник вокселей для экстрактора.
// Для координат, в которые никогда не писали, обязан возвращать material.Empty.
type Sampler interface {
	Sample(x, y, z int) material.ID
}

// SamplerFunc адаптер функции к интерфейсу Sampler
type SamplerFunc func(x, y, z int) material.ID

// Sample реализует Sampler
func (f SamplerFunc) Sample(x, y, z int) material.ID {
	return f(x, y, z)
}

// Extractor накапливает треугольники отдельных ячеек в общий Surface.
// Карты дедупликации живут только в пределах одной перестройки и
// сбрасываются через Reset.
type Extractor struct {
	mode    Mode
	weld    bool
	surface *Surface

	positions map[mgl32.Vec3]uint32 // сварка вершин в гладком режиме
	faces     map[faceKey]uint32    // сварка вершин в блочном режиме
}

// NewExtractor создаёт экстрактор для указанного режима.
// weld включает сварку вершин по точной позиции (только для ModeSmooth).
func NewExtractor(mode Mode, weld bool) *Extractor {
	e := &Extractor{
		mode:    mode,
		weld:    weld,
		surface: &Surface{},
	}
	e.Reset()
	return e
}

// Mode возвращает режим экстрактора
func (e *Extractor) Mode() Mode {
	return e.mode
}

// Welded возвращает true, если вершины свариваются
func (e *Extractor) Welded() bool {
	return e.mode == ModeBlocky || e.weld
}

// Surface возвращает накопленную геометрию
func (e *Extractor) Surface() *Surface {
	return e.surface
}

// Reset отбрасывает накопленную геометрию и карты дедупликации
func (e *Extractor) Reset() {
	e.surface = &Surface{}
	e.positions = make(map[mgl32.Vec3]uint32)
	e.faces = make(map[faceKey]uint32)
}

// ExtractCell добавляет треугольники одной ячейки с началом origin.
// Возвращает количество добавленных треугольников. Результат не зависит
// от порядка обхода ячеек.
func (e *Extractor) ExtractCell(origin vec.Vec3, s Sampler) int {
	if e.mode == ModeBlocky {
		return e.blockyCell(origin, s)
	}
	return e.marchCell(origin, s)
}
