package world

import (
	"fmt"
	"strings"

	"github.com/annel0/voxel-editor/internal/material"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxRadius наибольший радиус кисти: мазок обходит (2r)^3 ячеек
const MaxRadius = 64

// Shape форма кисти
type Shape uint8

const (
	ShapeCuboid Shape = iota
	ShapeSphere
)

// String возвращает строковое представление формы
func (s Shape) String() string {
	switch s {
	case ShapeCuboid:
		return "cuboid"
	case ShapeSphere:
		return "sphere"
	default:
		return "unknown"
	}
}

// ParseShape разбирает имя формы; "cube" и "square" синонимы "cuboid"
func ParseShape(name string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cuboid", "cube", "square":
		return ShapeCuboid, nil
	case "sphere":
		return ShapeSphere, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownShape, name)
	}
}

// MarshalText реализует encoding.TextMarshaler
func (s Shape) MarshalText() ([]byte, error) {
	if s != ShapeCuboid && s != ShapeSphere {
		return nil, fmt.Errorf("%w: %d", ErrUnknownShape, s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler
func (s *Shape) UnmarshalText(text []byte) error {
	parsed, err := ParseShape(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// contains проверяет смещение относительно центра кисти
func (s Shape) contains(dx, dy, dz, radius int) bool {
	if s == ShapeSphere {
		return dx*dx+dy*dy+dz*dz < radius*radius
	}
	return true
}

// Snapshot состояние вокселей до изменения: координата -> прежний материал.
// Передаётся внешнему стеку отмены и воспроизводится через Volume.Restore.
type Snapshot map[vec.Vec3]material.ID

// Brush параметры одного мазка
type Brush struct {
	Shape    Shape
	Radius   int
	Material material.ID
}

// DrawResult итог мазка
type DrawResult struct {
	Changed  int
	Snapshot Snapshot
	Update   UpdateStats
}

// Draw рисует кистью в локальном пространстве объёма и перестраивает геометрию.
// Позиция округляется вниз до сетки, обходится куб [-r, r) по каждой оси;
// сфера оставляет ячейки с расстоянием до центра меньше r. Если captureUndo,
// результат содержит прежние значения всех затронутых ячеек.
func (v *Volume) Draw(position mgl32.Vec3, shape Shape, radius int, id material.ID, captureUndo bool) (DrawResult, error) {
	center, ok := vec.FromFloat(position)
	if !ok {
		return DrawResult{}, fmt.Errorf("%w: %v", ErrInvalidCoordinate, position)
	}
	if radius < 1 || radius > MaxRadius {
		return DrawResult{}, fmt.Errorf("%w: %d", ErrInvalidRadius, radius)
	}
	if shape != ShapeCuboid && shape != ShapeSphere {
		return DrawResult{}, fmt.Errorf("%w: %d", ErrUnknownShape, shape)
	}

	var res DrawResult
	if captureUndo {
		res.Snapshot = make(Snapshot)
	}

	for dz := -radius; dz < radius; dz++ {
		for dy := -radius; dy < radius; dy++ {
			y := center.Y + dy
			if y < MinY || y >= MaxY {
				continue
			}
			for dx := -radius; dx < radius; dx++ {
				if !shape.contains(dx, dy, dz, radius) {
					continue
				}
				x, z := center.X+dx, center.Z+dz
				prev := v.GetVoxel(x, y, z)
				if captureUndo {
					res.Snapshot[vec.Vec3{X: x, Y: y, Z: z}] = prev
				}
				if prev == id {
					continue
				}
				v.SetVoxel(x, y, z, id)
				res.Changed++
			}
		}
	}

	res.Update = v.Update()
	return res, nil
}

// Paint применяет кисть в мировых координатах (через обратную трансформацию объёма)
func (v *Volume) Paint(worldPos mgl32.Vec3, b Brush, captureUndo bool) (DrawResult, error) {
	local, err := v.WorldToLocal(worldPos)
	if err != nil {
		return DrawResult{}, err
	}
	return v.Draw(local, b.Shape, b.Radius, b.Material, captureUndo)
}

// Restore воспроизводит снимок и перестраивает геометрию.
// Возвращает снимок текущих значений тех же ячеек (для повтора).
func (v *Volume) Restore(s Snapshot) Snapshot {
	redo := make(Snapshot, len(s))
	for pos, id := range s {
		redo[pos] = v.GetVoxel(pos.X, pos.Y, pos.Z)
		v.SetVoxel(pos.X, pos.Y, pos.Z, id)
	}
	v.Update()
	return redo
}
