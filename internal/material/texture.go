package material

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Texture трёхмерный буфер идентификаторов материалов одного чанка.
// Раскладка: x + Width*(y + Height*z), совпадает с хранением вокселей в чанке.
type Texture struct {
	Width, Height, Depth int
	Data                 []ID
}

// NewTexture создаёт пустую текстуру заданного размера
func NewTexture(width, height, depth int) *Texture {
	return &Texture{
		Width:  width,
		Height: height,
		Depth:  depth,
		Data:   make([]ID, width*height*depth),
	}
}

// Index возвращает линейный индекс ячейки или -1 вне границ
func (t *Texture) Index(x, y, z int) int {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Height || z < 0 || z >= t.Depth {
		return -1
	}
	return x + t.Width*(y+t.Height*z)
}

// At возвращает идентификатор в ячейке; вне границ Empty
func (t *Texture) At(x, y, z int) ID {
	i := t.Index(x, y, z)
	if i < 0 {
		return Empty
	}
	return t.Data[i]
}

// Bytes возвращает данные в виде байтов для загрузки в GPU
func (t *Texture) Bytes() []byte {
	out := make([]byte, len(t.Data))
	for i, id := range t.Data {
		out[i] = byte(id)
	}
	return out
}

var sampleOffsets = [6][3]int{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// ResolveFragment определяет материал фрагмента поверхности.
// position задаётся в локальном пространстве чанка (воксель x занимает [x, x+1]),
// выборка берётся на полвокселя позади фрагмента вдоль нормали. Если там пусто
// (сглаженная геометрия может уйти за пределы тела), проверяются шесть соседей.
func (t *Table) ResolveFragment(tex *Texture, position, normal mgl32.Vec3) (Material, ID, bool) {
	p := position
	if l := normal.Len(); l > 0 {
		p = p.Sub(normal.Mul(0.5 / l))
	}
	x := int(math32.Floor(p[0]))
	y := int(math32.Floor(p[1]))
	z := int(math32.Floor(p[2]))

	if id := tex.At(x, y, z); id != Empty {
		m, _ := t.Get(id)
		return m, id, true
	}
	for _, off := range sampleOffsets {
		if id := tex.At(x+off[0], y+off[1], z+off[2]); id != Empty {
			m, _ := t.Get(id)
			return m, id, true
		}
	}
	return Material{}, Empty, false
}
