package mesh

import "github.com/go-gl/mathgl/mgl32"

// Smooth выполняет один проход лапласовского сглаживания на месте.
//
// Для каждого треугольника позиция каждой вершины добавляется к сумме двух
// других (шесть направленных вкладов на треугольник). Затем каждая вершина
// заменяется средним накопленных соседей. Вершины без вкладов не меняются.
// Для более сильного сглаживания вызывающий повторяет проход сам.
func Smooth(positions []mgl32.Vec3, indices []uint32) {
	if len(positions) == 0 {
		return
	}

	sums := make([]mgl32.Vec3, len(positions))
	counts := make([]uint32, len(positions))

	add := func(vertex, neighbor uint32) {
		sums[vertex] = sums[vertex].Add(positions[neighbor])
		counts[vertex]++
	}

	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		add(a, b)
		add(a, c)
		add(b, c)
		add(b, a)
		add(c, a)
		add(c, b)
	}

	for i := range positions {
		if counts[i] > 0 {
			positions[i] = sums[i].Mul(1 / float32(counts[i]))
		}
	}
}
