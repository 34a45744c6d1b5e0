package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/annel0/voxel-editor/internal/export"
	"github.com/annel0/voxel-editor/internal/generator"
	"github.com/annel0/voxel-editor/internal/material"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/go-gl/mathgl/mgl32"
)

// meshgen строит объём (ландшафт или мазок кисти) и пишет его в OBJ.
//
//	meshgen -mode terrain -seed 7 -extent 32 -smooth -out terrain.obj
//	meshgen -mode brush -shape sphere -radius 8 -material 1 > ball.obj
func main() {
	var (
		mode      = flag.String("mode", "terrain", "Что строить: terrain, brush")
		out       = flag.String("out", "", "Файл OBJ (по умолчанию stdout)")
		seed      = flag.Int64("seed", 1, "Seed шума для terrain")
		extent    = flag.Int("extent", 32, "Половина стороны области terrain в вокселях")
		shape     = flag.String("shape", "sphere", "Форма кисти: cuboid, sphere")
		radius    = flag.Int("radius", 6, "Радиус кисти")
		mat       = flag.Int("material", int(generator.MaterialStone), "Материал кисти (1-255)")
		smooth    = flag.Bool("smooth", false, "Гладкая поверхность (marching cubes)")
		normals   = flag.Bool("smooth-normals", false, "Сглаженные нормали")
		geometry  = flag.Bool("smooth-geometry", false, "Сглаживание Лапласа")
		subdivide = flag.Bool("subdivide", false, "Подразбиение треугольников")
		uvs       = flag.Bool("uvs", false, "Добавить UV атласа")
		scale     = flag.Float64("scale", 1, "Масштаб вершин при экспорте")
	)
	flag.Parse()

	flags := world.Flags{
		UseSmoothSurface: *smooth,
		SmoothNormals:    *normals,
		SmoothGeometry:   *geometry,
		Subdivide:        *subdivide,
	}
	v := world.NewVolume("meshgen-"+*mode, flags)

	switch *mode {
	case "terrain":
		e := *extent
		solid, err := generator.DefaultTerrain(*seed).Fill(v, vec.Vec2{X: -e, Z: -e}, vec.Vec2{X: e, Z: e})
		if err != nil {
			log.Fatalf("❌ Ошибка генерации ландшафта: %v", err)
		}
		log.Printf("🏔  Ландшафт: %d твёрдых вокселей", solid)
	case "brush":
		s, err := world.ParseShape(*shape)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		if *mat < 1 || *mat > 255 {
			log.Fatalf("❌ Материал вне диапазона: %d", *mat)
		}
		res, err := v.Draw(mgl32.Vec3{}, s, *radius, material.ID(*mat), false)
		if err != nil {
			log.Fatalf("❌ Ошибка кисти: %v", err)
		}
		log.Printf("🖌  Кисть %s r=%d: %d вокселей", s, *radius, res.Changed)
	default:
		log.Fatalf("❌ Неизвестный режим: %s", *mode)
	}

	if *scale != 1 {
		v.SetTransform(mgl32.Scale3D(float32(*scale), float32(*scale), float32(*scale)))
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		defer f.Close()
		w = f
	}

	sum, err := export.WriteOBJ(w, v, export.Options{UVs: *uvs, World: *scale != 1})
	if err != nil {
		log.Fatalf("❌ Ошибка экспорта: %v", err)
	}
	stats := v.Stats()
	fmt.Fprintf(os.Stderr, "✅ %d чанков, %d объектов, %d вершин, %d треугольников\n",
		stats.Chunks, sum.Objects, sum.Vertices, sum.Triangles)
}
