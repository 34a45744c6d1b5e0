package editor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/annel0/voxel-editor/internal/generator"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/go-gl/mathgl/mgl32"
)

// Шаблоны новых объёмов
const (
	TemplateEmpty   = "empty"
	TemplateSphere  = "sphere"
	TemplateCube    = "cube"
	TemplateTerrain = "terrain"
)

const terrainExtent = 16

var templates = map[string]func(v *world.Volume, seed int64) error{
	TemplateEmpty: func(*world.Volume, int64) error { return nil },
	TemplateSphere: func(v *world.Volume, _ int64) error {
		_, err := v.Draw(mgl32.Vec3{}, world.ShapeSphere, 6, generator.MaterialStone, false)
		return err
	},
	TemplateCube: func(v *world.Volume, _ int64) error {
		_, err := v.Draw(mgl32.Vec3{}, world.ShapeCuboid, 4, generator.MaterialDirt, false)
		return err
	},
	TemplateTerrain: func(v *world.Volume, seed int64) error {
		_, err := generator.DefaultTerrain(seed).Fill(v,
			vec.Vec2{X: -terrainExtent, Z: -terrainExtent},
			vec.Vec2{X: terrainExtent, Z: terrainExtent})
		return err
	},
}

// Templates возвращает имена доступных шаблонов
func Templates() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func applyTemplate(v *world.Volume, name string, seed int64) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = TemplateEmpty
	}
	fill, ok := templates[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	return fill(v, seed)
}
