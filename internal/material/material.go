package material

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ID идентификатор материала вокселя. 0 означает пустой воксель.
type ID uint8

// Empty пустой воксель
const Empty ID = 0

// IsSolid возвращает true для непустого вокселя
func (id ID) IsSolid() bool {
	return id != Empty
}

// RGBA цвет материала
type RGBA struct {
	R uint8 `yaml:"r" json:"r"`
	G uint8 `yaml:"g" json:"g"`
	B uint8 `yaml:"b" json:"b"`
	A uint8 `yaml:"a" json:"a"`
}

// Material описание материала для рендерера
type Material struct {
	Name      string  `yaml:"name" json:"name"`
	Color     RGBA    `yaml:"color" json:"color"`
	Roughness float32 `yaml:"roughness" json:"roughness"`
	Metalness float32 `yaml:"metalness" json:"metalness"`
}

// Fallback материал для идентификаторов без описания
var Fallback = Material{
	Name:      "unknown",
	Color:     RGBA{R: 255, G: 0, B: 255, A: 255},
	Roughness: 1,
}

// Table таблица материалов по идентификатору
type Table struct {
	materials map[ID]Material
}

// NewTable создаёт пустую таблицу
func NewTable() *Table {
	return &Table{materials: make(map[ID]Material)}
}

// DefaultTable возвращает таблицу со встроенным набором материалов
func DefaultTable() *Table {
	t := NewTable()
	t.Set(1, Material{Name: "stone", Color: RGBA{128, 128, 128, 255}, Roughness: 0.9})
	t.Set(2, Material{Name: "dirt", Color: RGBA{121, 85, 58, 255}, Roughness: 1})
	t.Set(3, Material{Name: "grass", Color: RGBA{86, 160, 60, 255}, Roughness: 0.8})
	t.Set(4, Material{Name: "sand", Color: RGBA{219, 203, 148, 255}, Roughness: 0.95})
	t.Set(5, Material{Name: "water", Color: RGBA{60, 110, 200, 180}, Roughness: 0.1})
	t.Set(6, Material{Name: "metal", Color: RGBA{190, 190, 200, 255}, Roughness: 0.3, Metalness: 1})
	return t
}

// Set регистрирует материал. Пустой идентификатор не регистрируется.
func (t *Table) Set(id ID, m Material) bool {
	if id == Empty {
		return false
	}
	t.materials[id] = m
	return true
}

// Get возвращает материал по идентификатору.
// Для неизвестных идентификаторов возвращает Fallback и false.
func (t *Table) Get(id ID) (Material, bool) {
	m, ok := t.materials[id]
	if !ok {
		return Fallback, false
	}
	return m, true
}

// Len возвращает количество зарегистрированных материалов
func (t *Table) Len() int {
	return len(t.materials)
}

// IDs возвращает отсортированный список зарегистрированных идентификаторов
func (t *Table) IDs() []ID {
	ids := make([]ID, 0, len(t.materials))
	for id := range t.materials {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Palette возвращает плоскую RGBA палитру на 256 записей для загрузки в GPU.
// Запись 0 (пусто) прозрачная, неизвестные записи заполняются Fallback.
func (t *Table) Palette() []byte {
	out := make([]byte, 256*4)
	for i := 1; i < 256; i++ {
		m, _ := t.Get(ID(i))
		out[i*4+0] = m.Color.R
		out[i*4+1] = m.Color.G
		out[i*4+2] = m.Color.B
		out[i*4+3] = m.Color.A
	}
	return out
}

type tableFile struct {
	Materials []struct {
		ID       int `yaml:"id"`
		Material `yaml:",inline"`
	} `yaml:"materials"`
}

// LoadTable читает таблицу материалов из YAML файла вида
//
//	materials:
//	  - id: 1
//	    name: stone
//	    color: {r: 128, g: 128, b: 128, a: 255}
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение таблицы материалов: %w", err)
	}
	return ParseTable(data)
}

// ParseTable разбирает YAML таблицы материалов
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("разбор таблицы материалов: %w", err)
	}

	t := NewTable()
	for _, entry := range f.Materials {
		if entry.ID <= 0 || entry.ID > 255 {
			return nil, fmt.Errorf("недопустимый id материала %d (%s)", entry.ID, entry.Name)
		}
		t.Set(ID(entry.ID), entry.Material)
	}
	return t, nil
}
