package editor

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/annel0/voxel-editor/internal/export"
	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/material"
	"github.com/annel0/voxel-editor/internal/mesh"
	"github.com/annel0/voxel-editor/internal/storage"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Options параметры сервиса редактора
type Options struct {
	Defaults  world.Flags
	UndoDepth int
	QueueSize int
	Materials *material.Table    // nil означает таблицу по умолчанию
	Store     storage.VolumeRepo // nil отключает Save/Load
	Observer  world.Observer     // подключается ко всем объёмам
}

// volumeForgetter наблюдатель, которому нужно знать об удалении объёма
type volumeForgetter interface {
	ForgetVolume(volume string)
}

type command struct {
	fn   func()
	done chan struct{}
}

// Service владеет сценой и выполняет все изменения объёмов в одной горутине.
// Публичные методы потокобезопасны: они ставят команду в очередь и ждут
// её выполнения циклом Run.
type Service struct {
	opts      Options
	scene     *Scene
	histories map[uuid.UUID]*history
	commands  chan command
	stopped   chan struct{}
	stopOnce  sync.Once
	logger    *logging.Logger
}

// NewService создаёт сервис. Команды выполняются только после запуска Run.
func NewService(opts Options) *Service {
	if opts.Materials == nil {
		opts.Materials = material.DefaultTable()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 128
	}
	if opts.UndoDepth <= 0 {
		opts.UndoDepth = 64
	}
	return &Service{
		opts:      opts,
		scene:     NewScene(),
		histories: make(map[uuid.UUID]*history),
		commands:  make(chan command, opts.QueueSize),
		stopped:   make(chan struct{}),
		logger:    logging.GetEditorLogger(),
	}
}

// Materials возвращает таблицу материалов (неизменяемую после старта)
func (s *Service) Materials() *material.Table {
	return s.opts.Materials
}

// Run обрабатывает команды до отмены контекста
func (s *Service) Run(ctx context.Context) error {
	defer s.stopOnce.Do(func() { close(s.stopped) })
	s.logger.Info("Сервис редактора запущен")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Сервис редактора остановлен: %d узлов в сцене", s.scene.Len())
			return ctx.Err()
		case cmd := <-s.commands:
			cmd.fn()
			close(cmd.done)
		}
	}
}

// exec выполняет fn в цикле сервиса и ждёт завершения
func (s *Service) exec(ctx context.Context, fn func()) error {
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case s.commands <- cmd:
	case <-s.stopped:
		return ErrServiceStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-cmd.done:
		return nil
	case <-s.stopped:
		// цикл мог завершиться, не взяв команду
		select {
		case <-cmd.done:
			return nil
		default:
			return ErrServiceStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call выполняет fn над объёмом id в цикле сервиса
func (s *Service) call(ctx context.Context, id uuid.UUID, fn func(v *world.Volume) error) error {
	var err error
	if execErr := s.exec(ctx, func() {
		v, ok := s.scene.Volume(id)
		if !ok {
			err = fmt.Errorf("%w: %s", ErrVolumeNotFound, id)
			return
		}
		err = fn(v)
	}); execErr != nil {
		return execErr
	}
	return err
}

func (s *Service) info(v *world.Volume) VolumeInfo {
	h := s.histories[v.ID()]
	info := VolumeInfo{
		ID:        v.ID(),
		Name:      v.Name(),
		Flags:     v.Flags(),
		Transform: [16]float32(v.Transform()),
		Stats:     v.Stats(),
	}
	if h != nil {
		info.UndoDepth = len(h.undo)
		info.RedoDepth = len(h.redo)
	}
	return info
}

func (s *Service) attach(v *world.Volume) {
	if s.opts.Observer != nil {
		v.SetObserver(s.opts.Observer)
	}
}

func (s *Service) forget(id uuid.UUID) {
	if f, ok := s.opts.Observer.(volumeForgetter); ok {
		f.ForgetVolume(id.String())
	}
}

func (s *Service) insert(v *world.Volume) {
	s.scene.Add(v)
	s.histories[v.ID()] = newHistory(s.opts.UndoDepth)
}

// CreateVolume создаёт объём по шаблону и добавляет его в сцену
func (s *Service) CreateVolume(ctx context.Context, req CreateRequest) (VolumeInfo, error) {
	flags := s.opts.Defaults
	if req.Flags != nil {
		flags = *req.Flags
	}
	name := req.Name
	if name == "" {
		name = "volume"
	}

	var info VolumeInfo
	var err error
	execErr := s.exec(ctx, func() {
		v := world.NewVolume(name, flags)
		s.attach(v)
		if err = applyTemplate(v, req.Template, req.Seed); err != nil {
			// наблюдатели уже видели чанки шаблона
			v.Clear()
			s.forget(v.ID())
			return
		}
		s.insert(v)
		info = s.info(v)
		s.logger.Info("Создан объём %s (%s), шаблон %q: %d чанков", v.Name(), v.ID(), req.Template, v.ChunkCount())
	})
	if execErr != nil {
		return VolumeInfo{}, execErr
	}
	return info, err
}

// DeleteVolume удаляет объём из сцены
func (s *Service) DeleteVolume(ctx context.Context, id uuid.UUID) error {
	return s.call(ctx, id, func(v *world.Volume) error {
		v.Clear()
		s.scene.Remove(id)
		delete(s.histories, id)
		s.forget(id)
		s.logger.Info("Объём %s удалён", id)
		return nil
	})
}

// ListVolumes возвращает описания объёмов в порядке добавления
func (s *Service) ListVolumes(ctx context.Context) ([]VolumeInfo, error) {
	var out []VolumeInfo
	err := s.exec(ctx, func() {
		volumes := s.scene.Volumes()
		out = make([]VolumeInfo, 0, len(volumes))
		for _, v := range volumes {
			out = append(out, s.info(v))
		}
	})
	return out, err
}

// GetVolume возвращает описание объёма
func (s *Service) GetVolume(ctx context.Context, id uuid.UUID) (VolumeInfo, error) {
	var info VolumeInfo
	err := s.call(ctx, id, func(v *world.Volume) error {
		info = s.info(v)
		return nil
	})
	return info, err
}

// Draw рисует кистью и записывает снимок в историю отмены
func (s *Service) Draw(ctx context.Context, id uuid.UUID, req DrawRequest) (DrawResponse, error) {
	if req.Material != material.Empty {
		if _, ok := s.opts.Materials.Get(req.Material); !ok {
			return DrawResponse{}, fmt.Errorf("%w: %d", ErrUnknownMaterial, req.Material)
		}
	}

	var resp DrawResponse
	err := s.call(ctx, id, func(v *world.Volume) error {
		var res world.DrawResult
		var err error
		if req.World {
			res, err = v.Paint(req.Position, world.Brush{Shape: req.Shape, Radius: req.Radius, Material: req.Material}, true)
		} else {
			res, err = v.Draw(req.Position, req.Shape, req.Radius, req.Material, true)
		}
		if err != nil {
			return err
		}
		if res.Changed > 0 {
			s.histories[id].push(res.Snapshot)
		}
		resp = DrawResponse{Changed: res.Changed, Update: res.Update, Stats: v.Stats()}
		s.logger.Debug("Мазок %s r=%d в %s: изменено %d вокселей", req.Shape, req.Radius, id, res.Changed)
		return nil
	})
	return resp, err
}

// Undo отменяет последний мазок
func (s *Service) Undo(ctx context.Context, id uuid.UUID) (VolumeInfo, error) {
	var info VolumeInfo
	err := s.call(ctx, id, func(v *world.Volume) error {
		h := s.histories[id]
		snap, ok := h.popUndo()
		if !ok {
			return ErrNothingToUndo
		}
		h.pushRedo(v.Restore(snap))
		info = s.info(v)
		return nil
	})
	return info, err
}

// Redo повторяет последний отменённый мазок
func (s *Service) Redo(ctx context.Context, id uuid.UUID) (VolumeInfo, error) {
	var info VolumeInfo
	err := s.call(ctx, id, func(v *world.Volume) error {
		h := s.histories[id]
		snap, ok := h.popRedo()
		if !ok {
			return ErrNothingToRedo
		}
		h.pushUndoKeepRedo(v.Restore(snap))
		info = s.info(v)
		return nil
	})
	return info, err
}

// SetFlags меняет режим построения поверхности
func (s *Service) SetFlags(ctx context.Context, id uuid.UUID, flags world.Flags) (VolumeInfo, error) {
	var info VolumeInfo
	err := s.call(ctx, id, func(v *world.Volume) error {
		if v.SetFlags(flags) {
			v.Update()
			s.logger.Info("Флаги объёма %s изменены: %+v", id, flags)
		}
		info = s.info(v)
		return nil
	})
	return info, err
}

// SetTransform задаёт трансформацию объёма
func (s *Service) SetTransform(ctx context.Context, id uuid.UUID, m mgl32.Mat4) (VolumeInfo, error) {
	if m.Det() == 0 {
		return VolumeInfo{}, ErrInvalidTransform
	}
	var info VolumeInfo
	err := s.call(ctx, id, func(v *world.Volume) error {
		v.SetTransform(m)
		info = s.info(v)
		return nil
	})
	return info, err
}

// Rename задаёт имя объёма
func (s *Service) Rename(ctx context.Context, id uuid.UUID, name string) (VolumeInfo, error) {
	var info VolumeInfo
	err := s.call(ctx, id, func(v *world.Volume) error {
		v.SetName(name)
		info = s.info(v)
		return nil
	})
	return info, err
}

// CloneVolume добавляет в сцену независимую копию объёма
func (s *Service) CloneVolume(ctx context.Context, id uuid.UUID) (VolumeInfo, error) {
	var info VolumeInfo
	err := s.call(ctx, id, func(v *world.Volume) error {
		cp := v.Clone()
		cp.SetName(v.Name() + " (копия)")
		s.insert(cp)
		info = s.info(cp)
		s.logger.Info("Объём %s склонирован в %s", id, cp.ID())
		return nil
	})
	return info, err
}

// Stats возвращает сводку по объёму
func (s *Service) Stats(ctx context.Context, id uuid.UUID) (world.VolumeStats, error) {
	var stats world.VolumeStats
	err := s.call(ctx, id, func(v *world.Volume) error {
		stats = v.Stats()
		return nil
	})
	return stats, err
}

// ChunkCoords возвращает координаты чанков объёма
func (s *Service) ChunkCoords(ctx context.Context, id uuid.UUID) ([]vec.Vec2, error) {
	var coords []vec.Vec2
	err := s.call(ctx, id, func(v *world.Volume) error {
		coords = v.Coords()
		return nil
	})
	return coords, err
}

// ChunkMeshes возвращает геометрию всех непустых чанков объёма
func (s *Service) ChunkMeshes(ctx context.Context, id uuid.UUID) ([]ChunkMesh, error) {
	var meshes []ChunkMesh
	err := s.call(ctx, id, func(v *world.Volume) error {
		for _, coord := range v.Coords() {
			c := v.ChunkAt(coord)
			if c.Surface().IsEmpty() {
				continue
			}
			meshes = append(meshes, s.chunkMesh(c))
		}
		return nil
	})
	return meshes, err
}

// ChunkMesh возвращает геометрию одного чанка
func (s *Service) ChunkMesh(ctx context.Context, id uuid.UUID, coord vec.Vec2) (ChunkMesh, error) {
	var m ChunkMesh
	err := s.call(ctx, id, func(v *world.Volume) error {
		c := v.ChunkAt(coord)
		if c == nil {
			return fmt.Errorf("%w: %v", ErrChunkNotFound, coord)
		}
		m = s.chunkMesh(c)
		return nil
	})
	return m, err
}

func (s *Service) chunkMesh(c *world.Chunk) ChunkMesh {
	surface := c.Surface()
	origin := c.Origin()
	coord := c.Coord()

	positions := append([]mgl32.Vec3(nil), surface.Positions...)
	normals := append([]mgl32.Vec3(nil), surface.Normals...)
	indices := append([]uint32(nil), surface.Indices...)

	// Материал треугольника берётся по его центроиду. Вершина, общая для
	// треугольников разных материалов, дублируется, чтобы цвет не
	// смешивался внутри одной грани.
	ids := make([]material.ID, len(positions))
	assigned := make([]bool, len(positions))
	split := make(map[vertexMaterial]uint32)
	for i := 0; i+2 < len(indices); i += 3 {
		pa, pb, pc := positions[indices[i]], positions[indices[i+1]], positions[indices[i+2]]
		centroid := pa.Add(pb).Add(pc).Mul(1.0 / 3)
		_, id, _ := s.opts.Materials.ResolveFragment(c.Texture(), centroid, mesh.FaceNormal(pa, pb, pc))

		for k := i; k < i+3; k++ {
			vi := indices[k]
			switch {
			case !assigned[vi]:
				ids[vi], assigned[vi] = id, true
			case ids[vi] == id:
			default:
				key := vertexMaterial{vertex: vi, id: id}
				dup, ok := split[key]
				if !ok {
					dup = uint32(len(positions))
					positions = append(positions, positions[vi])
					if int(vi) < len(normals) {
						normals = append(normals, normals[vi])
					}
					ids = append(ids, id)
					assigned = append(assigned, true)
					split[key] = dup
				}
				indices[k] = dup
			}
		}
	}

	out := mesh.Surface{Positions: positions, Normals: normals, Indices: indices}
	return ChunkMesh{
		X:         coord.X,
		Z:         coord.Z,
		Origin:    [3]float32(origin),
		Positions: out.FlatPositions(),
		Normals:   out.FlatNormals(),
		Indices:   indices,
		Materials: ids,
	}
}

type vertexMaterial struct {
	vertex uint32
	id     material.ID
}

// ExportOBJ записывает объём в формате OBJ
func (s *Service) ExportOBJ(ctx context.Context, id uuid.UUID, w io.Writer, opts export.Options) (export.Summary, error) {
	var sum export.Summary
	err := s.call(ctx, id, func(v *world.Volume) error {
		var err error
		sum, err = export.WriteOBJ(w, v, opts)
		return err
	})
	return sum, err
}

// Save сохраняет объём в хранилище
func (s *Service) Save(ctx context.Context, id uuid.UUID) error {
	if s.opts.Store == nil {
		return ErrNoStore
	}
	var data *world.VolumeData
	if err := s.call(ctx, id, func(v *world.Volume) error {
		data = v.Write()
		return nil
	}); err != nil {
		return err
	}

	if err := s.opts.Store.SaveVolume(ctx, id, data); err != nil {
		return fmt.Errorf("не удалось сохранить объём %s: %w", id, err)
	}
	s.logger.Info("Объём %s сохранён: %d чанков", id, len(data.Chunks))
	return nil
}

// Load загружает объём из хранилища. Если объём уже в сцене, его
// содержимое заменяется, история отмены сбрасывается.
func (s *Service) Load(ctx context.Context, id uuid.UUID) (VolumeInfo, error) {
	if s.opts.Store == nil {
		return VolumeInfo{}, ErrNoStore
	}
	data, err := s.opts.Store.LoadVolume(ctx, id)
	if err != nil {
		return VolumeInfo{}, err
	}

	var info VolumeInfo
	execErr := s.exec(ctx, func() {
		v, exists := s.scene.Volume(id)
		if !exists {
			v = world.NewVolumeWithID(id, data.Name, data.Flags)
		}
		s.attach(v)
		if err = v.Load(data); err != nil {
			return
		}
		if !exists {
			s.insert(v)
		}
		s.histories[id] = newHistory(s.opts.UndoDepth)
		info = s.info(v)
		s.logger.Info("Объём %s загружен из хранилища", id)
	})
	if execErr != nil {
		return VolumeInfo{}, execErr
	}
	return info, err
}

// Saved перечисляет объёмы в хранилище
func (s *Service) Saved(ctx context.Context) ([]storage.VolumeInfo, error) {
	if s.opts.Store == nil {
		return nil, ErrNoStore
	}
	return s.opts.Store.ListVolumes(ctx)
}
