package api

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/voxel-editor/internal/editor"
	"github.com/annel0/voxel-editor/internal/export"
	"github.com/annel0/voxel-editor/internal/material"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// DrawBody тело запроса мазка кисти
type DrawBody struct {
	Position [3]float32 `json:"position"`
	Shape    string     `json:"shape" binding:"required"`
	Radius   int        `json:"radius" binding:"required,min=1,max=64"`
	Material uint8      `json:"material"`
	World    bool       `json:"world"`
}

// TransformBody матрица 4x4 по столбцам
type TransformBody struct {
	Matrix [16]float32 `json:"matrix"`
}

// RenameBody новое имя объёма
type RenameBody struct {
	Name string `json:"name" binding:"required"`
}

// MaterialEntry элемент палитры
type MaterialEntry struct {
	ID uint8 `json:"id"`
	material.Material
}

type chunkRef struct {
	X int `json:"x"`
	Z int `json:"z"`
}

// volumeID разбирает :id, при ошибке отвечает 400
func volumeID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Неверный идентификатор объёма")
		return uuid.Nil, false
	}
	return id, true
}

// handleHealth проверка доступности
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleStatus сведения о процессе и сцене
func (rs *RestServer) handleStatus(c *gin.Context) {
	ctx, cancel := rs.requestContext(c)
	defer cancel()

	report := rs.metrics.Report()
	volumes, err := rs.editor.ListVolumes(ctx)
	if err != nil {
		rs.fail(c, err)
		return
	}
	report.Volumes = len(volumes)
	for _, v := range volumes {
		report.Chunks += v.Stats.Chunks
		report.Triangles += v.Stats.Triangles
	}
	ok(c, http.StatusOK, report)
}

func (rs *RestServer) handleTemplates(c *gin.Context) {
	ok(c, http.StatusOK, editor.Templates())
}

// handleMaterials отдаёт таблицу материалов и палитру RGBA
func (rs *RestServer) handleMaterials(c *gin.Context) {
	table := rs.editor.Materials()
	entries := make([]MaterialEntry, 0, table.Len())
	for _, id := range table.IDs() {
		m, _ := table.Get(id)
		entries = append(entries, MaterialEntry{ID: uint8(id), Material: m})
	}
	ok(c, http.StatusOK, gin.H{
		"materials": entries,
		"palette":   table.Palette(),
	})
}

func (rs *RestServer) handleSaved(c *gin.Context) {
	ctx, cancel := rs.requestContext(c)
	defer cancel()

	infos, err := rs.editor.Saved(ctx)
	if err != nil {
		rs.fail(c, err)
		return
	}
	ok(c, http.StatusOK, infos)
}

func (rs *RestServer) handleCreateVolume(c *gin.Context) {
	var req editor.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}
	ctx, cancel := rs.requestContext(c)
	defer cancel()

	info, err := rs.editor.CreateVolume(ctx, req)
	if err != nil {
		rs.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, info)
}

func (rs *RestServer) handleListVolumes(c *gin.Context) {
	ctx, cancel := rs.requestContext(c)
	defer cancel()

	infos, err := rs.editor.ListVolumes(ctx)
	if err != nil {
		rs.fail(c, err)
		return
	}
	ok(c, http.StatusOK, infos)
}

func (rs *RestServer) handleGetVolume(c *gin.Context) {
	id, valid := volumeID(c)
	if !valid {
		return
	}
	ctx, cancel := rs.requestContext(c)
	defer cancel()

	info, err := rs.editor.GetVolume(ctx, id)
	if err != nil {
		rs.fail(c, err)
		return
	}
	ok(c, http.StatusOK, info)
}

func (rs *RestServer) handleDeleteVolume(c *gin.Context) {
	id, valid := volumeID(c)
	if !valid {
		return
	}
	ctx, cancel := rs.requestContext(c)
	defer cancel()

	if err := rs.editor.DeleteVolume(ctx, id); err != nil {
		rs.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Объём удалён"})
}

// handleDraw мазок кисти
func (rs *RestServer) handleDraw(c *gin.Context) {
	id, valid := volumeID(c)
	if !valid {
		return
	}
	var body DrawBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}
	shape, err := world.ParseShape(body.Shape)
	if err != nil {
		rs.fail(c, err)
		return
	}
	ctx, cancel := rs.requestContext(c)
	defer cancel()

	resp, err := rs.editor.Draw(ctx, id, editor.DrawRequest{
		Position: mgl32.Vec3(body.Position),
		Shape:    shape,
		Radius:   body.Radius,
		Material: material.ID(body.Material),
		World:    body.World,
	})
	if err != nil {
		rs.fail(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}

func (rs *RestServer) handleUndo(c *gin.Context) {
	rs.volumeCommand(c, rs.editor.Undo)
}

func (rs *RestServer) handleRedo(c *gin.Context) {
	rs.volumeCommand(c, rs.editor.Redo)
}

func (rs *RestServer) handleClone(c *gin.Context) {
	rs.volumeCommand(c, rs.editor.CloneVolume)
}

func (rs *RestServer) handleLoad(c *gin.Context) {
	rs.volumeCommand(c, rs.editor.Load)
}

// volumeCommand общий обработчик команд без тела запроса
func (rs *RestServer) volumeCommand(c *gin.Context, cmd func(ctx context.Context, id uuid.UUID) (editor.VolumeInfo, error)) {
	id, valid := volumeID(c)
	if !valid {
		return
	}
	ctx, cancel := rs.requestContext(c)
	defer cancel()

	info, err := cmd(ctx, id)
	if err != nil {
		rs.fail(c, err)
		return
	}
	ok(c, http.StatusOK, info)
}

func (rs *RestServer) handleSetFlags(c *gin.Context) {
	id, valid := volumeID(c)
	if !valid {
		return
	}
	var flags world.Flags
	if err := c.ShouldBindJSON(&flags); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}
	ctx, cancel := rs.requestContext(c)
	defer cancel()

	info, err := rs.editor.SetFlags(ctx, id, flags)
	if err != nil {
		rs.fail(c, err)
		return
	}
	ok(c, http.StatusOK, info)
}

func (rs *RestServer) handleSetTransform(c *gin.Context) {
	id, valid := volumeID(c)
	if !valid {
		return
	}
	var body TransformBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}
	ctx, cancel := rs.requestContext(c)
	defer cancel()

	info, err := rs.editor.SetTransform(ctx, id, mgl32.Mat4(body.Matrix))
	if err != nil {
		rs.fail(c, err)
		return
	}
	ok(c, http.StatusOK, info)
}

func (rs *RestServer) handleRename(c *gin.Context) {
	id, valid := volumeID(c)
	if !valid {
		return
	}
	var body RenameBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}
	ctx, cancel := rs.requestContext(c)
	defer cancel()

	info, err := rs.editor.Rename(ctx, id, body.Name)
	if err != nil {
		rs.fail(c, err)
		return
	}
	ok(c, http.StatusOK, info)
}

func (rs *RestServer) handleSave(c *gin.Context) {
	id, valid := volumeID(c)
	if !valid {
		return
	}
	ctx, cancel := rs.requestContext(c)
	defer cancel()

	if err := rs.editor.Save(ctx, id); err != nil {
		rs.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Объём сохранён"})
}

func (rs *RestServer) handleStats(c *gin.Context) {
	id, valid := volumeID(c)
	if !valid {
		return
	}
	ctx, cancel := rs.requestContext(c)
	defer cancel()

	stats, err := rs.editor.Stats(ctx, id)
	if err != nil {
		rs.fail(c, err)
		return
	}
	ok(c, http.StatusOK, stats)
}

func (rs *RestServer) handleChunks(c *gin.Context) {
	id, valid := volumeID(c)
	if !valid {
		return
	}
	ctx, cancel := rs.requestContext(c)
	defer cancel()

	coords, err := rs.editor.ChunkCoords(ctx, id)
	if err != nil {
		rs.fail(c, err)
		return
	}
	refs := make([]chunkRef, len(coords))
	for i, coord := range coords {
		refs[i] = chunkRef{X: coord.X, Z: coord.Z}
	}
	ok(c, http.StatusOK, refs)
}

func (rs *RestServer) handleMeshes(c *gin.Context) {
	id, valid := volumeID(c)
	if !valid {
		return
	}
	ctx, cancel := rs.requestContext(c)
	defer cancel()

	meshes, err := rs.editor.ChunkMeshes(ctx, id)
	if err != nil {
		rs.fail(c, err)
		return
	}
	ok(c, http.StatusOK, meshes)
}

func (rs *RestServer) handleChunkMesh(c *gin.Context) {
	id, valid := volumeID(c)
	if !valid {
		return
	}
	cx, errX := strconv.Atoi(c.Param("cx"))
	cz, errZ := strconv.Atoi(c.Param("cz"))
	if errX != nil || errZ != nil {
		badRequest(c, "Неверные координаты чанка")
		return
	}
	ctx, cancel := rs.requestContext(c)
	defer cancel()

	m, err := rs.editor.ChunkMesh(ctx, id, vec.Vec2{X: cx, Z: cz})
	if err != nil {
		rs.fail(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// handleExportOBJ отдаёт объём файлом OBJ.
// Параметры: uvs=1, world=1, uv_scale=<float>.
func (rs *RestServer) handleExportOBJ(c *gin.Context) {
	id, valid := volumeID(c)
	if !valid {
		return
	}
	opts := export.Options{
		UVs:   c.Query("uvs") == "1" || c.Query("uvs") == "true",
		World: c.Query("world") == "1" || c.Query("world") == "true",
	}
	if raw := c.Query("uv_scale"); raw != "" {
		scale, err := strconv.ParseFloat(raw, 32)
		if err != nil || scale <= 0 || scale > 1 {
			badRequest(c, "uv_scale должен быть в (0, 1]")
			return
		}
		opts.UVScale = float32(scale)
	}
	ctx, cancel := rs.requestContext(c)
	defer cancel()

	// Буфер отпускает цикл редактора, не дожидаясь медленного клиента
	var buf bytes.Buffer
	sum, err := rs.editor.ExportOBJ(ctx, id, &buf, opts)
	if err != nil {
		rs.fail(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+id.String()+".obj\"")
	c.Header("X-Triangles", strconv.Itoa(sum.Triangles))
	c.Data(http.StatusOK, "model/obj", buf.Bytes())
}
