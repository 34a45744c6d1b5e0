package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/annel0/voxel-editor/internal/editor"
	"github.com/annel0/voxel-editor/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, store storage.VolumeRepo) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := editor.NewService(editor.Options{Store: store})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	rs := NewRestServer(Config{Editor: svc, Registry: prometheus.NewRegistry()})
	return rs.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func createVolume(t *testing.T, h http.Handler, req editor.CreateRequest) editor.VolumeInfo {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/volumes", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var info editor.VolumeInfo
	env := decode(t, w, &info)
	require.True(t, env.Success)
	return info
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil)
	w := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get("X-Trace-Id"))
}

func TestVolumeLifecycle(t *testing.T) {
	h := newTestServer(t, nil)

	info := createVolume(t, h, editor.CreateRequest{Name: "куб", Template: "cube"})
	assert.Equal(t, "куб", info.Name)
	assert.Equal(t, 512, info.Stats.Voxels)
	base := "/api/volumes/" + info.ID.String()

	var list []editor.VolumeInfo
	decode(t, do(t, h, http.MethodGet, "/api/volumes", nil), &list)
	require.Len(t, list, 1)

	w := do(t, h, http.MethodPut, base+"/name", RenameBody{Name: "новое"})
	require.Equal(t, http.StatusOK, w.Code)
	var got editor.VolumeInfo
	decode(t, do(t, h, http.MethodGet, base, nil), &got)
	assert.Equal(t, "новое", got.Name)

	w = do(t, h, http.MethodPost, base+"/clone", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var clone editor.VolumeInfo
	decode(t, w, &clone)
	assert.NotEqual(t, info.ID, clone.ID)
	assert.Equal(t, 512, clone.Stats.Voxels)

	w = do(t, h, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, base, nil).Code)

	var status StatusReport
	decode(t, do(t, h, http.MethodGet, "/api/status", nil), &status)
	assert.Equal(t, 1, status.Volumes)
	assert.NotEmpty(t, status.Uptime)
}

func TestDrawUndoRedo(t *testing.T) {
	h := newTestServer(t, nil)
	info := createVolume(t, h, editor.CreateRequest{})
	base := "/api/volumes/" + info.ID.String()

	w := do(t, h, http.MethodPost, base+"/draw", DrawBody{Position: [3]float32{20, 0, 20}, Shape: "cube", Radius: 1, Material: 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp editor.DrawResponse
	decode(t, w, &resp)
	assert.Equal(t, 8, resp.Changed)
	assert.Equal(t, 8, resp.Stats.Voxels)

	w = do(t, h, http.MethodPost, base+"/undo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var after editor.VolumeInfo
	decode(t, w, &after)
	assert.Zero(t, after.Stats.Voxels)
	assert.Equal(t, 1, after.RedoDepth)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, base+"/redo", nil).Code)
	w = do(t, h, http.MethodPost, base+"/redo", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w, nil)
	assert.False(t, env.Success)
	assert.Equal(t, editor.ErrNothingToRedo.Error(), env.Message)
}

func TestDrawValidation(t *testing.T) {
	h := newTestServer(t, nil)
	info := createVolume(t, h, editor.CreateRequest{})
	base := "/api/volumes/" + info.ID.String()

	cases := map[string]DrawBody{
		"неизвестная форма":    {Shape: "torus", Radius: 1, Material: 1},
		"нулевой радиус":       {Shape: "sphere", Radius: 0, Material: 1},
		"огромный радиус":      {Shape: "cube", Radius: 1 << 20, Material: 1},
		"неизвестный материал": {Shape: "sphere", Radius: 1, Material: 200},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, base+"/draw", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/volumes/not-a-uuid/draw", DrawBody{}).Code)
	assert.Equal(t, http.StatusNotFound,
		do(t, h, http.MethodPost, "/api/volumes/00000000-0000-0000-0000-000000000001/draw",
			DrawBody{Shape: "cube", Radius: 1, Material: 1}).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(t, h, http.MethodPost, "/api/volumes", nil).Code, "пустое тело")
	assert.Equal(t, http.StatusBadRequest,
		do(t, h, http.MethodPost, "/api/volumes", editor.CreateRequest{Template: "castle"}).Code)
}

func TestFlagsAndTransform(t *testing.T) {
	h := newTestServer(t, nil)
	info := createVolume(t, h, editor.CreateRequest{Template: "cube"})
	base := "/api/volumes/" + info.ID.String()

	w := do(t, h, http.MethodPut, base+"/flags", map[string]bool{"use_smooth_surface": true})
	require.Equal(t, http.StatusOK, w.Code)
	var got editor.VolumeInfo
	decode(t, w, &got)
	assert.True(t, got.Flags.UseSmoothSurface)
	assert.Positive(t, got.Stats.Triangles)

	w = do(t, h, http.MethodPut, base+"/transform", TransformBody{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "вырожденная матрица")

	ident := TransformBody{Matrix: [16]float32{2, 0, 0, 0, 0, 2, 0, 0, 0, 0, 2, 0, 5, 0, 0, 1}}
	w = do(t, h, http.MethodPut, base+"/transform", ident)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &got)
	assert.Equal(t, ident.Matrix, got.Transform)
}

func TestChunksAndMeshes(t *testing.T) {
	h := newTestServer(t, nil)
	info := createVolume(t, h, editor.CreateRequest{Template: "cube"})
	base := "/api/volumes/" + info.ID.String()

	var refs []chunkRef
	decode(t, do(t, h, http.MethodGet, base+"/chunks", nil), &refs)
	assert.Equal(t, []chunkRef{{-1, -1}, {-1, 0}, {0, -1}, {0, 0}}, refs)

	var m editor.ChunkMesh
	w := do(t, h, http.MethodGet, base+"/chunks/0/0/mesh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &m)
	assert.Equal(t, 0, m.X)
	assert.NotEmpty(t, m.Indices)
	assert.Len(t, m.Materials, len(m.Positions)/3)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, base+"/chunks/40/40/mesh", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, base+"/chunks/x/0/mesh", nil).Code)

	var meshes []editor.ChunkMesh
	decode(t, do(t, h, http.MethodGet, base+"/meshes", nil), &meshes)
	assert.Len(t, meshes, 4)

	var stats struct {
		Chunks int `json:"chunks"`
	}
	decode(t, do(t, h, http.MethodGet, base+"/stats", nil), &stats)
	assert.Equal(t, 4, stats.Chunks)
}

func TestExportOBJ(t *testing.T) {
	h := newTestServer(t, nil)
	info := createVolume(t, h, editor.CreateRequest{Name: "obj", Template: "cube"})
	base := "/api/volumes/" + info.ID.String()

	w := do(t, h, http.MethodGet, base+"/export.obj?uvs=1&uv_scale=0.5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "model/obj", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "# voxel-editor: obj\n"))
	assert.Contains(t, w.Body.String(), "\nvt ")
	assert.NotEqual(t, "0", w.Header().Get("X-Triangles"))

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, base+"/export.obj?uv_scale=2", nil).Code)
}

func TestSaveLoad(t *testing.T) {
	store, err := storage.NewMemoryVolumeStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := newTestServer(t, store)
	info := createVolume(t, h, editor.CreateRequest{Name: "сохранённый", Template: "sphere"})
	base := "/api/volumes/" + info.ID.String()

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, base+"/save", nil).Code)

	var saved []storage.VolumeInfo
	decode(t, do(t, h, http.MethodGet, "/api/saved", nil), &saved)
	require.Len(t, saved, 1)
	assert.Equal(t, info.ID, saved[0].ID)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodDelete, base, nil).Code)

	w := do(t, h, http.MethodPost, base+"/load", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var loaded editor.VolumeInfo
	decode(t, w, &loaded)
	assert.Equal(t, info.Stats, loaded.Stats)
	assert.Equal(t, "сохранённый", loaded.Name)

	assert.Equal(t, http.StatusNotFound,
		do(t, h, http.MethodPost, "/api/volumes/00000000-0000-0000-0000-000000000002/load", nil).Code)
}

func TestSaveWithoutStore(t *testing.T) {
	h := newTestServer(t, nil)
	info := createVolume(t, h, editor.CreateRequest{})

	w := do(t, h, http.MethodPost, "/api/volumes/"+info.ID.String()+"/save", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/saved", nil).Code)
}

func TestCatalogs(t *testing.T) {
	h := newTestServer(t, nil)

	var names []string
	decode(t, do(t, h, http.MethodGet, "/api/templates", nil), &names)
	assert.Equal(t, editor.Templates(), names)

	var catalog struct {
		Materials []MaterialEntry `json:"materials"`
		Palette   []byte          `json:"palette"`
	}
	decode(t, do(t, h, http.MethodGet, "/api/materials", nil), &catalog)
	require.Len(t, catalog.Materials, 6)
	assert.Equal(t, uint8(1), catalog.Materials[0].ID)
	assert.Equal(t, "stone", catalog.Materials[0].Name)
	assert.Len(t, catalog.Palette, 256*4)

	w := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "voxel_editor_http_request_duration_seconds")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(storage.ErrVolumeNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(editor.ErrServiceStopped))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
