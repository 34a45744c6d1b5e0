package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/annel0/voxel-editor/internal/editor"
	"github.com/annel0/voxel-editor/internal/eventbus"
	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/middleware"
	"github.com/annel0/voxel-editor/internal/storage"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer представляет REST API редактора
type RestServer struct {
	router  *gin.Engine
	server  *http.Server
	editor  *editor.Service
	bus     eventbus.EventBus
	metrics *ServerMetrics
	logger  *logging.Logger
	timeout time.Duration
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port   string          // адрес для запуска сервера, по умолчанию ":8088"
	Editor *editor.Service // сервис редактора
	// Bus шина ленты изменений для /api/events; nil отключает ленту
	Bus eventbus.EventBus
	// Registry регистр HTTP-метрик и источник для /metrics. nil означает
	// регистр по умолчанию.
	Registry *prometheus.Registry
	// ServiceName имя сервиса для otelgin и пространства имён метрик
	ServiceName string
	// RequestTimeout ограничение на одну команду редактора
	RequestTimeout time.Duration
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.ServiceName == "" {
		config.ServiceName = "voxel_editor"
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}

	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if config.Registry != nil {
		reg, gatherer = config.Registry, config.Registry
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware(config.ServiceName))
	router.Use(middleware.NewRequestLogger(nil).Handler())

	promMw := middleware.NewPrometheusMiddleware(config.ServiceName, reg)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, gatherer)

	rs := &RestServer{
		router:  router,
		editor:  config.Editor,
		bus:     config.Bus,
		metrics: NewServerMetrics(),
		logger:  logging.GetAPILogger(),
		timeout: config.RequestTimeout,
	}
	// Отмена базового контекста при Shutdown закрывает потоки /api/events
	baseCtx, cancelBase := context.WithCancel(context.Background())
	rs.server = &http.Server{
		Addr:              config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	rs.server.RegisterOnShutdown(cancelBase)

	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// CORS для браузерного клиента
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	api.GET("/status", rs.handleStatus)
	api.GET("/templates", rs.handleTemplates)
	api.GET("/materials", rs.handleMaterials)
	api.GET("/saved", rs.handleSaved)
	api.GET("/events", rs.handleEvents)

	volumes := api.Group("/volumes")
	{
		volumes.POST("", rs.handleCreateVolume)
		volumes.GET("", rs.handleListVolumes)
		volumes.GET("/:id", rs.handleGetVolume)
		volumes.DELETE("/:id", rs.handleDeleteVolume)

		volumes.POST("/:id/draw", rs.handleDraw)
		volumes.POST("/:id/undo", rs.handleUndo)
		volumes.POST("/:id/redo", rs.handleRedo)
		volumes.PUT("/:id/flags", rs.handleSetFlags)
		volumes.PUT("/:id/transform", rs.handleSetTransform)
		volumes.PUT("/:id/name", rs.handleRename)
		volumes.POST("/:id/clone", rs.handleClone)
		volumes.POST("/:id/save", rs.handleSave)
		volumes.POST("/:id/load", rs.handleLoad)

		volumes.GET("/:id/stats", rs.handleStats)
		volumes.GET("/:id/chunks", rs.handleChunks)
		volumes.GET("/:id/meshes", rs.handleMeshes)
		volumes.GET("/:id/chunks/:cx/:cz/mesh", rs.handleChunkMesh)
		volumes.GET("/:id/export.obj", rs.handleExportOBJ)
	}
}

// Handler возвращает http.Handler сервера
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает REST сервер и блокируется до Stop
func (rs *RestServer) Start() error {
	rs.logger.Info("REST API слушает %s", rs.server.Addr)
	if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop останавливает REST сервер, дожидаясь завершения активных запросов
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.server.Shutdown(ctx)
}

// requestContext контекст команды редактора с ограничением по времени
func (rs *RestServer) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), rs.timeout)
}

// statusFor сопоставляет ошибку домена HTTP-статусу
func statusFor(err error) int {
	switch {
	case errors.Is(err, editor.ErrVolumeNotFound),
		errors.Is(err, editor.ErrChunkNotFound),
		errors.Is(err, storage.ErrVolumeNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrNothingToUndo),
		errors.Is(err, editor.ErrNothingToRedo):
		return http.StatusConflict
	case errors.Is(err, editor.ErrUnknownTemplate),
		errors.Is(err, editor.ErrUnknownMaterial),
		errors.Is(err, editor.ErrInvalidTransform),
		errors.Is(err, world.ErrInvalidCoordinate),
		errors.Is(err, world.ErrInvalidRadius),
		errors.Is(err, world.ErrUnknownShape):
		return http.StatusBadRequest
	case errors.Is(err, editor.ErrNoStore),
		errors.Is(err, editor.ErrServiceStopped),
		errors.Is(err, eventbus.ErrBusClosed),
		errors.Is(err, storage.ErrStoreClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail отвечает ошибкой и прикрепляет её к контексту для логгера
func (rs *RestServer) fail(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	c.JSON(status, GenericResponse{Success: false, Message: err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: message})
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, GenericResponse{Success: true, Data: data})
}
