package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/voxel-editor/internal/api"
	"github.com/annel0/voxel-editor/internal/config"
	"github.com/annel0/voxel-editor/internal/editor"
	"github.com/annel0/voxel-editor/internal/eventbus"
	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/material"
	"github.com/annel0/voxel-editor/internal/metrics"
	"github.com/annel0/voxel-editor/internal/observability"
	"github.com/annel0/voxel-editor/internal/storage"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или ENV VOXEL_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	if err := setupLogging(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Ошибка инициализации логирования: %v\n", err)
		os.Exit(1)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	if err := run(cfg); err != nil {
		logging.Error("❌ %v", err)
		os.Exit(1)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func setupLogging(cfg config.LoggingConfig) error {
	consoleLevel, err := logging.ParseLevel(cfg.ConsoleLevel)
	if err != nil {
		return err
	}
	fileLevel, err := logging.ParseLevel(cfg.FileLevel)
	if err != nil {
		return err
	}
	logging.GetLoggerManager().Configure(logging.Options{
		Dir:          cfg.Dir,
		ConsoleLevel: consoleLevel,
		FileLevel:    fileLevel,
	})
	return logging.InitDefaultLogger("server")
}

// openStore открывает хранилище из конфигурации; при ошибке откатывается на память
func openStore(ctx context.Context, cfg config.StorageConfig) (storage.VolumeRepo, error) {
	store, err := storage.Open(ctx, cfg)
	if err == nil {
		return store, nil
	}
	logging.Warn("⚠️ Хранилище %q недоступно (%v), используем хранилище в памяти", cfg.Backend, err)
	return storage.NewMemoryVolumeStore()
}

// openBus подключает NATS JetStream, если задан адрес, иначе шину в памяти
func openBus(cfg config.EventsConfig) eventbus.EventBus {
	if cfg.NATSURL == "" {
		return eventbus.NewMemoryBus(cfg.Buffer)
	}
	bus, err := eventbus.NewJetStreamBus(cfg.NATSURL, cfg.Stream, cfg.Retention)
	if err != nil {
		logging.Warn("⚠️ NATS недоступен (%v), лента изменений работает в памяти", err)
		return eventbus.NewMemoryBus(cfg.Buffer)
	}
	logging.Info("📨 Лента изменений публикуется в NATS JetStream (%s)", cfg.Stream)
	return bus
}

func loadMaterials(cfg config.MaterialsConfig) (*material.Table, error) {
	if cfg.Path == "" {
		return material.DefaultTable(), nil
	}
	return material.LoadTable(cfg.Path)
}

func run(cfg *config.Config) error {
	logging.Info("🧊 Запуск voxel-editor %s", config.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("телеметрия: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.Warn("Ошибка остановки телеметрии: %v", err)
		}
	}()

	table, err := loadMaterials(cfg.Materials)
	if err != nil {
		return err
	}
	logging.Debug("Загружено материалов: %d", table.Len())

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("хранилище: %w", err)
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	exporter := metrics.NewExporter(registry)

	bus := openBus(cfg.Events)
	defer bus.Close()
	feed := eventbus.NewChunkFeed(bus, cfg.Events.Buffer)
	go feed.Run(ctx)
	go eventbus.NewMetricsExporter(bus, registry).Run(ctx)
	if _, err := eventbus.StartLoggingListener(ctx, bus); err != nil {
		logging.Warn("Не удалось подписать логгер событий: %v", err)
	}

	svc := editor.NewService(editor.Options{
		Defaults: world.Flags{
			UseSmoothSurface: cfg.Editor.UseSmoothSurface,
			SmoothNormals:    cfg.Editor.SmoothNormals,
			SmoothGeometry:   cfg.Editor.SmoothGeometry,
			Subdivide:        cfg.Editor.Subdivide,
		},
		UndoDepth: cfg.Editor.GetUndoDepth(),
		QueueSize: cfg.Editor.CommandQueue,
		Materials: table,
		Store:     store,
		Observer:  world.Observers(exporter, feed),
	})

	editorDone := make(chan error, 1)
	go func() { editorDone <- svc.Run(ctx) }()

	httpPort := cfg.Server.GetHTTPPort()
	rest := api.NewRestServer(api.Config{
		Port:        fmt.Sprintf(":%d", httpPort),
		Editor:      svc,
		Bus:         bus,
		Registry:    registry,
		ServiceName: "voxel_editor",
	})
	restDone := make(chan error, 1)
	go func() { restDone <- rest.Start() }()

	// Отдельный порт метрик для Prometheus scrape
	var metricsServer *http.Server
	if metricsPort := cfg.Server.GetMetricsPort(); metricsPort != httpPort {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: fmt.Sprintf(":%d", metricsPort), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("❌ Сервер метрик: %v", err)
			}
		}()
		logging.Info("   📈 Метрики: http://localhost:%d/metrics", metricsPort)
	}

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost:%d/api/volumes", httpPort)
	logging.Info("   ❤️  Health check: http://localhost:%d/health", httpPort)

	var runErr error
	select {
	case <-ctx.Done():
		logging.Info("📡 Получен сигнал завершения, останавливаем сервисы...")
	case runErr = <-restDone:
		if runErr != nil {
			runErr = fmt.Errorf("REST API: %w", runErr)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logging.Debug("Остановка REST API...")
	if err := rest.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}

	logging.Debug("Остановка редактора...")
	if err := <-editorDone; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error("❌ Редактор завершился с ошибкой: %v", err)
	}
	return runErr
}
