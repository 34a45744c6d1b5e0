package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Version версия сборки редактора
const Version = "0.3.0"

// Config корневая структура конфигурации редактора.
type Config struct {
	Editor    EditorConfig    `yaml:"editor"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Materials MaterialsConfig `yaml:"materials"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Events    EventsConfig    `yaml:"events"`
}

// EditorConfig режимы построения поверхности для новых объёмов и глубина отмены
type EditorConfig struct {
	UseSmoothSurface bool `yaml:"use_smooth_surface"`
	SmoothNormals    bool `yaml:"smooth_normals"`
	SmoothGeometry   bool `yaml:"smooth_geometry"`
	Subdivide        bool `yaml:"subdivide"`
	UndoDepth        int  `yaml:"undo_depth"`
	CommandQueue     int  `yaml:"command_queue"`
}

// StorageConfig выбор хранилища объёмов: badger (по умолчанию), memory,
// redis, maria или mongo
type StorageConfig struct {
	Backend  string      `yaml:"backend"`
	Path     string      `yaml:"path"`
	InMemory bool        `yaml:"in_memory"`
	Redis    RedisConfig `yaml:"redis"`
	Maria    MariaConfig `yaml:"maria"`
	Mongo    MongoConfig `yaml:"mongo"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type MariaConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// EventsConfig лента изменений чанков. Пустой NATSURL означает шину в памяти.
type EventsConfig struct {
	NATSURL   string        `yaml:"nats_url"`
	Stream    string        `yaml:"stream"`
	Retention time.Duration `yaml:"retention"`
	Buffer    int           `yaml:"buffer"`
}

type ServerConfig struct {
	HTTPPort    int `yaml:"http_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
}

// MaterialsConfig путь к YAML таблице материалов; пустой путь означает таблицу по умолчанию
type MaterialsConfig struct {
	Path string `yaml:"path"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Editor: EditorConfig{
			UndoDepth:    64,
			CommandQueue: 128,
		},
		Storage: StorageConfig{
			Backend: "badger",
			Path:    "data/volumes",
		},
		Logging: LoggingConfig{
			Dir:          "logs",
			ConsoleLevel: "INFO",
			FileLevel:    "DEBUG",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "voxel-editor",
		},
		Events: EventsConfig{
			Stream:    "VOXEL",
			Retention: time.Hour,
			Buffer:    1024,
		},
	}
}

// GetHTTPPort возвращает порт REST API с поддержкой fallback значений
func (s *ServerConfig) GetHTTPPort() int {
	return getPortWithEnvFallback(s.HTTPPort, "VOXEL_HTTP_PORT", 8088)
}

// GetMetricsPort возвращает порт Prometheus метрик с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "VOXEL_METRICS_PORT", 2112)
}

// GetUndoDepth возвращает глубину истории отмены (минимум 1)
func (e *EditorConfig) GetUndoDepth() int {
	if e.UndoDepth < 1 {
		return 1
	}
	return e.UndoDepth
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать путь из ENV VOXEL_CONFIG,
// иначе возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("VOXEL_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать конфигурацию %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("некорректная конфигурация %s: %w", path, err)
	}

	return cfg, nil
}
