package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// MariaConfig настройки хранилища в MariaDB/MySQL
type MariaConfig struct {
	// DSN строка подключения (user:pass@tcp(host:port)/dbname)
	DSN string
	// Table имя таблицы, по умолчанию voxel_volumes
	Table string
}

// MariaVolumeStore реализует VolumeRepo для базы данных MariaDB/MySQL.
// Объём хранится одной строкой: описание в колонках, данные в LONGBLOB.
type MariaVolumeStore struct {
	db      *sql.DB
	table   string
	codec   *codec
	logger  *logging.Logger
	mutex   sync.RWMutex
	isReady bool
}

// NewMariaVolumeStore подключается к базе и создаёт таблицу при необходимости
func NewMariaVolumeStore(ctx context.Context, cfg MariaConfig) (*MariaVolumeStore, error) {
	if cfg.Table == "" {
		cfg.Table = "voxel_volumes"
	}
	if !tableNameRe.MatchString(cfg.Table) {
		return nil, fmt.Errorf("недопустимое имя таблицы: %q", cfg.Table)
	}

	// updated_at читается в time.Time и хранится в UTC
	dsn, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("некорректный DSN MariaDB: %w", err)
	}
	dsn.ParseTime = true
	dsn.Loc = time.UTC

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	c, err := newCodec()
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &MariaVolumeStore{
		db:      db,
		table:   cfg.Table,
		codec:   c,
		logger:  logging.GetStorageLogger(),
		isReady: true,
	}
	if err := s.createTable(ctx); err != nil {
		s.Close()
		return nil, err
	}
	s.logger.Info("Хранилище объёмов подключено к MariaDB (таблица %s)", cfg.Table)
	return s, nil
}

func (s *MariaVolumeStore) createTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         CHAR(36)     PRIMARY KEY,
			name       VARCHAR(255) NOT NULL,
			chunks     INT          NOT NULL,
			bytes      INT          NOT NULL,
			payload    LONGBLOB     NOT NULL,
			updated_at DATETIME(6)  NOT NULL
		) ENGINE=InnoDB
	`, s.table)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ошибка создания таблицы %s: %w", s.table, err)
	}
	return nil
}

// SaveVolume реализует VolumeRepo.
// Использует INSERT ... ON DUPLICATE KEY UPDATE для перезаписи.
func (s *MariaVolumeStore) SaveVolume(ctx context.Context, id uuid.UUID, data *world.VolumeData) (err error) {
	ctx, span := startSpan(ctx, "MariaVolumeStore.SaveVolume", id)
	defer func() { endSpan(span, err) }()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrStoreClosed
	}
	if data == nil {
		return fmt.Errorf("пустые данные объёма %s", id)
	}

	payload, err := s.codec.encode(data)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, chunks, bytes, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			chunks = VALUES(chunks),
			bytes = VALUES(bytes),
			payload = VALUES(payload),
			updated_at = VALUES(updated_at)
	`, s.table)

	info := newInfo(id, data, payload)
	if _, err = s.db.ExecContext(ctx, query, id.String(), info.Name, info.Chunks, info.Bytes, payload, info.UpdatedAt); err != nil {
		return fmt.Errorf("ошибка сохранения объёма %s: %w", id, err)
	}
	return nil
}

// LoadVolume реализует VolumeRepo
func (s *MariaVolumeStore) LoadVolume(ctx context.Context, id uuid.UUID) (_ *world.VolumeData, err error) {
	ctx, span := startSpan(ctx, "MariaVolumeStore.LoadVolume", id)
	defer func() { endSpan(span, err) }()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrStoreClosed
	}

	var payload []byte
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE id = ?`, s.table)
	err = s.db.QueryRowContext(ctx, query, id.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrVolumeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки объёма %s: %w", id, err)
	}
	return s.codec.decode(payload)
}

// DeleteVolume реализует VolumeRepo
func (s *MariaVolumeStore) DeleteVolume(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := startSpan(ctx, "MariaVolumeStore.DeleteVolume", id)
	defer func() { endSpan(span, err) }()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrStoreClosed
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table)
	if _, err = s.db.ExecContext(ctx, query, id.String()); err != nil {
		return fmt.Errorf("ошибка удаления объёма %s: %w", id, err)
	}
	return nil
}

// ListVolumes реализует VolumeRepo
func (s *MariaVolumeStore) ListVolumes(ctx context.Context) ([]VolumeInfo, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrStoreClosed
	}

	query := fmt.Sprintf(`SELECT id, name, chunks, bytes, updated_at FROM %s ORDER BY id`, s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка объёмов: %w", err)
	}
	defer rows.Close()

	infos := make([]VolumeInfo, 0)
	for rows.Next() {
		var (
			raw  string
			info VolumeInfo
		)
		if err := rows.Scan(&raw, &info.Name, &info.Chunks, &info.Bytes, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки: %w", err)
		}
		if info.ID, err = uuid.Parse(raw); err != nil {
			return nil, fmt.Errorf("некорректный ID %q: %w", raw, err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortInfos(infos)
	return infos, nil
}

// Close закрывает соединение с базой
func (s *MariaVolumeStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}
	s.isReady = false
	s.codec.close()
	return s.db.Close()
}
