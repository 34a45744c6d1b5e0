package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig настройки хранилища в MongoDB
type MongoConfig struct {
	URI        string // mongodb://localhost:27017
	Database   string // voxel
	Collection string // volumes
}

type volumeDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Chunks    int       `bson:"chunks"`
	Bytes     int       `bson:"bytes"`
	Payload   []byte    `bson:"payload,omitempty"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoVolumeStore хранит объём одним документом коллекции
type MongoVolumeStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	codec      *codec
	logger     *logging.Logger
	mutex      sync.RWMutex
	isReady    bool
}

// NewMongoVolumeStore подключается к MongoDB и проверяет соединение
func NewMongoVolumeStore(ctx context.Context, cfg MongoConfig) (*MongoVolumeStore, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "voxel"
	}
	if cfg.Collection == "" {
		cfg.Collection = "volumes"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("MongoDB недоступна: %w", err)
	}

	c, err := newCodec()
	if err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	logger := logging.GetStorageLogger()
	logger.Info("Хранилище объёмов подключено к MongoDB %s/%s", cfg.Database, cfg.Collection)
	return &MongoVolumeStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		codec:      c,
		logger:     logger,
		isReady:    true,
	}, nil
}

// SaveVolume реализует VolumeRepo (upsert по _id)
func (s *MongoVolumeStore) SaveVolume(ctx context.Context, id uuid.UUID, data *world.VolumeData) (err error) {
	ctx, span := startSpan(ctx, "MongoVolumeStore.SaveVolume", id)
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
	info := newInfo(id, data, payload)
	doc := volumeDoc{
		ID:        id.String(),
		Name:      info.Name,
		Chunks:    info.Chunks,
		Bytes:     info.Bytes,
		Payload:   payload,
		UpdatedAt: info.UpdatedAt,
	}
	_, err = s.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("ошибка сохранения объёма %s в MongoDB: %w", id, err)
	}
	return nil
}

// LoadVolume реализует VolumeRepo
func (s *MongoVolumeStore) LoadVolume(ctx context.Context, id uuid.UUID) (_ *world.VolumeData, err error) {
	ctx, span := startSpan(ctx, "MongoVolumeStore.LoadVolume", id)
	defer func() { endSpan(span, err) }()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrStoreClosed
	}

	var doc volumeDoc
	err = s.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrVolumeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения объёма %s из MongoDB: %w", id, err)
	}
	return s.codec.decode(doc.Payload)
}

// DeleteVolume реализует VolumeRepo
func (s *MongoVolumeStore) DeleteVolume(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := startSpan(ctx, "MongoVolumeStore.DeleteVolume", id)
	defer func() { endSpan(span, err) }()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrStoreClosed
	}
	if _, err = s.collection.DeleteOne(ctx, bson.M{"_id": id.String()}); err != nil {
		return fmt.Errorf("ошибка удаления объёма %s из MongoDB: %w", id, err)
	}
	return nil
}

// ListVolumes реализует VolumeRepo. Данные объёмов не читаются.
func (s *MongoVolumeStore) ListVolumes(ctx context.Context) ([]VolumeInfo, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrStoreClosed
	}

	opts := options.Find().SetProjection(bson.M{"payload": 0}).SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка объёмов: %w", err)
	}
	defer cur.Close(ctx)

	infos := make([]VolumeInfo, 0)
	for cur.Next(ctx) {
		var doc volumeDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(doc.ID)
		if err != nil {
			s.logger.Warn("Некорректный _id в MongoDB: %q", doc.ID)
			continue
		}
		infos = append(infos, VolumeInfo{ID: id, Name: doc.Name, Chunks: doc.Chunks, Bytes: doc.Bytes, UpdatedAt: doc.UpdatedAt.UTC()})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	sortInfos(infos)
	return infos, nil
}

// Close отключается от MongoDB
func (s *MongoVolumeStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}
	s.isReady = false
	s.codec.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
