package eventbus

import (
	"context"
	"sync"
	"time"
)

// Envelope описывает универсальный контейнер события.
type Envelope struct {
	ID        string            `json:"id"`         // Глобально уникальный идентификатор (UUID).
	Timestamp time.Time         `json:"timestamp"`  // Время создания события (UTC).
	Source    string            `json:"source"`     // Имя сервиса-источника.
	EventType string            `json:"event_type"` // Тип события (chunk.rebuilt…).
	Version   int               `json:"version"`    // Схема полезной нагрузки.
	Priority  int               `json:"priority"`   // 0=Low … 9=Critical (для backpressure).
	Payload   []byte            `json:"payload"`    // Сериализованный JSON.
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// HighPriority порог, с которого события не отбрасываются при переполнении
const HighPriority = 5

// Filter позволяет подписаться только на нужные события.
type Filter struct {
	Types    []string          // Если пусто, все типы.
	Sources  []string          // Если пусто, все источники.
	Metadata map[string]string // Все пары должны совпасть.
}

// Subscription возвращается при подписке; позволяет отписаться.
type Subscription interface {
	Unsubscribe()
}

// Handler потребляет события.
type Handler func(ctx context.Context, ev *Envelope)

// Stats агрегированные метрики шины.
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
}

// EventBus определяет абстракцию шины событий.
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}

//================ In-Memory implementation =================//

// memoryBus доставляет события каждому подписчику через собственную очередь,
// поэтому порядок событий для одного подписчика сохраняется.
type memoryBus struct {
	mu          sync.RWMutex
	subscribers map[int]*subscriber
	nextID      int
	stats       Stats
	capacity    int
	closed      bool
}

type subscriber struct {
	filter  Filter
	handler Handler
	queue   chan *Envelope
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMemoryBus создаёт in-memory Bus с очередью capacity на подписчика.
func NewMemoryBus(capacity int) EventBus {
	if capacity <= 0 {
		capacity = 256
	}
	return &memoryBus{
		subscribers: make(map[int]*subscriber),
		capacity:    capacity,
	}
}

func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	mb.mu.RLock()
	if mb.closed {
		mb.mu.RUnlock()
		return ErrBusClosed
	}
	subs := make([]*subscriber, 0, len(mb.subscribers))
	for _, sub := range mb.subscribers {
		if matchFilter(ev, sub.filter) {
			subs = append(subs, sub)
		}
	}
	mb.mu.RUnlock()

	var dropped uint64
	for _, sub := range subs {
		select {
		case sub.queue <- ev:
			continue
		case <-sub.ctx.Done():
			continue
		default:
		}
		// Очередь заполнена: низкий приоритет отбрасываем
		if ev.Priority < HighPriority {
			dropped++
			continue
		}
		// Для High-priority блокируем до освобождения места или отмены контекста
		select {
		case sub.queue <- ev:
		case <-sub.ctx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	mb.mu.Lock()
	mb.stats.Published++
	mb.stats.Dropped += dropped
	mb.mu.Unlock()
	return nil
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return nil, ErrBusClosed
	}

	cctx, cancel := context.WithCancel(ctx)
	sub := &subscriber{
		filter:  f,
		handler: h,
		queue:   make(chan *Envelope, mb.capacity),
		ctx:     cctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	id := mb.nextID
	mb.nextID++
	mb.subscribers[id] = sub
	go mb.deliver(id, sub)

	return &memSub{bus: mb, id: id}, nil
}

// deliver вызывает handler для событий подписчика до его отмены
func (mb *memoryBus) deliver(id int, sub *subscriber) {
	defer close(sub.done)
	defer mb.remove(id)
	for {
		select {
		case <-sub.ctx.Done():
			return
		case ev := <-sub.queue:
			sub.handler(sub.ctx, ev)
			mb.mu.Lock()
			mb.stats.Consumed++
			mb.mu.Unlock()
		}
	}
}

func (mb *memoryBus) remove(id int) {
	mb.mu.Lock()
	delete(mb.subscribers, id)
	mb.mu.Unlock()
}

func (mb *memoryBus) Metrics() Stats {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	s := mb.stats
	for _, sub := range mb.subscribers {
		s.InFlight += len(sub.queue)
	}
	return s
}

// Close отменяет все подписки и дожидается их обработчиков
func (mb *memoryBus) Close() error {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return nil
	}
	mb.closed = true
	subs := make([]*subscriber, 0, len(mb.subscribers))
	for _, sub := range mb.subscribers {
		subs = append(subs, sub)
	}
	mb.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
		<-sub.done
	}
	return nil
}

func matchFilter(ev *Envelope, f Filter) bool {
	match := func(val string, arr []string) bool {
		if len(arr) == 0 {
			return true
		}
		for _, v := range arr {
			if v == val {
				return true
			}
		}
		return false
	}
	for k, v := range f.Metadata {
		if ev.Metadata[k] != v {
			return false
		}
	}
	return match(ev.EventType, f.Types) && match(ev.Source, f.Sources)
}

type memSub struct {
	bus *memoryBus
	id  int
}

func (s *memSub) Unsubscribe() {
	s.bus.mu.RLock()
	sub, ok := s.bus.subscribers[s.id]
	s.bus.mu.RUnlock()
	if ok {
		sub.cancel()
	}
}
