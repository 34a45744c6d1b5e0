package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/annel0/voxel-editor/internal/eventbus"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const heartbeatInterval = 15 * time.Second

// handleEvents отдаёт ленту изменений чанков как Server-Sent Events.
// Параметры: volume=<uuid> ограничивает ленту одним объёмом,
// types=chunk.rebuilt,chunk.removed выбирает типы событий.
// Если клиент не успевает читать, низкоприоритетные события отбрасываются.
func (rs *RestServer) handleEvents(c *gin.Context) {
	if rs.bus == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{Success: false, Message: "Лента изменений отключена"})
		return
	}

	var filter eventbus.Filter
	if raw := c.Query("volume"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "Неверный идентификатор объёма")
			return
		}
		filter.Metadata = map[string]string{eventbus.MetaVolume: id.String()}
	}
	if raw := c.Query("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Types = append(filter.Types, t)
			}
		}
	}

	ctx := c.Request.Context()
	events := make(chan *eventbus.Envelope, 64)
	sub, err := rs.bus.Subscribe(ctx, filter, func(_ context.Context, ev *eventbus.Envelope) {
		select {
		case events <- ev:
		default:
		}
	})
	if err != nil {
		rs.fail(c, err)
		return
	}
	defer sub.Unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("ready", gin.H{"types": filter.Types, "volume": c.Query("volume")})
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-events:
			c.SSEvent(ev.EventType, json.RawMessage(ev.Payload))
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}
