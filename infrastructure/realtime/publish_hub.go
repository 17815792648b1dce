package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"crosspost/domain/model"

	"github.com/gin-gonic/gin"
)

// PublishEvent is the SSE payload sent when a publish report is ready.
type PublishEvent struct {
	Type      string                `json:"type"`
	ReportID  string                `json:"report_id"`
	Succeeded int                   `json:"succeeded"`
	Total     int                   `json:"total"`
	Results   []model.PublishResult `json:"results"`
}

// Hub maintains per-user subscribers listening for publish reports.
type Hub struct {
	mu    sync.RWMutex
	users map[string]map[chan PublishEvent]struct{}
}

func NewPublishHub() *Hub {
	return &Hub{users: make(map[string]map[chan PublishEvent]struct{})}
}

// Serve registers an SSE stream for the authenticated user (user_id set by middleware).
func (h *Hub) Serve(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	ch := make(chan PublishEvent, 8)
	h.addSubscriber(userID, ch)
	defer h.removeSubscriber(userID, ch)

	_, _ = c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case evt := <-ch:
			data, _ := json.Marshal(evt)
			_, _ = c.Writer.Write([]byte("event: " + evt.Type + "\n"))
			_, _ = c.Writer.Write([]byte("data: "))
			_, _ = c.Writer.Write(data)
			_, _ = c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

func (h *Hub) addSubscriber(userID string, ch chan PublishEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[chan PublishEvent]struct{})
	}
	h.users[userID][ch] = struct{}{}
}

func (h *Hub) removeSubscriber(userID string, ch chan PublishEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.users[userID]; subs != nil {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.users, userID)
		}
	}
}

// Notify broadcasts the report to the owner's subscribers. Slow subscribers miss events.
func (h *Hub) Notify(_ context.Context, report *model.PublishReport) error {
	if report == nil {
		return nil
	}
	evt := PublishEvent{
		Type:      "publish_report",
		ReportID:  report.ID,
		Succeeded: report.Succeeded(),
		Total:     len(report.Results),
		Results:   report.Results,
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.users[report.UserID] {
		select { // non-blocking
		case ch <- evt:
		default:
		}
	}
	return nil
}
