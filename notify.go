package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Notifier delivers a spoken notification to one owner. Fire-and-forget:
// implementations must not block the caller and no acknowledgment is
// expected. Delivery is always per-owner so one tenant's reminders never
// reach another tenant's channel.
type Notifier interface {
	Notify(ownerID, text string)
}

// logNotifier writes notifications to the log. The fallback sink when no
// channel is configured.
type logNotifier struct{}

func (logNotifier) Notify(ownerID, text string) {
	logInfo("notification", "owner", ownerID, "text", text)
}

// webhookNotifier POSTs {uid, text} to a TTS gateway; the client app
// speaks the text on arrival.
type webhookNotifier struct {
	url    string
	client *http.Client
}

func (n *webhookNotifier) Notify(ownerID, text string) {
	go func() {
		payload, _ := json.Marshal(map[string]string{"uid": ownerID, "text": text})
		resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(payload))
		if err != nil {
			logWarn("webhook notify failed", "owner", ownerID, "error", err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			logWarn("webhook notify failed", "owner", ownerID,
				"error", fmt.Sprintf("HTTP %d", resp.StatusCode))
		}
	}()
}

// multiNotifier fans out to several sinks. Failures are each sink's
// problem; the others still deliver.
type multiNotifier struct {
	sinks []Notifier
}

func (m *multiNotifier) Notify(ownerID, text string) {
	for _, s := range m.sinks {
		s.Notify(ownerID, text)
	}
}

// chanNotifier buffers notifications per owner for pickup over HTTP
// long-polling (GET /api/notifications). Oldest entries are dropped once
// the per-owner buffer is full.
type chanNotifier struct {
	mu      sync.Mutex
	pending map[string][]string
	max     int
}

func newChanNotifier() *chanNotifier {
	return &chanNotifier{pending: make(map[string][]string), max: 32}
}

func (c *chanNotifier) Notify(ownerID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := append(c.pending[ownerID], text)
	if len(q) > c.max {
		q = q[len(q)-c.max:]
	}
	c.pending[ownerID] = q
}

// Drain returns and clears the owner's queued notifications.
func (c *chanNotifier) Drain(ownerID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.pending[ownerID]
	delete(c.pending, ownerID)
	return q
}

// buildNotifier assembles the notification fan-out from config. The
// chanNotifier is always included so the HTTP surface can hand texts to
// the client's TTS.
func buildNotifier(cfg *Config, ch *chanNotifier) Notifier {
	sinks := []Notifier{ch}
	client := &http.Client{Timeout: 5 * time.Second}
	for _, nc := range cfg.Notifications {
		switch nc.Type {
		case "log":
			sinks = append(sinks, logNotifier{})
		case "webhook":
			if nc.WebhookURL != "" {
				sinks = append(sinks, &webhookNotifier{url: nc.WebhookURL, client: client})
			}
		default:
			logWarn("unknown notification type", "type", nc.Type)
		}
	}
	if len(sinks) == 1 {
		sinks = append(sinks, logNotifier{})
	}
	return &multiNotifier{sinks: sinks}
}
