// Package notify delivers signal alerts to external channels (Telegram,
// Discord). Alerts are throttled per signal kind so a burst of detections
// inside one window does not flood operators.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans alerts out to every configured sender, enforcing a minimum
// interval between alerts of the same kind.
type Notifier struct {
	senders  []Sender
	cooldown time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewNotifier creates a Notifier. A zero cooldown disables throttling.
func NewNotifier(senders []Sender, cooldown time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders:  senders,
		cooldown: cooldown,
		logger:   logger.With(slog.String("component", "notifier")),
		lastSent: make(map[string]time.Time),
	}
}

// Alert delivers one alert of the given kind, dropping it silently when the
// kind is still inside its cooldown. Returns the combined sender errors, if
// any.
func (n *Notifier) Alert(ctx context.Context, kind, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}
	if !n.allow(kind) {
		n.logger.DebugContext(ctx, "alert throttled", slog.String("kind", kind))
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "alert sent",
			slog.String("sender", s.Name()),
			slog.String("kind", kind),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// allow records the attempt and reports whether the kind is outside its
// cooldown window.
func (n *Notifier) allow(kind string) bool {
	if n.cooldown <= 0 {
		return true
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now()
	if last, ok := n.lastSent[kind]; ok && now.Sub(last) < n.cooldown {
		return false
	}
	n.lastSent[kind] = now
	return true
}

// postJSON is shared by the HTTP-backed senders.
func postJSON(ctx context.Context, client *http.Client, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
