package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	fail bool
	name string
}

func (f *fakeSender) Send(ctx context.Context, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("delivery failed")
	}
	f.sent = append(f.sent, title)
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAlertFansOutToAllSenders(t *testing.T) {
	a := &fakeSender{name: "a"}
	b := &fakeSender{name: "b"}
	n := NewNotifier([]Sender{a, b}, 0, discardLogger())

	err := n.Alert(context.Background(), "reversal", "title", "body")
	assert.NoError(t, err)
	assert.Len(t, a.sent, 1)
	assert.Len(t, b.sent, 1)
}

func TestAlertCooldownThrottlesPerKind(t *testing.T) {
	s := &fakeSender{name: "a"}
	n := NewNotifier([]Sender{s}, time.Hour, discardLogger())
	ctx := context.Background()

	assert.NoError(t, n.Alert(ctx, "reversal", "first", "body"))
	assert.NoError(t, n.Alert(ctx, "reversal", "second", "body"))
	assert.Len(t, s.sent, 1, "second alert of the same kind is throttled")

	// A different kind has its own cooldown.
	assert.NoError(t, n.Alert(ctx, "imbalance", "third", "body"))
	assert.Len(t, s.sent, 2)
}

func TestAlertCollectsSenderFailures(t *testing.T) {
	good := &fakeSender{name: "good"}
	bad := &fakeSender{name: "bad", fail: true}
	n := NewNotifier([]Sender{bad, good}, 0, discardLogger())

	err := n.Alert(context.Background(), "reversal", "title", "body")
	assert.Error(t, err)
	assert.Len(t, good.sent, 1, "one failing sender must not block the rest")
}

func TestAlertNoSendersIsNoop(t *testing.T) {
	n := NewNotifier(nil, time.Second, discardLogger())
	assert.NoError(t, n.Alert(context.Background(), "reversal", "t", "m"))
}
