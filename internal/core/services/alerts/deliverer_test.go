package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
)

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []domain.Notification
	fails map[string]bool
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Notify(ctx context.Context, note domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fails[note.User.ID] {
		return errors.New("endpoint down")
	}
	n.sent = append(n.sent, note)
	return nil
}

func TestDeliverer_Run(t *testing.T) {
	e := newEnv(t, 2, 10)
	p := e.product(t, "acme", "cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*")
	for _, id := range []string{"u1", "u2"} {
		e.user(t, id)
		require.NoError(t, e.store.FollowVendor(e.ctx, id, p.VendorID))
	}
	e.change(t, "c1", "r1", p.Name)
	e.change(t, "c2", "r1", p.Name)
	_, err := e.dispatcher.Run(e.ctx)
	require.NoError(t, err)

	notifier := &recordingNotifier{fails: map[string]bool{"u2": true}}
	d := NewDeliverer(e.store, e.store, e.store, notifier, logger.Nop())

	res, err := d.Run(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delivered)
	assert.Len(t, res.Errors, 1)

	require.Len(t, notifier.sent, 1)
	note := notifier.sent[0]
	assert.Equal(t, "u1", note.User.ID)
	assert.Equal(t, "r1", note.ReportID)
	assert.Len(t, note.Alerts, 2)
	assert.Len(t, note.CVEs, 2)
	assert.Len(t, note.Changes, 2)

	// u1 is done, u2 is retried.
	notifier.fails = nil
	res, err = d.Run(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delivered)
	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "u2", notifier.sent[1].User.ID)

	pending, err := e.store.ListUsersWithUndeliveredAlerts(e.ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
