package mock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

func TestStore_FindCVEsEmptyKeys(t *testing.T) {
	s := NewStore()
	s.PutCVE(domain.CVE{CveSnapshot: domain.CveSnapshot{ID: "CVE-1", CPEs: []string{"cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*"}}})

	res, err := s.FindCVEs(context.Background(), domain.CVEQuery{})
	require.NoError(t, err)
	assert.Empty(t, res)

	res, err = s.FindCVEs(context.Background(), domain.CVEQuery{Keys: []string{"acme"}})
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestStore_CreateAlertIdempotent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a := domain.Alert{ID: "a1", UserID: "u1", CVEID: "CVE-1", ReportID: "r1"}

	created, err := s.CreateAlert(ctx, a)
	require.NoError(t, err)
	assert.True(t, created)

	a.ID = "a2"
	created, err = s.CreateAlert(ctx, a)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, s.Alerts(), 1)
}

func TestFeed_FirstFetchReturnsScenario(t *testing.T) {
	feed := NewFeed(NewDataGenerator(42), "quiet")
	now := time.Now()

	first, err := feed.Fetch(context.Background(), now.Add(-time.Hour), now)
	require.NoError(t, err)
	assert.Len(t, first, 5)
	for _, snap := range first {
		assert.NotEmpty(t, snap.MatchKeys())
	}

	_, err = feed.Fetch(context.Background(), now, now.Add(time.Minute))
	require.NoError(t, err)
}
