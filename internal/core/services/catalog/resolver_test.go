package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/services/cpematch"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
	"github.com/lcalzada-xor/cvewatch/internal/mock"
)

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("apache", "apache"))
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.InDelta(t, 5.0/6.0, Similarity("apache", "apachy"), 1e-9)
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
}

func TestClosest(t *testing.T) {
	candidates := []string{"apache", "microsoft", "mozilla"}

	got, ok := Closest("apachee", candidates, SimilarityCutoff)
	assert.True(t, ok)
	assert.Equal(t, "apache", got)

	_, ok = Closest("oracle", candidates, SimilarityCutoff)
	assert.False(t, ok)

	_, ok = Closest("anything", nil, SimilarityCutoff)
	assert.False(t, ok)
}

func TestDehumanize(t *testing.T) {
	assert.Equal(t, "http_server", dehumanize(" Http  Server "))
}

func seedCatalog(t *testing.T, store *mock.Store, names ...string) {
	t.Helper()
	ctx := context.Background()
	for _, n := range names {
		_, err := store.UpsertProduct(ctx, domain.VendorOfCPE(n), n)
		require.NoError(t, err)
	}
	_, err := cpematch.NewMatcher(store, 100, logger.Nop()).RepairDirtyProducts(ctx, "")
	require.NoError(t, err)
}

func TestLookupContext_ResolveProduct(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStore()
	seedCatalog(t, store,
		"cpe:2.3:a:apache:http_server:2.4.49:*:*:*:*:*:*:*",
		"cpe:2.3:a:apache:http_server:2.4.50:*:*:*:*:*:*:*",
		"cpe:2.3:a:apache:http_server:2.4.50:*:*:*:*:*:*:x64",
		"cpe:2.3:a:apache:tomcat:9.0:*:*:*:*:*:*:*",
	)

	lookup, err := NewLookupContext(ctx, store)
	require.NoError(t, err)

	p, err := lookup.ResolveProduct(ctx, "Apache", "HTTP Server", "2.4.50")
	require.NoError(t, err)
	assert.Equal(t, "cpe:2.3:a:apache:http_server:2.4.50:*:*:*:*:*:*:*", p.Name)

	p, err = lookup.ResolveProduct(ctx, "apach", "tomcat", "9.0")
	require.NoError(t, err)
	assert.Equal(t, "cpe:2.3:a:apache:tomcat:9.0:*:*:*:*:*:*:*", p.Name)

	_, err = lookup.ResolveProduct(ctx, "Oracle", "mysql", "8.0")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = lookup.ResolveProduct(ctx, "apache", "struts", "2.0")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
