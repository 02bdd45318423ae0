package cpematch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
	"github.com/lcalzada-xor/cvewatch/internal/mock"
)

func mustParse(t *testing.T, name string) domain.ProductFields {
	t.Helper()
	f, err := domain.ParseCPE(name)
	require.NoError(t, err)
	return f
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		pattern   string
		want      bool
	}{
		{"identical", "acme:widget:1.0:*:*:*:*:*:*:*", "acme:widget:1.0:*:*:*:*:*:*:*", true},
		{"wildcard everywhere", "acme:widget:2.3:beta:pro:en:*:linux:x64:*", "acme:widget:*:*:*:*:*:*:*:*", true},
		{"different version", "acme:widget:2.3:beta:*:*:*:*:*:*", "acme:widget:1.0:*:*:*:*:*:*:*", false},
		{"version prefix glob", "acme:widget:2.3.1:*:*:*:*:*:*:*", "acme:widget:2.3*:*:*:*:*:*:*:*", true},
		{"version infix glob", "acme:widget:2.13.1:*:*:*:*:*:*:*", "acme:widget:2*1:*:*:*:*:*:*:*", true},
		{"glob no match", "acme:widget:3.0:*:*:*:*:*:*:*", "acme:widget:2.*:*:*:*:*:*:*:*", false},
		{"case insensitive", "acme:Widget:1.0:SP1:*:*:*:*:*:*", "acme:widget:1.0:sp1:*:*:*:*:*:*", true},
		{"candidate wildcard field", "acme:widget:*:*:*:*:*:*:*:*", "acme:widget:1.0:*:*:*:*:*:*:*", true},
		{"other vendor", "globex:widget:1.0:*:*:*:*:*:*:*", "acme:widget:1.0:*:*:*:*:*:*:*", false},
		{"other product", "acme:gadget:1.0:*:*:*:*:*:*:*", "acme:widget:*:*:*:*:*:*:*:*", false},
		{"underscore is literal", "acme:widget:1x0:*:*:*:*:*:*:*", "acme:widget:1_0:*:*:*:*:*:*:*", false},
		{"percent is literal", "acme:widget:1.0:*:*:*:*:*:*:*", "acme:widget:%:*:*:*:*:*:*:*", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Matches(mustParse(t, tt.candidate), mustParse(t, tt.pattern))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatches_Properties(t *testing.T) {
	products := []string{
		"acme:widget:1.0:*:*:*:*:*:*:*",
		"acme:widget:2.3:beta:*:*:*:*:*:*",
		"acme:widget:2.3:beta:pro:en:*:*:*:*",
		"globex:os:10:-:-:-:-:-:x64:-",
	}
	for _, name := range products {
		p := mustParse(t, name)
		assert.True(t, Matches(p, p), "reflexive: %s", name)
		assert.True(t, Matches(p, p.AnyVersion()), "wildcard pattern: %s", name)
	}

	concrete := []string{
		"acme:widget:1.0:a:b:c:d:e:f:g",
		"acme:widget:1.1:a:b:c:d:e:f:g",
		"acme:widget:1.0:a:b:c:d:e:f:h",
		"globex:widget:1.0:a:b:c:d:e:f:g",
	}
	for i, a := range concrete {
		for j, b := range concrete {
			if i == j {
				continue
			}
			assert.False(t, Matches(mustParse(t, a), mustParse(t, b)), "%s vs %s", a, b)
		}
	}
}

func TestGlobMatch(t *testing.T) {
	assert.True(t, globMatch("*", ""))
	assert.True(t, globMatch("a*", "a"))
	assert.True(t, globMatch("*b", "ab"))
	assert.True(t, globMatch("a*b*c", "aXbYc"))
	assert.False(t, globMatch("a*a", "a"))
	assert.False(t, globMatch("abc", "abcd"))
}

func newMatcher(store *mock.Store, pageSize int) *Matcher {
	return NewMatcher(store, pageSize, logger.Nop())
}

func TestMatcher_ExpandWildcardFamily(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStore()

	pattern, err := store.UpsertProduct(ctx, "acme", "cpe:2.3:a:acme:widget:*:*:*:*:*:*:*:*")
	require.NoError(t, err)
	for _, name := range []string{
		"cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*",
		"cpe:2.3:a:acme:widget:2.3:beta:*:*:*:*:*:*",
		"cpe:2.3:a:acme:widget:3.0:*:*:*:*:*:*:*",
		"cpe:2.3:a:acme:gadget:1.0:*:*:*:*:*:*:*",
	} {
		_, err := store.UpsertProduct(ctx, "acme", name)
		require.NoError(t, err)
	}

	// Page size 1 forces several family pages.
	m := newMatcher(store, 1)
	keys, err := m.Expand(ctx, *pattern)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"acme$PRODUCT$cpe:2.3:a:acme:widget:*:*:*:*:*:*:*:*",
		"acme$PRODUCT$cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*",
		"acme$PRODUCT$cpe:2.3:a:acme:widget:2.3:beta:*:*:*:*:*:*",
		"acme$PRODUCT$cpe:2.3:a:acme:widget:3.0:*:*:*:*:*:*:*",
	}, keys)

	// The lazy repair filled every dirty product of the vendor.
	dirty, err := store.ListDirtyProducts(ctx, "", "", 0)
	require.NoError(t, err)
	assert.Empty(t, dirty)
}

func TestMatcher_ExpandConcreteProduct(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStore()

	followed, err := store.UpsertProduct(ctx, "acme", "cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*")
	require.NoError(t, err)
	_, err = store.UpsertProduct(ctx, "acme", "cpe:2.3:a:acme:widget:2.0:*:*:*:*:*:*:*")
	require.NoError(t, err)
	_, err = store.UpsertProduct(ctx, "acme", "cpe:2.3:a:acme:widget:*:*:*:*:*:*:*:*")
	require.NoError(t, err)

	keys, err := newMatcher(store, 10).Expand(ctx, *followed)
	require.NoError(t, err)

	// The family entry with wildcard version matches any concrete pattern.
	assert.ElementsMatch(t, []string{
		"acme$PRODUCT$cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*",
		"acme$PRODUCT$cpe:2.3:a:acme:widget:*:*:*:*:*:*:*:*",
	}, keys)
}

func TestMatcher_ExpandMalformedProduct(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStore()

	broken, err := store.UpsertProduct(ctx, "acme", "acme:widget")
	require.NoError(t, err)
	_, err = store.UpsertProduct(ctx, "acme", "cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*")
	require.NoError(t, err)

	keys, err := newMatcher(store, 10).Expand(ctx, *broken)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme$PRODUCT$acme:widget"}, keys)

	p, err := store.GetProduct(ctx, broken.ID)
	require.NoError(t, err)
	assert.True(t, p.Malformed)
}

func TestMatcher_RepairDirtyProducts(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStore()

	good, err := store.UpsertProduct(ctx, "acme", "cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*")
	require.NoError(t, err)
	_, err = store.UpsertProduct(ctx, "globex", "not-a-cpe")
	require.NoError(t, err)

	res, err := newMatcher(store, 1).RepairDirtyProducts(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, RepairResult{Repaired: 1, Malformed: 1}, res)

	p, err := store.GetProduct(ctx, good.ID)
	require.NoError(t, err)
	require.NotNil(t, p.Fields)
	assert.Equal(t, "widget", p.Fields.ProductName)
	assert.Equal(t, "1.0", p.Fields.Version)

	// A second pass has nothing left to do.
	res, err = newMatcher(store, 1).RepairDirtyProducts(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, RepairResult{}, res)
}
