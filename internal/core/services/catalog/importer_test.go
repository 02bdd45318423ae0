package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/services/audit"
	"github.com/lcalzada-xor/cvewatch/internal/core/services/cpematch"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
	"github.com/lcalzada-xor/cvewatch/internal/mock"
)

func newImporter(store *mock.Store) *Importer {
	log := logger.Nop()
	return NewImporter(store, store, cpematch.NewMatcher(store, 100, log), audit.NewAuditService(store), log)
}

func TestImporter_ImportCatalog(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStore()

	res, err := newImporter(store).ImportCatalog(ctx, []string{
		"cpe:2.3:a:apache:tomcat:9.0:*:*:*:*:*:*:*",
		"cpe:2.3:a:apache:tomcat:9.0:*:*:*:*:*:*:*",
		"",
		"garbage",
		"cpe:2.3:a:mozilla:firefox:120.0:*:*:*:*:*:*:*",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Upserted)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, res.Repair.Repaired)

	p, err := store.GetProductByName(ctx, "cpe:2.3:a:mozilla:firefox:120.0:*:*:*:*:*:*:*")
	require.NoError(t, err)
	require.NotNil(t, p.Fields)
	assert.Equal(t, "mozilla", p.Vendor)
}

func TestImporter_ImportCategory(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStore()
	importer := newImporter(store)

	_, err := importer.ImportCatalog(ctx, []string{
		"cpe:2.3:a:apache:http_server:2.4.49:*:*:*:*:*:*:*",
		"cpe:2.3:a:apache:tomcat:9.0:*:*:*:*:*:*:*",
		"cpe:2.3:a:mozilla:firefox:120.0:*:*:*:*:*:*:*",
	})
	require.NoError(t, err)

	require.NoError(t, store.CreateCategory(ctx, domain.Category{ID: "cat-1", Name: "web"}))

	res, err := importer.ImportCategory(ctx, "Web", []Row{
		{Vendor: "Apache", Product: "HTTP Server", Version: "2.4.49"},
		{Vendor: "Apache", Product: "HTTP Server", Version: "2.4.49"},
		{Vendor: "whatever", Product: "x", Version: "1", Tag: "cpe:2.3:a:mozilla:firefox:120.0:*:*:*:*:*:*:*"},
		{Vendor: "Initech", Product: "TPS", Version: "1.0"},
		{Vendor: "x", Product: "y", Version: "z", Tag: "cpe:2.3:a:nobody:nothing:1:*:*:*:*:*:*:*"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, "Initech", res.Skipped[0].Row.Vendor)

	cat, err := store.GetCategory(ctx, "cat-1")
	require.NoError(t, err)
	assert.Len(t, cat.Products, 2)

	// Re-importing adds nothing new.
	res, err = importer.ImportCategory(ctx, "web", []Row{{Vendor: "apache", Product: "http_server", Version: "2.4.49"}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
}

func TestImporter_ImportCategoryUnknown(t *testing.T) {
	_, err := newImporter(mock.NewStore()).ImportCategory(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReadRows(t *testing.T) {
	input := strings.Join([]string{
		"Inventory export,,,",
		"Vendor,Product,Version,Tag",
		"Apache,HTTP Server,2.4.49,",
		"Mozilla,Firefox,120.0,cpe:2.3:a:mozilla:firefox:120.0:*:*:*:*:*:*:*",
		"Broken,,1.0,",
	}, "\n")

	rows, err := ReadRows(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{Vendor: "Apache", Product: "HTTP Server", Version: "2.4.49"}, rows[0])
	assert.Equal(t, "cpe:2.3:a:mozilla:firefox:120.0:*:*:*:*:*:*:*", rows[1].Tag)
}

func TestReadRows_MissingHeader(t *testing.T) {
	_, err := ReadRows(strings.NewReader("a,b,c\n1,2,3\n"))
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestReadNames(t *testing.T) {
	names, err := ReadNames(strings.NewReader("# catalog\ncpe:2.3:a:a:b:1:*:*:*:*:*:*:*\n\n  cpe:2.3:a:a:b:2:*:*:*:*:*:*:*  \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"cpe:2.3:a:a:b:1:*:*:*:*:*:*:*", "cpe:2.3:a:a:b:2:*:*:*:*:*:*:*"}, names)
}
