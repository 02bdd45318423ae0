package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

// run executes the CLI against the sqlite database at db.
func run(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--db-driver=sqlite", "--db=" + db, "--log-mode=production"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_CategoryLifecycle(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cvewatch.db")

	_, err := run(t, db, "category", "create", "Infra")
	require.NoError(t, err)

	out, err := run(t, db, "category", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "infra")

	_, err = run(t, db, "category", "rename", "infra", "platform")
	require.NoError(t, err)

	_, err = run(t, db, "category", "create", "platform")
	assert.ErrorIs(t, err, domain.ErrCategoryExists)

	_, err = run(t, db, "category", "delete", "platform")
	require.NoError(t, err)
	out, err = run(t, db, "category", "list")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))
}

func TestCLI_ImportAndSubscribe(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "cvewatch.db")
	names := filepath.Join(dir, "catalog.txt")
	require.NoError(t, os.WriteFile(names, []byte(
		"# seed\ncpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*\ncpe:2.3:o:globex:os:10:*:*:*:*:*:*:*\n",
	), 0o644))

	out, err := run(t, db, "import-catalog", names)
	require.NoError(t, err)
	assert.Contains(t, out, `"upserted": 2`)

	out, err = run(t, db, "user", "create", "alice", "--email=alice@example.com")
	require.NoError(t, err)
	var user domain.User
	require.NoError(t, json.Unmarshal([]byte(out), &user))

	out, err = run(t, db, "keys", "user", user.ID)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))

	_, err = run(t, db, "subscribe", user.ID, "planet", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidSubscription)
}

func TestCLI_RunOnceFromFile(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "cvewatch.db")

	out, err := run(t, db, "run-once", "--feed-file="+filepath.Join("..", "..", "internal", "adapters", "nvd", "testdata", "page.json"))
	require.NoError(t, err)

	var report domain.CycleReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, domain.StatusCompleted, report.Status)
	assert.Positive(t, report.ChangesDetected)
}

func TestCLI_RejectsUnknownDriver(t *testing.T) {
	_, err := run(t, "x", "--db-driver=mysql", "category", "list")
	assert.Error(t, err)
}
