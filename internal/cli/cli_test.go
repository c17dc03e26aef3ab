package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statebind/internal/db"
	"statebind/pkg/journal"
)

func memOpener(j journal.Store) func(context.Context) (journal.Store, func(), error) {
	return func(context.Context) (journal.Store, func(), error) {
		return j, func() {}, nil
	}
}

func seeded(t *testing.T) *journal.MemStore {
	t.Helper()
	j := journal.NewMemStore()
	for _, text := range []string{"buy milk", "walk dog"} {
		_, err := j.Append(context.Background(), "ADD_TODO", "test", text)
		require.NoError(t, err)
	}
	return j
}

func execute(t *testing.T, j journal.Store, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(memOpener(j))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(nil)
	for _, name := range []string{"list", "count", "verify"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, seeded(t), "count", "--format", "xml")
	assert.ErrorContains(t, err, "invalid format")
}

func TestCount(t *testing.T) {
	out, err := execute(t, seeded(t), "count")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = execute(t, seeded(t), "count", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":2}`, out)
}

func TestListJSON(t *testing.T) {
	out, err := execute(t, seeded(t), "list", "--limit", "1", "--format", "json")
	require.NoError(t, err)
	var entries []journal.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.JSONEq(t, `"walk dog"`, string(entries[0].Payload))
}

func TestListText(t *testing.T) {
	out, err := execute(t, seeded(t), "list")
	require.NoError(t, err)
	assert.Contains(t, out, `"walk dog"`)
	assert.Contains(t, out, `"buy milk"`)
	assert.Contains(t, out, "ADD_TODO")
}

func TestListEmptyJSON(t *testing.T) {
	out, err := execute(t, journal.NewMemStore(), "list", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestVerify(t *testing.T) {
	out, err := execute(t, seeded(t), "verify")
	require.NoError(t, err)
	assert.Equal(t, "chain ok\n", out)
}

func TestRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	for _, args := range [][]string{{"verify"}, {"count"}, {"list"}} {
		t.Run(args[0], func(t *testing.T) {
			cmd := NewRootCommand(nil)
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs(args)
			err := cmd.Execute()
			require.ErrorIs(t, err, db.ErrNoDatabase)
			assert.NotContains(t, out.String(), "chain ok")
		})
	}
}
