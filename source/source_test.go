package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desc.md")
	require.NoError(t, os.WriteFile(path, []byte("  a todo list API\n"), 0o644))

	desc, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a todo list API", desc)
}

func TestFromFileMissing(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "nope.md"))
	assert.Error(t, err)
}

func TestFromReader(t *testing.T) {
	desc, err := FromReader(strings.NewReader("piped description\n"))
	require.NoError(t, err)
	assert.Equal(t, "piped description", desc)
}

func TestFromArgs(t *testing.T) {
	desc, err := FromArgs([]string{"a", "calculator", "CLI"})
	require.NoError(t, err)
	assert.Equal(t, "a calculator CLI", desc)
}

func TestEmptyDescription(t *testing.T) {
	_, err := FromArgs(nil)
	assert.Error(t, err)

	_, err = FromReader(strings.NewReader("   \n\t"))
	assert.Error(t, err)
}

func TestWatcher_NotifiesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "desc.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	w, err := NewWatcher(path, 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	select {
	case <-w.Changes():
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestResetDebounceDrainsFiredTimer(t *testing.T) {
	timer := time.NewTimer(time.Millisecond)
	time.Sleep(20 * time.Millisecond) // fired, tick buffered and unread

	resetDebounce(timer, 200*time.Millisecond)

	select {
	case <-timer.C:
		t.Fatal("stale tick delivered before the new interval elapsed")
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case <-timer.C:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired after reset")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "desc.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	w, err := NewWatcher(path, 30*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.md"), []byte("x"), 0o644))

	select {
	case <-w.Changes():
		t.Fatal("unexpected notification for unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}
