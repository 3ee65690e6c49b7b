package file

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestHistory(t *testing.T) *commandHistory {
	t.Helper()
	path := filepath.Join(t.TempDir(), "command_history.json")
	return NewCommandHistory(zaptest.NewLogger(t).Sugar(), path)
}

func TestCommandHistory_AddAndRead(t *testing.T) {
	history := newTestHistory(t)

	require.NoError(t, history.AddToHistory("i-1", "uptime"))
	require.NoError(t, history.AddToHistory("i-1", "df -h"))
	require.NoError(t, history.AddToHistory("i-2", "free -m"))

	assert.Equal(t, []string{"uptime", "df -h"}, history.InstanceHistory("i-1"))
	assert.Equal(t, []string{"free -m"}, history.InstanceHistory("i-2"))
	assert.Equal(t, []string{"uptime", "df -h", "free -m"}, history.GlobalHistory())
	assert.Empty(t, history.InstanceHistory("i-unknown"))
}

func TestCommandHistory_ConsecutiveDuplicatesCollapse(t *testing.T) {
	history := newTestHistory(t)

	require.NoError(t, history.AddToHistory("i-1", "uptime"))
	require.NoError(t, history.AddToHistory("i-1", "uptime"))
	require.NoError(t, history.AddToHistory("i-1", "df -h"))
	require.NoError(t, history.AddToHistory("i-1", "uptime"))

	// Only back-to-back repeats collapse; a later repeat is kept.
	assert.Equal(t, []string{"uptime", "df -h", "uptime"}, history.InstanceHistory("i-1"))
}

func TestCommandHistory_CapsPerInstanceAndGlobal(t *testing.T) {
	history := newTestHistory(t)

	for i := 0; i < maxGlobalHistory+10; i++ {
		require.NoError(t, history.AddToHistory("i-1", fmt.Sprintf("cmd-%d", i)))
	}

	instance := history.InstanceHistory("i-1")
	assert.Len(t, instance, maxInstanceHistory)
	assert.Equal(t, fmt.Sprintf("cmd-%d", maxGlobalHistory+9), instance[len(instance)-1])

	global := history.GlobalHistory()
	assert.Len(t, global, maxGlobalHistory)
	assert.Equal(t, fmt.Sprintf("cmd-%d", maxGlobalHistory+9), global[len(global)-1])
}

func TestCommandHistory_SavedCommands(t *testing.T) {
	history := newTestHistory(t)

	require.NoError(t, history.SaveCommand("logs", "tail -f /var/log/app.log"))
	require.NoError(t, history.SaveCommand("disk", "df -h"))

	saved := history.SavedCommands()
	require.Len(t, saved, 2)

	// Saving under an existing name replaces the command.
	require.NoError(t, history.SaveCommand("logs", "journalctl -f"))
	saved = history.SavedCommands()
	require.Len(t, saved, 2)
	for _, cmd := range saved {
		if cmd.Name == "logs" {
			assert.Equal(t, "journalctl -f", cmd.Command)
		}
	}
}

func TestCommandHistory_DeleteSavedCommand(t *testing.T) {
	history := newTestHistory(t)
	require.NoError(t, history.SaveCommand("logs", "tail -f app.log"))

	deleted, err := history.DeleteSavedCommand("logs")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Empty(t, history.SavedCommands())

	deleted, err = history.DeleteSavedCommand("logs")
	require.NoError(t, err)
	assert.False(t, deleted, "deleting a missing favorite reports false")
}

func TestCommandHistory_CorruptFileStartsEmpty(t *testing.T) {
	history := newTestHistory(t)
	require.NoError(t, os.WriteFile(history.filePath, []byte("][broken"), 0o600))

	assert.Empty(t, history.GlobalHistory())
	require.NoError(t, history.AddToHistory("i-1", "uptime"))
	assert.Equal(t, []string{"uptime"}, history.InstanceHistory("i-1"))
}
