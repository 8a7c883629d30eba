package dispatch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/southflowpeak/pin/internal/agent"
	"github.com/southflowpeak/pin/internal/permission"
	"github.com/southflowpeak/pin/internal/prefs"
	"github.com/southflowpeak/pin/internal/window"
	"github.com/southflowpeak/pin/pkg/types"
)

func TestParentDir(t *testing.T) {
	require.Equal(t, `C:\pin`, parentDir(`C:\pin\command.txt`))
	require.Equal(t, "/tmp/pin", parentDir("/tmp/pin/command.txt"))
	require.Equal(t, ".", parentDir("command.txt"))
}

func TestWatcherDispatchesOnWrite(t *testing.T) {
	dir := t.TempDir()
	cmdPath := filepath.Join(dir, "pin-command.txt")
	respPath := filepath.Join(dir, "pin-response.json")
	require.NoError(t, os.WriteFile(cmdPath, []byte{}, 0o644))

	store, err := prefs.NewStore(dir)
	require.NoError(t, err)
	windows := window.NewManager()
	a := agent.New(nil, windows, permission.NewGate(), store)
	d := New(a, windows, respPath, nil)

	w, err := NewWatcher(cmdPath, d, nil)
	require.NoError(t, err)
	defer w.Close()

	go w.Run()

	require.NoError(t, os.WriteFile(cmdPath, []byte("pin://status"), 0o644))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(respPath); err == nil && len(data) > 0 {
			var status types.AgentStatus
			require.NoError(t, json.Unmarshal(data, &status))
			require.Equal(t, types.StateIdle, status.State)
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher did not dispatch the command within the deadline")
}
