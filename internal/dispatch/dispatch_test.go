package dispatch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	name, params, err := ParseCommand("pin://pin-window?id=12345")
	require.NoError(t, err)
	assert.Equal(t, "pin-window", name)
	assert.Equal(t, "12345", params.Get("id"))
}

func TestParseCommandRejectsWrongScheme(t *testing.T) {
	_, _, err := ParseCommand("http://pin?x=1")
	assert.Error(t, err)
}

func TestWriteResponseIsAtomic(t *testing.T) {
	dir := t.TempDir()
	respPath := filepath.Join(dir, "pin-response.json")
	d := &Dispatcher{responsePath: respPath}

	err := d.writeResponse(PinResult{Success: true, Message: "pinned"})
	require.NoError(t, err)

	data, err := os.ReadFile(respPath)
	require.NoError(t, err)

	var result PinResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.True(t, result.Success)
	assert.Equal(t, "pinned", result.Message)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no leftover temp file should remain")
}

func TestExecuteUnknownCommand(t *testing.T) {
	d := &Dispatcher{}
	result := d.execute("bogus", nil)
	unknown, ok := result.(UnknownCommandResult)
	require.True(t, ok)
	assert.Equal(t, "unknown_command: bogus", unknown.Error)
}

func TestExecutePinWindowRejectsMalformedID(t *testing.T) {
	d := &Dispatcher{}
	params := map[string][]string{"id": {"not-a-number"}}
	result := d.execute("pin-window", params)
	pr, ok := result.(PinResult)
	require.True(t, ok)
	assert.False(t, pr.Success)
}
