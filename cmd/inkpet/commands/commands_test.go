package commands

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BeatGlow/inkpet/internal/inbox"
	"github.com/BeatGlow/inkpet/internal/printer"
	"github.com/BeatGlow/inkpet/internal/state"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	saved, savedColor := printer.Out, color.NoColor
	printer.Out, color.NoColor = &buf, true
	t.Cleanup(func() {
		printer.Out, color.NoColor = saved, savedColor
	})
	return &buf
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	t.Cleanup(func() {
		configPath, sendFrom, sendDir, statusJSON = "", "inkpet", "", false
	})
	rootCmd.SetArgs(args)
	return Execute()
}

func TestParseFlag(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    inbox.Flag
		wantErr bool
	}{
		{"feed", []string{"feed"}, inbox.Flag{Kind: state.KindFeed, From: "Ana"}, false},
		{"poke upper case", []string{"POKE"}, inbox.Flag{Kind: state.KindPoke, From: "Ana"}, false},
		{"message", []string{"message", "see", "you"}, inbox.Flag{Kind: state.KindMessage, From: "Ana", Payload: "see you"}, false},
		{"message without text", []string{"message", " "}, inbox.Flag{}, true},
		{"feed with text", []string{"feed", "now"}, inbox.Flag{}, true},
		{"unknown kind", []string{"hug"}, inbox.Flag{}, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := parseFlag(test.args, "Ana")
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestSend_DepositsFlag(t *testing.T) {
	buf := captureOutput(t)
	dir := t.TempDir()

	require.NoError(t, execute(t, "send", "message", "--from", "Ana", "--dir", dir, "hello", "there"))
	assert.Contains(t, buf.String(), "message flag")

	n, err := inbox.Pending(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The display process applies it.
	store, err := state.Open(t.TempDir(), state.Defaults{PetName: "Fluffy", PetType: "bunny", TimeFormat: 24})
	require.NoError(t, err)
	_, err = inbox.NewWatcher(dir, store, time.Millisecond).Poll()
	require.NoError(t, err)

	snap, err := store.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Messages.Messages, 1)
	assert.Equal(t, "Ana", snap.Messages.Messages[0].From)
	assert.Equal(t, "hello there", snap.Messages.Messages[0].Message)
}

func TestSend_RejectsUnknownKind(t *testing.T) {
	captureOutput(t)
	assert.Error(t, execute(t, "send", "hug", "--dir", t.TempDir()))
}

func TestStatus_JSON(t *testing.T) {
	buf := captureOutput(t)
	t.Setenv("INKPET_DATA_DIR", filepath.Join(t.TempDir(), "data"))
	t.Setenv("INKPET_FLAG_DIR", filepath.Join(t.TempDir(), "flags"))

	require.NoError(t, execute(t, "status", "--json"))
	assert.Contains(t, buf.String(), `"name": "Fluffy"`)
	assert.Contains(t, buf.String(), `"time_format": 24`)
}

func TestPrintStatus(t *testing.T) {
	buf := captureOutput(t)
	now := time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC)

	snap := state.Snapshot{
		Pet:      state.Pet{Name: "Fluffy", Type: "bunny", Hunger: 5, Happiness: 8, Health: 10, AgeHours: 26},
		Settings: state.Settings{TimeFormat: 24, Brightness: 3, RefreshMode: "balanced"},
		Stats:    state.Stats{TotalFullRefreshes: 2, TotalPartialRefreshes: 7, TotalDisplayUpdates: 9},
	}
	snap.Messages.Add(state.Message{From: "Ana", Message: "hi", Timestamp: now.Add(-time.Hour)})

	printStatus(snap, 2, 0, now)
	out := buf.String()
	assert.Contains(t, out, "Fluffy the bunny")
	assert.Contains(t, out, "happy")
	assert.Contains(t, out, "[#####-----] 5/10")
	assert.Contains(t, out, "1d 2h")
	assert.Contains(t, out, "Messages (1, 1 unread)")
	assert.Contains(t, out, "hi (1h0m0s ago)")
	assert.Contains(t, out, "2 flag(s) waiting")
	assert.Contains(t, out, "9 (2 full, 7 partial)")
	assert.NotContains(t, out, "outbox")
}

func TestRoot_RejectsUnknownFlag(t *testing.T) {
	captureOutput(t)
	err := execute(t, "--no-such-flag")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestRun_RejectsBadTimezone(t *testing.T) {
	captureOutput(t)
	t.Setenv("INKPET_MOCK_HARDWARE", "1")
	t.Setenv("INKPET_DATA_DIR", filepath.Join(t.TempDir(), "data"))
	t.Setenv("DEVICE_TIMEZONE", "Mars/Olympus")

	err := execute(t, "run")
	require.Error(t, err)
	assert.Equal(t, "Invalid configuration", err.Error())
}
