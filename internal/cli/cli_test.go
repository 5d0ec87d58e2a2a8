package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestStatusCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "preparing", args: []string{"--at", "2026-03-10T12:00:10Z"}, want: "Preparing"},
		{name: "out for delivery", args: []string{"--at", "2026-03-10T12:00:45Z"}, want: "OutForDelivery"},
		{name: "delivered", args: []string{"--at", "2026-03-10T12:01:15Z"}, want: "Delivered"},
		{name: "completed", args: []string{"--at", "2026-03-10T12:01:35Z"}, want: "Completed"},
		{name: "custom stage", args: []string{"--at", "2026-03-10T12:00:45Z", "--stage", "1m"}, want: "Preparing"},
		{name: "bad at", args: []string{"--at", "yesterday"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"status", "--order-time", "2026-03-10T12:00:00Z"}, tt.args...)
			out, err := run(t, args...)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestStatusCommand_RequiresOrderTime(t *testing.T) {
	_, err := run(t, "status")
	require.Error(t, err)
}

func TestTickCommand_RequiresConfig(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	_, err := run(t, "tick")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config path is not set")
}

func TestMigrateCommand_MissingConfigFile(t *testing.T) {
	_, err := run(t, "migrate", "--config", "/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}
