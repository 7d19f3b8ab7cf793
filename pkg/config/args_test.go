package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    map[string]string
		wantErr string
	}{
		{
			name: "empty",
			args: nil,
			want: map[string]string{},
		},
		{
			name: "all forms",
			args: []string{"--log.level=debug", "--heartbeat.interval", "2s", "status.listen=:8080", "/Environment", "Staging"},
			want: map[string]string{
				"log.level":          "debug",
				"heartbeat.interval": "2s",
				"status.listen":      ":8080",
				"environment":        "Staging",
			},
		},
		{
			name: "section separators and dashes",
			args: []string{"--Host:Shutdown-Timeout=5s", "app__name=demo", "--config-dir=/etc/worker"},
			want: map[string]string{
				"host.shutdown_timeout": "5s",
				"app.name":              "demo",
				"config_dir":            "/etc/worker",
			},
		},
		{
			name: "later wins and values keep equals signs",
			args: []string{"a=1", "a=2", "--b=x=y"},
			want: map[string]string{"a": "2", "b": "x=y"},
		},
		{
			name:    "bare positional",
			args:    []string{"verbose"},
			wantErr: "expected key=value",
		},
		{
			name:    "missing value",
			args:    []string{"--log.level"},
			wantErr: "missing value",
		},
		{
			name:    "empty key",
			args:    []string{"--=x"},
			wantErr: "empty key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArgs(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
