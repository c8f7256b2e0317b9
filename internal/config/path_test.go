package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("PICKPATH_TEST_DIR", "/srv/store")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "tilde", in: "~", want: home},
		{name: "tilde prefix", in: "~/data/pickpath.db", want: filepath.Join(home, "data", "pickpath.db")},
		{name: "env var", in: "$PICKPATH_TEST_DIR/CSVRecordings", want: "/srv/store/CSVRecordings"},
		{name: "plain", in: "/var/lib/pickpath.db", want: "/var/lib/pickpath.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}
