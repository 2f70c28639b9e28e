package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ketama/internal/ring"
)

func TestParseNodes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []NodeSpec
		wantErr bool
	}{
		{
			name:  "empty string",
			input: "",
			want:  []NodeSpec{},
		},
		{
			name:  "single node without weight",
			input: "127.0.0.1:11211",
			want: []NodeSpec{
				{ID: "127.0.0.1:11211", Weight: 1},
			},
		},
		{
			name:  "multiple weighted nodes",
			input: "192.168.0.101:11212=5,192.168.0.102:11212=2,192.168.0.103:11212",
			want: []NodeSpec{
				{ID: "192.168.0.101:11212", Weight: 5},
				{ID: "192.168.0.102:11212", Weight: 2},
				{ID: "192.168.0.103:11212", Weight: 1},
			},
		},
		{
			name:  "with spaces and trailing comma",
			input: " a = 3 , b ,",
			want: []NodeSpec{
				{ID: "a", Weight: 3},
				{ID: "b", Weight: 1},
			},
		},
		{
			name:    "invalid weight",
			input:   "a=heavy",
			wantErr: true,
		},
		{
			name:    "empty id",
			input:   "=2",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNodes(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Default()
	cfg.Nodes = []NodeSpec{{ID: "a", Weight: 1}, {ID: "a", Weight: 2}}
	assert.ErrorIs(t, cfg.Validate(), ring.ErrDuplicateNode)

	cfg.Nodes = []NodeSpec{{ID: "a", Weight: 0}}
	assert.ErrorIs(t, cfg.Validate(), ring.ErrInvalidWeight)

	cfg.Nodes = []NodeSpec{{ID: "", Weight: 1}}
	assert.ErrorIs(t, cfg.Validate(), ring.ErrInvalidNode)

	cfg.Nodes = []NodeSpec{{ID: "a", Weight: 1}}
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring.yaml")
	data := `
listen: 0.0.0.0:9000
replicas: 20
nodes:
  - id: 192.168.0.101:11212
    weight: 5
  - id: 192.168.0.102:11212
  - 192.168.0.103:11212
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	assert.Equal(t, 20, cfg.Replicas)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, map[string]int{
		"192.168.0.101:11212": 5,
		"192.168.0.102:11212": 1,
		"192.168.0.103:11212": 1,
	}, cfg.Weights())

	r, err := cfg.BuildRing()
	require.NoError(t, err)
	assert.Equal(t, 20, r.Replicas())
	assert.Equal(t, 7*20*4, r.Len())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "dup.yaml")
	data := "nodes:\n  - id: a\n  - id: a\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	_, err = Load(path)
	assert.ErrorIs(t, err, ring.ErrDuplicateNode)

	path = filepath.Join(t.TempDir(), "zero.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes:\n  - id: a\n    weight: 0\n"), 0o644))
	_, err = Load(path)
	assert.ErrorIs(t, err, ring.ErrInvalidWeight)

	path = filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes: [[["), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestConfig_BuildRingEmpty(t *testing.T) {
	r, err := Default().BuildRing()
	require.NoError(t, err)
	assert.True(t, r.IsEmpty())
}
