package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	Path    string
	Grace   time.Duration
	Retries int
}

type backendConf struct {
	Path    string        `json:"path"`
	Grace   time.Duration `json:"grace"`
	Retries int           `json:"retries"`
}

func newBackend(conf map[string]any) (*backend, error) {
	var c backendConf
	if err := Decode(conf, &c); err != nil {
		return nil, err
	}
	return &backend{Path: c.Path, Grace: c.Grace, Retries: c.Retries}, nil
}

func TestRegistryCreate(t *testing.T) {
	reg := NewRegistry[*backend]()
	require.NoError(t, reg.Register("lpsolve", newBackend))

	inst, err := reg.Create(ModuleConfig{Type: "lpsolve", Conf: map[string]any{
		"path":    "/usr/bin/lp_solve",
		"grace":   "2s",
		"retries": "3",
	}})
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/lp_solve", inst.Path)
	assert.Equal(t, 2*time.Second, inst.Grace)
	assert.Equal(t, 3, inst.Retries)
}

func TestRegistryErrors(t *testing.T) {
	reg := NewRegistry[int]()
	require.NoError(t, reg.Register("x", func(map[string]any) (int, error) { return 1, nil }))
	assert.Error(t, reg.Register("x", func(map[string]any) (int, error) { return 2, nil }))
	assert.Error(t, reg.Register("nil", nil))

	_, err := reg.Create(ModuleConfig{Type: "y"})
	assert.ErrorContains(t, err, `"y"`)
}

func TestRegistryNames(t *testing.T) {
	reg := NewRegistry[int]()
	for _, n := range []string{"lpsolve", "bruteforce"} {
		require.NoError(t, reg.Register(n, func(map[string]any) (int, error) { return 0, nil }))
	}
	assert.Equal(t, []string{"bruteforce", "lpsolve"}, reg.Names())
	assert.True(t, reg.Has("lpsolve"))
	assert.False(t, reg.Has("glpk"))
}
