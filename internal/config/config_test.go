package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/criticalpoint/syncbridge/internal/fault"
)

func TestDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, "./critical_point.log", cfg.Native.LogPath)
	assert.Equal(t, "./Assets/CriticalPoint/", cfg.Native.ResourceRoot)
	assert.Equal(t, "resource.yml", cfg.Native.ResourceManifest)
	assert.Equal(t, "id.yml", cfg.Native.IDManifest)
	assert.Equal(t, uint32(60), cfg.Session.TicksPerSecond)
	assert.Equal(t, "Prefab.Scene.1", cfg.Session.InitialScene)
	assert.False(t, cfg.Journal.Enabled())
	assert.Equal(t, time.Second/60, cfg.Session.TickInterval())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syncbridge.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[native]
resource_root = "./testdata/"
pointer_size = 4

[session]
ticks_per_second = 30
initial_scene = "Prefab.Scene.2"

[logging]
level = "debug"
format = "json"

[journal]
driver = "sqlite3"
dsn = "file:journal.db"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "./testdata/", cfg.Native.ResourceRoot)
	assert.Equal(t, 4, cfg.Native.PointerSize)
	assert.Equal(t, "id.yml", cfg.Native.IDManifest)
	assert.Equal(t, uint32(30), cfg.Session.TicksPerSecond)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Journal.Enabled())
	assert.Equal(t, 60, cfg.Journal.BatchSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	for name, doc := range map[string]string{
		"pointer size": "[native]\npointer_size = 2",
		"zero ticks":   "[session]\nticks_per_second = 0",
		"no scene":     "[session]\ninitial_scene = \"\"",
		"log format":   "[logging]\nformat = \"xml\"",
		"driver":       "[journal]\ndriver = \"mysql\"\ndsn = \"x\"",
		"no dsn":       "[journal]\ndriver = \"pgx\"",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.True(t, fault.IsConfiguration(err), "%v", err)
		})
	}
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse([]byte("[native"))
	require.Error(t, err)
	assert.False(t, fault.IsConfiguration(err))
}
