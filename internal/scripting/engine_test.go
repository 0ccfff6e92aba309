package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/criticalpoint/syncbridge/internal/dispatch"
	"github.com/criticalpoint/syncbridge/internal/fault"
	"github.com/criticalpoint/syncbridge/internal/generation"
	"github.com/criticalpoint/syncbridge/internal/id"
	"github.com/criticalpoint/syncbridge/internal/layout"
	"github.com/criticalpoint/syncbridge/internal/memory"
	"github.com/criticalpoint/syncbridge/internal/model"
)

const humanScript = `
factories.CharaHuman = {
  size = 32,
  build = function(obj)
    return {
      name = cstr(obj.payload, 0, 24),
      attrs = { faction = le_u32(obj.payload, 24), max_hp = le_i32(obj.payload, 28) },
    }
  end,
}
`

const sceneryScript = `
factories.StageScenery = function(obj)
  if obj.id % 2 == 0 then
    return nil
  end
  return { name = "scenery-" .. obj.id }
end
`

func writeScripts(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "factories"), 0o755))
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	return dir
}

func publish(t *testing.T, fill func(b *generation.Builder)) *generation.Generation {
	t.Helper()
	l, err := layout.New(8)
	require.NoError(t, err)
	a := memory.NewArena()
	b := generation.NewBuilder(a, l)
	fill(b)
	blk, err := b.Build()
	require.NoError(t, err)
	g, err := generation.Decode(a, l, blk.Addr, 3)
	require.NoError(t, err)
	return g
}

func TestScriptedFactories(t *testing.T) {
	dir := writeScripts(t, map[string]string{
		"factories/human.lua":   humanScript,
		"factories/scenery.lua": sceneryScript,
	})
	e, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	classes, err := e.Factories()
	require.NoError(t, err)
	assert.Equal(t, []id.ClassTag{id.ClassStageScenery, id.ClassCharaHuman}, classes)

	d := dispatch.New[model.Actor](zap.NewNop())
	require.NoError(t, e.RegisterFactories(d))
	// scripts win over the built-in factory for the same class
	require.NoError(t, model.RegisterFactories(d))

	g := publish(t, func(b *generation.Builder) {
		_, err := generation.AddPropShape(b, 10, model.HumanProp{Name: model.NewName("Knight"), Faction: 3, MaxHP: 120})
		require.NoError(t, err)
		b.AddProp(11, id.ClassStageScenery, nil)
		b.AddProp(12, id.ClassStageScenery, nil)
	})

	actors, err := d.Dispatch(g)
	require.NoError(t, err)
	require.Len(t, actors, 2)

	assert.Equal(t, id.ObjectID(10), actors[0].ObjectID)
	assert.Equal(t, "Knight", actors[0].Name)
	assert.Equal(t, float64(3), actors[0].Attrs["faction"])
	assert.Equal(t, float64(120), actors[0].Attrs["max_hp"])

	assert.Equal(t, "scenery-11", actors[1].Name)
	assert.Equal(t, id.ClassStageScenery, actors[1].Class)
}

func TestScriptErrorMeansNoRepresentation(t *testing.T) {
	dir := writeScripts(t, map[string]string{
		"skill.lua": `factories.Skill = { size = 4, build = function(obj) return { n = le_u64(obj.payload, 0) } end }`,
	})
	e, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	d := dispatch.New[model.Actor](zap.NewNop())
	require.NoError(t, e.RegisterFactories(d))

	g := publish(t, func(b *generation.Builder) {
		b.AddProp(1, id.ClassSkill, []byte{1, 2, 3, 4})
	})
	actors, err := d.Dispatch(g)
	require.NoError(t, err)
	assert.Empty(t, actors)
}

func TestUnknownClassNameIsConfigurationError(t *testing.T) {
	e, err := NewEngine(writeScripts(t, map[string]string{
		"bad.lua": `factories.Dragon = function(obj) return nil end`,
	}), zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	err = e.RegisterFactories(dispatch.New[model.Actor](zap.NewNop()))
	assert.True(t, fault.IsConfiguration(err))
}

func TestFactoryWithoutBuild(t *testing.T) {
	e, err := NewEngine(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.DoString(`factories.Action = { size = 8 }`))

	_, err = e.Factories()
	assert.True(t, fault.IsConfiguration(err))
}

func TestSyntaxErrorFailsLoad(t *testing.T) {
	_, err := NewEngine(writeScripts(t, map[string]string{"broken.lua": "factories.Skill = function("}), zap.NewNop())
	assert.Error(t, err)
}
