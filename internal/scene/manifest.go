package scene

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/criticalpoint/syncbridge/internal/id"
)

// IDTable maps resource ids ("Chara.Knight") to their class.
type IDTable struct {
	byID map[string]id.ClassTag
}

func (t *IDTable) Class(resID string) (id.ClassTag, bool) {
	c, ok := t.byID[resID]
	return c, ok
}

func (t *IDTable) Count() int { return len(t.byID) }

// LoadIDTable loads the id manifest: a mapping of resource id to class name.
func LoadIDTable(path string) (*IDTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("id manifest: read %s: %w", path, err)
	}
	var m map[string]id.ClassTag
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("id manifest: parse %s: %w", path, err)
	}
	for resID, c := range m {
		if c.IsInvalid() {
			return nil, fmt.Errorf("id manifest: %s has the invalid class", resID)
		}
	}
	return &IDTable{byID: m}, nil
}

type Character struct {
	Name    string `yaml:"name"`
	Faction uint32 `yaml:"faction"`
	MaxHP   int32  `yaml:"max_hp"`
	Regen   int32  `yaml:"regen"` // hp per tick, may be negative
}

type Scenery struct {
	Model string `yaml:"model"`
}

type Skill struct {
	Name     string `yaml:"name"`
	Duration uint32 `yaml:"duration"` // ticks
}

// Resources is the resource manifest. Scene entries are paths relative to
// the resource root.
type Resources struct {
	Characters map[string]Character `yaml:"characters"`
	Scenery    map[string]Scenery   `yaml:"scenery"`
	Skills     map[string]Skill     `yaml:"skills"`
	Scenes     map[string]string    `yaml:"scenes"`
}

func LoadResources(path string) (*Resources, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resource manifest: read %s: %w", path, err)
	}
	var r Resources
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("resource manifest: parse %s: %w", path, err)
	}
	return &r, nil
}

// Spawn places one resource on the timeline. At is the tick the object
// appears; Until, when set, is the tick it is destroyed.
type Spawn struct {
	Resource string     `yaml:"resource"`
	At       uint64     `yaml:"at"`
	Until    uint64     `yaml:"until"`
	Position [3]float32 `yaml:"position"`
	Velocity [3]float32 `yaml:"velocity"` // units per second
	Caster   int        `yaml:"caster"`   // skills: 1-based index of the casting spawn, 0 = none
}

// Scene is a timeline of spawns on one stage.
type Scene struct {
	Name   string     `yaml:"name"`
	Bounds [3]float32 `yaml:"bounds"`
	Spawns []Spawn    `yaml:"spawns"`
}

func LoadScene(path string) (*Scene, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scene: read %s: %w", path, err)
	}
	var s Scene
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("scene: parse %s: %w", path, err)
	}
	return &s, nil
}

// Cache is a loaded resource root.
type Cache struct {
	Root      string
	IDs       *IDTable
	Resources *Resources
	scenes    map[string]*Scene
}

// LoadCache reads both manifests under root.
func LoadCache(root, resourceManifest, idManifest string) (*Cache, error) {
	ids, err := LoadIDTable(filepath.Join(root, idManifest))
	if err != nil {
		return nil, err
	}
	res, err := LoadResources(filepath.Join(root, resourceManifest))
	if err != nil {
		return nil, err
	}
	c := &Cache{Root: root, IDs: ids, Resources: res, scenes: make(map[string]*Scene)}

	for resID := range res.Characters {
		if err := c.expect(resID, id.ClassCharaHuman); err != nil {
			return nil, err
		}
	}
	for resID := range res.Scenery {
		if err := c.expect(resID, id.ClassStageScenery); err != nil {
			return nil, err
		}
	}
	for resID := range res.Skills {
		if err := c.expect(resID, id.ClassSkill); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Cache) expect(resID string, class id.ClassTag) error {
	got, ok := c.IDs.Class(resID)
	if !ok {
		return fmt.Errorf("resource %s missing from id manifest", resID)
	}
	if got != class {
		return fmt.Errorf("resource %s is %s in the id manifest, want %s", resID, got, class)
	}
	return nil
}

// Scene loads (once) and validates the scene registered under sceneID.
func (c *Cache) Scene(sceneID string) (*Scene, error) {
	if s, ok := c.scenes[sceneID]; ok {
		return s, nil
	}
	if class, ok := c.IDs.Class(sceneID); !ok || !class.IsStage() {
		return nil, fmt.Errorf("scene %s is not a stage in the id manifest", sceneID)
	}
	rel, ok := c.Resources.Scenes[sceneID]
	if !ok {
		return nil, fmt.Errorf("scene %s missing from resource manifest", sceneID)
	}
	s, err := LoadScene(filepath.Join(c.Root, rel))
	if err != nil {
		return nil, err
	}
	for i, sp := range s.Spawns {
		class, ok := c.IDs.Class(sp.Resource)
		if !ok {
			return nil, fmt.Errorf("scene %s spawn %d: unknown resource %s", sceneID, i, sp.Resource)
		}
		if sp.Until != 0 && sp.Until <= sp.At {
			return nil, fmt.Errorf("scene %s spawn %d: until %d not after at %d", sceneID, i, sp.Until, sp.At)
		}
		if class == id.ClassSkill && (sp.Caster < 0 || sp.Caster > len(s.Spawns)) {
			return nil, fmt.Errorf("scene %s spawn %d: caster %d out of range", sceneID, i, sp.Caster)
		}
	}
	c.scenes[sceneID] = s
	return s, nil
}
