package scene

import (
	"fmt"
	"math"

	"github.com/criticalpoint/syncbridge/internal/generation"
	"github.com/criticalpoint/syncbridge/internal/id"
	"github.com/criticalpoint/syncbridge/internal/model"
)

// stageID is the ObjectID of the stage in every session.
const stageID id.ObjectID = 1

type object struct {
	objID  id.ObjectID
	class  id.ClassTag
	spawn  int // index into Scene.Spawns, -1 for the stage
	resID  string
	born   uint64
	until  uint64
	pos    model.Vec3
	vel    model.Vec3
	hp     int32
	caster id.ObjectID
}

// Simulation plays a scene timeline one tick at a time. Objects get
// ascending ObjectIDs that are never reused.
type Simulation struct {
	cache   *Cache
	scene   *Scene
	sceneID string
	tps     uint32
	tick    uint64
	nextID  id.ObjectID
	live    []*object
	bySpawn map[int]*object
}

func NewSimulation(cache *Cache, sceneID string, ticksPerSecond uint32) (*Simulation, error) {
	if ticksPerSecond == 0 {
		return nil, fmt.Errorf("session %s: ticks per second must be positive", sceneID)
	}
	s, err := cache.Scene(sceneID)
	if err != nil {
		return nil, err
	}
	return &Simulation{
		cache:   cache,
		scene:   s,
		sceneID: sceneID,
		tps:     ticksPerSecond,
		nextID:  stageID,
		bySpawn: make(map[int]*object),
	}, nil
}

func (s *Simulation) Tick() uint64 { return s.tick }
func (s *Simulation) Live() int    { return len(s.live) }

// Step advances one tick and lays the resulting generation out in b.
func (s *Simulation) Step(b *generation.Builder) error {
	s.tick++

	if s.tick == 1 {
		stage := s.create(id.ClassStageGeneral, -1, s.sceneID)
		if _, err := generation.AddPropShape(b, stage.objID, model.StageProp{
			Scene:  model.NewName(s.scene.Name),
			Bounds: s.scene.Bounds,
		}); err != nil {
			return err
		}
	}
	for i := range s.scene.Spawns {
		sp := &s.scene.Spawns[i]
		if max(sp.At, 1) != s.tick {
			continue
		}
		if err := s.spawn(b, i, sp); err != nil {
			return err
		}
	}

	dt := 1 / float32(s.tps)
	kept := s.live[:0]
	for _, o := range s.live {
		lc := id.LifecycleRunning
		if o.born == s.tick {
			lc = id.LifecycleCreated
		} else {
			s.move(o, dt)
		}
		if s.ends(o) {
			lc = id.LifecycleDestroyed
		}
		if err := s.state(b, o, lc); err != nil {
			return err
		}
		if lc != id.LifecycleDestroyed {
			kept = append(kept, o)
		} else {
			delete(s.bySpawn, o.spawn)
		}
	}
	clear(s.live[len(kept):])
	s.live = kept
	return nil
}

func (s *Simulation) create(class id.ClassTag, spawn int, resID string) *object {
	o := &object{objID: s.nextID, class: class, spawn: spawn, resID: resID, born: s.tick, caster: id.InvalidObjectID}
	s.nextID++
	s.live = append(s.live, o)
	if spawn >= 0 {
		s.bySpawn[spawn] = o
	}
	return o
}

func (s *Simulation) spawn(b *generation.Builder, i int, sp *Spawn) error {
	class, _ := s.cache.IDs.Class(sp.Resource)
	o := s.create(class, i, sp.Resource)
	o.until = sp.Until
	o.pos = sp.Position
	o.vel = sp.Velocity

	res := s.cache.Resources
	switch class {
	case id.ClassCharaHuman:
		c := res.Characters[sp.Resource]
		o.hp = c.MaxHP
		_, err := generation.AddPropShape(b, o.objID, model.HumanProp{
			Name:    model.NewName(c.Name),
			Faction: c.Faction,
			MaxHP:   c.MaxHP,
		})
		return err
	case id.ClassStageScenery:
		_, err := generation.AddPropShape(b, o.objID, model.SceneryProp{
			Model:    model.NewName(res.Scenery[sp.Resource].Model),
			Position: o.pos,
		})
		return err
	case id.ClassSkill:
		sk := res.Skills[sp.Resource]
		if o.until == 0 && sk.Duration > 0 {
			o.until = o.born + uint64(sk.Duration)
		}
		if sp.Caster > 0 {
			if c, ok := s.bySpawn[sp.Caster-1]; ok {
				o.caster = c.objID
			}
		}
		_, err := generation.AddPropShape(b, o.objID, model.SkillProp{
			Skill:  model.NewName(sk.Name),
			Caster: o.caster,
		})
		return err
	}
	// classes without a payload shape still publish their header
	b.AddProp(o.objID, class, nil)
	return nil
}

func (s *Simulation) move(o *object, dt float32) {
	for k := range o.pos {
		o.pos[k] += o.vel[k] * dt
	}
	if o.class == id.ClassCharaHuman {
		c := s.cache.Resources.Characters[o.resID]
		o.hp = min(max(o.hp+c.Regen, 0), c.MaxHP)
	}
}

func (s *Simulation) ends(o *object) bool {
	if o.until != 0 && s.tick >= o.until {
		return true
	}
	return o.class == id.ClassCharaHuman && o.hp <= 0
}

func (s *Simulation) state(b *generation.Builder, o *object, lc id.Lifecycle) error {
	var err error
	switch o.class {
	case id.ClassStageGeneral:
		_, err = generation.AddStateShape(b, o.objID, lc, model.StageState{
			Frame:   uint32(s.tick),
			Elapsed: float32(s.tick) / float32(s.tps),
		})
	case id.ClassCharaHuman:
		var action uint16
		if o.vel != (model.Vec3{}) {
			action = 1
		}
		_, err = generation.AddStateShape(b, o.objID, lc, model.HumanState{
			Position:  o.pos,
			Direction: float32(math.Atan2(float64(o.vel[2]), float64(o.vel[0]))),
			HP:        o.hp,
			Action:    action,
		})
	case id.ClassSkill:
		var progress float32
		if o.until > o.born {
			progress = float32(s.tick-o.born) / float32(o.until-o.born)
		}
		_, err = generation.AddStateShape(b, o.objID, lc, model.SkillState{
			Caster:   o.caster,
			Progress: progress,
		})
	default:
		b.AddState(o.objID, o.class, lc, nil)
	}
	return err
}
