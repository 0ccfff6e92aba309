package model

import (
	"github.com/criticalpoint/syncbridge/internal/dispatch"
	"github.com/criticalpoint/syncbridge/internal/id"
)

// RegisterFactories installs the built-in factories for every prop shape in
// this package. Classes already claimed, for instance by scripts, are left
// alone.
func RegisterFactories(d *dispatch.Dispatcher[Actor]) error {
	if !d.Registered(id.ClassStageGeneral) {
		if err := dispatch.Register(d, func(obj id.ObjectID, p StageProp) (Actor, bool, error) {
			return Actor{
				ObjectID: obj,
				Class:    id.ClassStageGeneral,
				Name:     p.Scene.String(),
				Attrs:    map[string]any{"bounds": p.Bounds},
			}, true, nil
		}); err != nil {
			return err
		}
	}
	if !d.Registered(id.ClassStageScenery) {
		if err := dispatch.Register(d, func(obj id.ObjectID, p SceneryProp) (Actor, bool, error) {
			return Actor{
				ObjectID: obj,
				Class:    id.ClassStageScenery,
				Name:     p.Model.String(),
				Attrs:    map[string]any{"position": p.Position},
			}, true, nil
		}); err != nil {
			return err
		}
	}
	if !d.Registered(id.ClassCharaHuman) {
		if err := dispatch.Register(d, func(obj id.ObjectID, p HumanProp) (Actor, bool, error) {
			return Actor{
				ObjectID: obj,
				Class:    id.ClassCharaHuman,
				Name:     p.Name.String(),
				Attrs:    map[string]any{"faction": p.Faction, "max_hp": p.MaxHP},
			}, true, nil
		}); err != nil {
			return err
		}
	}
	if !d.Registered(id.ClassSkill) {
		// skills are data-only
		if err := dispatch.Register(d, func(id.ObjectID, SkillProp) (Actor, bool, error) {
			return Actor{}, false, nil
		}); err != nil {
			return err
		}
	}
	return nil
}
