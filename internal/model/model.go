// Package model holds the payload shapes of the known classes and the
// representation the bundled factories materialize.
package model

import (
	"bytes"
	"fmt"

	"github.com/criticalpoint/syncbridge/internal/id"
)

// Vec3 is three packed float32 components.
type Vec3 [3]float32

// Name is a fixed, NUL-padded UTF-8 field.
type Name [24]byte

func NewName(s string) Name {
	var n Name
	copy(n[:], s)
	return n
}

func (n Name) String() string {
	if i := bytes.IndexByte(n[:], 0); i >= 0 {
		return string(n[:i])
	}
	return string(n[:])
}

// StageProp describes a stage when it is created.
type StageProp struct {
	Scene  Name
	Bounds Vec3
}

func (StageProp) PropClass() id.ClassTag { return id.ClassStageGeneral }

type StageState struct {
	Frame   uint32
	Elapsed float32
}

func (StageState) StateClass() id.ClassTag { return id.ClassStageGeneral }

type SceneryProp struct {
	Model    Name
	Position Vec3
}

func (SceneryProp) PropClass() id.ClassTag { return id.ClassStageScenery }

type HumanProp struct {
	Name    Name
	Faction uint32
	MaxHP   int32
}

func (HumanProp) PropClass() id.ClassTag { return id.ClassCharaHuman }

type HumanState struct {
	Position  Vec3
	Direction float32
	HP        int32
	Action    uint16
	_         [2]byte
}

func (HumanState) StateClass() id.ClassTag { return id.ClassCharaHuman }

type SkillProp struct {
	Skill  Name
	Caster id.ObjectID
}

func (SkillProp) PropClass() id.ClassTag { return id.ClassSkill }

type SkillState struct {
	Caster   id.ObjectID
	Progress float32
	_        [4]byte
}

func (SkillState) StateClass() id.ClassTag { return id.ClassSkill }

// Actor is what the bundled factories materialize for a new descriptor.
type Actor struct {
	ObjectID id.ObjectID
	Class    id.ClassTag
	Name     string
	Attrs    map[string]any
}

func (a Actor) String() string {
	return fmt.Sprintf("%s %s %q", a.Class, a.ObjectID, a.Name)
}
