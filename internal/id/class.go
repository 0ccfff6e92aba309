package id

import "fmt"

// ClassTag identifies the logical type of a record. The high byte is the
// class family.
type ClassTag uint16

const (
	ClassInvalid       ClassTag = 0x0000
	ClassStageGeneral  ClassTag = 0x0101
	ClassStageScenery  ClassTag = 0x0102
	ClassCharaHuman    ClassTag = 0x0201
	ClassSkill         ClassTag = 0x0301
	ClassHitAttachment ClassTag = 0x0401
	ClassHitPathRay    ClassTag = 0x0402
	ClassAction        ClassTag = 0xFFFE
	ClassPrefab        ClassTag = 0xFFFF
)

var classNames = map[ClassTag]string{
	ClassInvalid:       "Invalid",
	ClassStageGeneral:  "StageGeneral",
	ClassStageScenery:  "StageScenery",
	ClassCharaHuman:    "CharaHuman",
	ClassSkill:         "Skill",
	ClassHitAttachment: "HitAttachment",
	ClassHitPathRay:    "HitPathRay",
	ClassAction:        "Action",
	ClassPrefab:        "Prefab",
}

var classByName = func() map[string]ClassTag {
	m := make(map[string]ClassTag, len(classNames))
	for tag, name := range classNames {
		m[name] = tag
	}
	return m
}()

// ParseClassTag maps a class name such as "CharaHuman" to its tag.
func ParseClassTag(name string) (ClassTag, error) {
	tag, ok := classByName[name]
	if !ok {
		return ClassInvalid, fmt.Errorf("unknown class %q", name)
	}
	return tag, nil
}

// Known reports whether the tag is one of the declared classes.
func (c ClassTag) Known() bool {
	_, ok := classNames[c]
	return ok
}

func (c ClassTag) IsValid() bool   { return c != ClassInvalid }
func (c ClassTag) IsInvalid() bool { return c == ClassInvalid }

func (c ClassTag) IsStage() bool     { return c&0xFF00 == 0x0100 }
func (c ClassTag) IsCharacter() bool { return c&0xFF00 == 0x0200 }
func (c ClassTag) IsSkill() bool     { return c&0xFF00 == 0x0300 }
func (c ClassTag) IsAction() bool    { return c == ClassAction }
func (c ClassTag) IsCommand() bool   { return c == ClassPrefab }

func (c ClassTag) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ClassTag(0x%04X)", uint16(c))
}

// MarshalText lets class tags appear by name in YAML and TOML documents.
func (c ClassTag) MarshalText() ([]byte, error) {
	name, ok := classNames[c]
	if !ok {
		return nil, fmt.Errorf("unknown class tag 0x%04X", uint16(c))
	}
	return []byte(name), nil
}

func (c *ClassTag) UnmarshalText(text []byte) error {
	tag, err := ParseClassTag(string(text))
	if err != nil {
		return err
	}
	*c = tag
	return nil
}
