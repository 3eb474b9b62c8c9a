// Package choreo holds named poses and sequences loaded from JSON documents.
package choreo

import (
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const descriptionKey = "description"

// Pose is a set of joint angles per limb. Limbs keep their definition order.
//
// On the wire a pose is a flat object: an optional "description" string next
// to one object per limb.
//
//	{"description": "Arms up", "left_arm": {"shoulder": 30, "elbow": 60}}
type Pose struct {
	Description string
	limbs       *orderedmap.OrderedMap[string, map[string]float64]
}

// NewPose creates an empty pose.
func NewPose(description string) Pose {
	return Pose{Description: description}
}

// Set sets the angle of one joint, adding the limb if needed.
func (p *Pose) Set(limb, joint string, angle float64) {
	if p.limbs == nil {
		p.limbs = orderedmap.New[string, map[string]float64]()
	}
	joints, ok := p.limbs.Get(limb)
	if !ok {
		joints = make(map[string]float64)
		p.limbs.Set(limb, joints)
	}
	joints[joint] = angle
}

// SetLimb replaces the joint angles of one limb.
func (p *Pose) SetLimb(limb string, joints map[string]float64) {
	if p.limbs == nil {
		p.limbs = orderedmap.New[string, map[string]float64]()
	}
	p.limbs.Set(limb, maps.Clone(joints))
}

// Limbs yields each limb with a copy of its joint angles, in definition order.
func (p Pose) Limbs() iter.Seq2[string, map[string]float64] {
	return func(yield func(string, map[string]float64) bool) {
		if p.limbs == nil {
			return
		}
		for pair := p.limbs.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, maps.Clone(pair.Value)) {
				return
			}
		}
	}
}

// Joints returns a copy of the angles for limb.
func (p Pose) Joints(limb string) (map[string]float64, bool) {
	if p.limbs == nil {
		return nil, false
	}
	joints, ok := p.limbs.Get(limb)
	if !ok {
		return nil, false
	}
	return maps.Clone(joints), true
}

// NumLimbs returns the number of limbs the pose addresses.
func (p Pose) NumLimbs() int {
	if p.limbs == nil {
		return 0
	}
	return p.limbs.Len()
}

// Clone returns a deep copy.
func (p Pose) Clone() Pose {
	out := Pose{Description: p.Description}
	for limb, joints := range p.Limbs() {
		out.SetLimb(limb, joints)
	}
	return out
}

func (p Pose) MarshalJSON() ([]byte, error) {
	doc := orderedmap.New[string, any]()
	if p.Description != "" {
		doc.Set(descriptionKey, p.Description)
	}
	for limb, joints := range p.Limbs() {
		doc.Set(limb, joints)
	}
	return json.Marshal(doc)
}

func (p *Pose) UnmarshalJSON(data []byte) error {
	raw := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, raw); err != nil {
		return fmt.Errorf("pose: %w", err)
	}

	*p = Pose{}
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == descriptionKey {
			if err := json.Unmarshal(pair.Value, &p.Description); err != nil {
				return fmt.Errorf("pose description: %w", err)
			}
			continue
		}
		var joints map[string]*float64
		if err := json.Unmarshal(pair.Value, &joints); err != nil {
			return fmt.Errorf("pose limb %q: %w", pair.Key, err)
		}
		if joints == nil {
			return fmt.Errorf("pose limb %q: expected an object of joint angles", pair.Key)
		}
		angles := make(map[string]float64, len(joints))
		for _, joint := range slices.Sorted(maps.Keys(joints)) {
			a := joints[joint]
			if a == nil {
				return fmt.Errorf("pose limb %q joint %q: angle is null", pair.Key, joint)
			}
			angles[joint] = *a
		}
		p.SetLimb(pair.Key, angles)
	}
	return nil
}
