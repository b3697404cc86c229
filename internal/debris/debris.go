// Package debris simulates a single live debris instance: drift, rotation,
// hit points and its irregular silhouette.
package debris

import (
	"math"

	"github.com/Softhook/elite-sub000/internal/content"
	"github.com/Softhook/elite-sub000/internal/field"
	"github.com/Softhook/elite-sub000/internal/geo"
	"github.com/Softhook/elite-sub000/internal/rng"
	"github.com/Softhook/elite-sub000/pkg/core"
)

const (
	minVertices   = 6
	maxVertices   = 11
	radiusJitter  = 0.3
	hitPointScale = 2
)

// Target is anything with a bounding circle. ok is false when the target
// has no usable position or size.
type Target interface {
	CollisionCircle() (center core.Vec2, diameter float64, ok bool)
}

// Instance is a live debris object created from a field descriptor.
type Instance struct {
	descriptorID int

	position core.Vec2
	velocity core.Vec2
	angle    float64
	spin     float64
	diameter float64

	// silhouette vertices relative to position at angle 0
	silhouette []core.Vec2

	maxHitPoints float64
	hitPoints    float64
	destroyed    bool

	value        float64
	impactDamage float64
}

// New builds an instance from d. When d carries a resume state the
// instance continues from it; otherwise it starts at the anchor.
// The returned step advances the instance by one physics tick and is the
// only way to move it.
func New(d field.Descriptor, cat content.Config, src rng.Source) (inst *Instance, step func()) {
	maxHP := math.Floor(d.Diameter * hitPointScale)
	inst = &Instance{
		descriptorID: d.ID,
		position:     d.Anchor,
		velocity:     d.Velocity,
		angle:        d.Angle,
		spin:         d.Spin,
		diameter:     d.Diameter,
		silhouette:   silhouette(d.Diameter, src),
		maxHitPoints: maxHP,
		hitPoints:    maxHP,
		value:        d.Diameter * cat.ValueMultiplier,
		impactDamage: d.Diameter * cat.DamageMultiplier,
	}

	if rs, ok := d.Resume(); ok {
		inst.position = rs.Position
		inst.velocity = rs.Velocity
		inst.angle = rs.Angle
		inst.hitPoints = math.Max(0, math.Min(rs.HitPoints, maxHP))
		inst.destroyed = inst.hitPoints == 0
	}
	return inst, inst.update
}

// silhouette places one vertex per evenly spaced angular slot with the
// radius jittered by up to ±30%. An outline that does not form a valid
// polygon falls back to the regular one.
func silhouette(diameter float64, src rng.Source) []core.Vec2 {
	out := starRing(diameter, src)
	if _, err := geo.Polygon(out); err != nil {
		return starRing(diameter, nil)
	}
	return out
}

func starRing(diameter float64, src rng.Source) []core.Vec2 {
	n := minVertices
	if src != nil {
		n += src.IntN(maxVertices - minVertices + 1)
	}
	r := diameter / 2
	step := 2 * math.Pi / float64(n)

	out := make([]core.Vec2, n)
	for i := range out {
		jitter := 1.0
		if src != nil {
			jitter = rng.Uniform(src, 1-radiusJitter, 1+radiusJitter)
		}
		out[i] = core.Polar(float64(i)*step, r*jitter)
	}
	return out
}

// TakeDamage subtracts amount from the hit points and reports whether it
// had any effect. Non-positive or NaN amounts and destroyed instances
// are ignored.
func (i *Instance) TakeDamage(amount float64) bool {
	if i.destroyed || !(amount > 0) {
		return false
	}
	i.hitPoints = math.Max(0, i.hitPoints-amount)
	if i.hitPoints == 0 {
		i.destroyed = true
	}
	return true
}

func (i *Instance) update() {
	if i.destroyed {
		return
	}
	i.position = i.position.Add(i.velocity)
	i.angle += i.spin
}

// CollisionCircle implements Target. Destroyed instances report ok=false.
func (i *Instance) CollisionCircle() (core.Vec2, float64, bool) {
	return i.position, i.diameter, !i.destroyed
}

// CollidesWith tests the bounding circles of i and t for overlap. It is
// an approximation of the silhouette, not an exact polygon test.
func (i *Instance) CollidesWith(t Target) bool {
	if t == nil || i.destroyed {
		return false
	}
	pos, diameter, ok := t.CollisionCircle()
	if !ok || !pos.IsFinite() || !(diameter > 0) || math.IsInf(diameter, 0) {
		return false
	}
	return i.position.Dist(pos) < (i.diameter+diameter)/2
}

// Vertices returns the silhouette in world coordinates.
func (i *Instance) Vertices() []core.Vec2 {
	return geo.Transform(i.position, i.angle, i.silhouette)
}

// Bounds returns the axis-aligned bounding box of the rotated silhouette.
func (i *Instance) Bounds() core.Rect {
	return geo.Bounds(i.Vertices())
}

// ResumeState captures the simulated state for drift persistence.
func (i *Instance) ResumeState() field.ResumeState {
	return field.ResumeState{
		Position:  i.position,
		Velocity:  i.velocity,
		Angle:     i.angle,
		HitPoints: i.hitPoints,
	}
}

func (i *Instance) DescriptorID() int { return i.descriptorID }
func (i *Instance) Position() core.Vec2 { return i.position }
func (i *Instance) Velocity() core.Vec2 { return i.velocity }
func (i *Instance) Angle() float64 { return i.angle }
func (i *Instance) Spin() float64 { return i.spin }
func (i *Instance) Diameter() float64 { return i.diameter }
func (i *Instance) HitPoints() float64 { return i.hitPoints }
func (i *Instance) MaxHitPoints() float64 { return i.maxHitPoints }
func (i *Instance) Destroyed() bool { return i.destroyed }
func (i *Instance) Silhouette() []core.Vec2 { return append([]core.Vec2(nil), i.silhouette...) }

// Value is the reward for destroying the instance.
func (i *Instance) Value() float64 { return i.value }

// ImpactDamage is the damage the instance deals on collision.
func (i *Instance) ImpactDamage() float64 { return i.impactDamage }
