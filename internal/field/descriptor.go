package field

import "github.com/Softhook/elite-sub000/pkg/core"

// ResumeState is the simulated state carried over from a discarded
// instance when drift persistence is enabled.
type ResumeState struct {
	Position  core.Vec2
	Velocity  core.Vec2
	Angle     float64
	HitPoints float64
}

// Descriptor is the logical record for one potential debris entity.
// Everything except the manager-owned flags is fixed at generation.
type Descriptor struct {
	ID       int
	Anchor   core.Vec2
	Angle    float64
	Spin     float64
	Diameter float64
	Velocity core.Vec2

	active    bool
	destroyed bool
	resume    *ResumeState
}

// Active reports whether a live instance currently represents d.
func (d Descriptor) Active() bool { return d.active }

// Destroyed reports whether d's instance was destroyed and must not respawn.
func (d Descriptor) Destroyed() bool { return d.destroyed }

// Resume returns the persisted state of the last instance, if any.
func (d Descriptor) Resume() (ResumeState, bool) {
	if d.resume == nil {
		return ResumeState{}, false
	}
	return *d.resume, true
}

// Info returns the immutable part of d for recording.
func (d Descriptor) Info() core.DescriptorInfo {
	return core.DescriptorInfo{
		ID:       d.ID,
		Anchor:   d.Anchor,
		Angle:    d.Angle,
		Spin:     d.Spin,
		Diameter: d.Diameter,
		Velocity: d.Velocity,
	}
}
