// Package field generates the immutable descriptor population of a debris
// field and holds it for the streaming manager.
package field

import (
	"errors"
	"fmt"
	"math"

	"github.com/Softhook/elite-sub000/internal/content"
	"github.com/Softhook/elite-sub000/internal/rng"
	"github.com/Softhook/elite-sub000/pkg/core"
)

var (
	// ErrInvalidParams is returned by Generate for unusable parameters.
	ErrInvalidParams = errors.New("invalid field parameters")
	// ErrClaimed is returned by Claim once the field has an owner.
	ErrClaimed = errors.New("field already has an owner")
)

const (
	MinDensity = 0.2
	MaxDensity = 2.0

	// one descriptor per this many world units of radius at density 1
	descriptorSpacing = 50.0
	countJitterMin    = 0.8
	countJitterMax    = 1.2

	clusteredChance   = 0.7
	ringWidthFraction = 0.2

	minDriftSpeed = 0.05
	maxDriftSpeed = 0.3
	maxSpin       = 0.02
)

// Params describes the field to generate.
type Params struct {
	Center             core.Vec2
	Radius             float64
	Density            float64
	Category           core.Category
	ActivationDistance float64
	MaxActive          int
}

// Field holds the descriptor population of one circular region.
// Descriptors are kept in generation order and indexed by ID. Everything
// reachable from a Field is read-only; the descriptor flags change only
// through the Owner returned by Claim.
type Field struct {
	center             core.Vec2
	radius             float64
	density            float64
	category           core.Category
	content            content.Config
	activationDistance float64
	maxActive          int

	descriptors []Descriptor
	byID        map[int]*Descriptor
	claimed     bool
}

// Owner changes the manager-owned flags of a claimed field's descriptors.
type Owner struct {
	f *Field
}

// ClampDensity limits d to [MinDensity, MaxDensity].
func ClampDensity(d float64) float64 {
	if math.IsNaN(d) {
		return MinDensity
	}
	return math.Max(MinDensity, math.Min(MaxDensity, d))
}

func (p Params) validate() error {
	if !p.Center.IsFinite() {
		return fmt.Errorf("%w: center must be finite", ErrInvalidParams)
	}
	if math.IsNaN(p.Radius) || math.IsInf(p.Radius, 0) || p.Radius <= 0 {
		return fmt.Errorf("%w: radius must be positive, got %g", ErrInvalidParams, p.Radius)
	}
	if math.IsNaN(p.ActivationDistance) || math.IsInf(p.ActivationDistance, 0) || p.ActivationDistance < 0 {
		return fmt.Errorf("%w: activation distance must be non-negative, got %g", ErrInvalidParams, p.ActivationDistance)
	}
	if p.MaxActive < 0 {
		return fmt.Errorf("%w: max active must be non-negative, got %d", ErrInvalidParams, p.MaxActive)
	}
	return nil
}

// Generate builds a field's population. It runs once per field; the result
// is reproducible exactly when src is seeded identically.
func Generate(p Params, table content.Table, src rng.Source) (*Field, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidParams)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	f := newField(p, table)
	cat := f.content

	count := int(math.Floor((f.radius / descriptorSpacing) * f.density * rng.Uniform(src, countJitterMin, countJitterMax)))
	f.descriptors = make([]Descriptor, count)
	f.byID = make(map[int]*Descriptor, count)

	ringWidth := f.radius * ringWidthFraction
	for i := 0; i < count; i++ {
		var dist float64
		if rng.Chance(src, clusteredChance) {
			dist = rng.Uniform(src, 0, f.radius)
		} else {
			dist = rng.Uniform(src, f.radius-ringWidth, f.radius)
		}
		anchor := f.center.Add(core.Polar(rng.Angle(src), dist))

		f.descriptors[i] = Descriptor{
			ID:       i,
			Anchor:   anchor,
			Angle:    rng.Angle(src),
			Spin:     rng.Uniform(src, -maxSpin, maxSpin),
			Diameter: rng.Uniform(src, cat.MinSize, cat.MaxSize),
			Velocity: core.Polar(rng.Angle(src), rng.Uniform(src, minDriftSpeed, maxDriftSpeed)),
		}
		f.byID[i] = &f.descriptors[i]
	}

	return f, nil
}

// Restore builds an unclaimed field around an existing descriptor set,
// such as the result of Descriptors on another field. Ids must be unique;
// the manager-owned flags of the input are discarded.
func Restore(p Params, table content.Table, descs []Descriptor) (*Field, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	f := newField(p, table)
	f.descriptors = make([]Descriptor, len(descs))
	f.byID = make(map[int]*Descriptor, len(descs))
	for i, d := range descs {
		if _, dup := f.byID[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate descriptor id %d", ErrInvalidParams, d.ID)
		}
		if !d.Anchor.IsFinite() || !(d.Diameter >= content.MinDiameter) {
			return nil, fmt.Errorf("%w: descriptor %d has no usable anchor or diameter", ErrInvalidParams, d.ID)
		}
		f.descriptors[i] = Descriptor{
			ID:       d.ID,
			Anchor:   d.Anchor,
			Angle:    d.Angle,
			Spin:     d.Spin,
			Diameter: d.Diameter,
			Velocity: d.Velocity,
		}
		f.byID[d.ID] = &f.descriptors[i]
	}
	return f, nil
}

func newField(p Params, table content.Table) *Field {
	category := p.Category
	if category == "" {
		category = content.DefaultCategory
	}
	cat, _ := table.Lookup(category)

	return &Field{
		center:             p.Center,
		radius:             p.Radius,
		density:            ClampDensity(p.Density),
		category:           category,
		content:            cat,
		activationDistance: p.ActivationDistance,
		maxActive:          p.MaxActive,
	}
}

// Accessors for the generation parameters.

func (f *Field) Center() core.Vec2 { return f.center }
func (f *Field) Radius() float64 { return f.radius }
func (f *Field) Density() float64 { return f.density }
func (f *Field) Category() core.Category { return f.category }
func (f *Field) Content() content.Config { return f.content }
func (f *Field) ActivationDistance() float64 { return f.activationDistance }
func (f *Field) MaxActive() int { return f.maxActive }

// Len returns the number of descriptors.
func (f *Field) Len() int { return len(f.descriptors) }

// DeactivationDistance is the hysteresis threshold, 1.2 × activation distance.
func (f *Field) DeactivationDistance() float64 { return f.activationDistance * 1.2 }

// Descriptor returns a copy of the descriptor with the given id.
func (f *Field) Descriptor(id int) (Descriptor, bool) {
	d, ok := f.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return *d, true
}

// Descriptors returns a copy of the population in generation order.
func (f *Field) Descriptors() []Descriptor {
	out := make([]Descriptor, len(f.descriptors))
	copy(out, f.descriptors)
	return out
}

// Anchors returns every anchor in the order of Descriptors.
func (f *Field) Anchors() []core.Vec2 {
	out := make([]core.Vec2, len(f.descriptors))
	for i := range f.descriptors {
		out[i] = f.descriptors[i].Anchor
	}
	return out
}

// Info summarises the field for recording.
func (f *Field) Info() core.FieldInfo {
	return core.FieldInfo{
		Center:             f.center,
		Radius:             f.radius,
		Density:            f.density,
		Category:           f.category,
		ActivationDistance: f.activationDistance,
		MaxActive:          f.maxActive,
		Descriptors:        len(f.descriptors),
	}
}

// Claim hands out the field's single Owner and clears every active flag.
// Later calls fail with ErrClaimed.
func (f *Field) Claim() (*Owner, error) {
	if f.claimed {
		return nil, ErrClaimed
	}
	f.claimed = true
	for i := range f.descriptors {
		f.descriptors[i].active = false
	}
	return &Owner{f: f}, nil
}

// Field returns the claimed field.
func (o *Owner) Field() *Field { return o.f }

// The mutators report false for unknown ids.

// SetActive sets the active flag of a descriptor.
func (o *Owner) SetActive(id int, active bool) bool {
	d, ok := o.f.byID[id]
	if !ok {
		return false
	}
	d.active = active
	return true
}

// MarkDestroyed flags a descriptor as permanently destroyed.
func (o *Owner) MarkDestroyed(id int) bool {
	d, ok := o.f.byID[id]
	if !ok {
		return false
	}
	d.destroyed = true
	return true
}

// SetResume stores (or clears, with nil) the resume state of a descriptor.
func (o *Owner) SetResume(id int, s *ResumeState) bool {
	d, ok := o.f.byID[id]
	if !ok {
		return false
	}
	if s == nil {
		d.resume = nil
		return true
	}
	cp := *s
	d.resume = &cp
	return true
}
