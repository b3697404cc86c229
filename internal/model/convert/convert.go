package convert

import (
	"time"

	"github.com/Softhook/elite-sub000/internal/geo"
	"github.com/Softhook/elite-sub000/internal/model"
	"github.com/Softhook/elite-sub000/pkg/core"
	"gorm.io/datatypes"
)

// jsonToSilhouette converts stored silhouette JSON back to vertices.
// Malformed or empty data yields nil.
func jsonToSilhouette(data datatypes.JSON) []core.Vec2 {
	if len(data) == 0 {
		return nil
	}
	vs, err := geo.ParseRing(data)
	if err != nil {
		return nil
	}
	return vs
}

// SessionToCore converts a GORM Session to a core.Session.
func SessionToCore(s *model.Session) core.Session {
	return core.Session{
		ID:        s.ID,
		UUID:      s.UUID,
		Name:      s.Name,
		StartTime: s.StartTime,
		Seed:      uint64(s.Seed),
		Version:   s.Version,
	}
}

// FieldToCore converts a GORM Field to a core.FieldInfo.
func FieldToCore(f model.Field) core.FieldInfo {
	return core.FieldInfo{
		ID:                 f.ID,
		Center:             core.Vec2{X: f.CenterX, Y: f.CenterY},
		Radius:             f.Radius,
		Density:            f.Density,
		Category:           core.Category(f.Category),
		ActivationDistance: f.ActivationDistance,
		MaxActive:          f.MaxActive,
		Descriptors:        f.Descriptors,
	}
}

// DescriptorToCore converts a GORM Descriptor to a core.DescriptorInfo.
func DescriptorToCore(d model.Descriptor) core.DescriptorInfo {
	return core.DescriptorInfo{
		ID:       d.DescriptorID,
		Anchor:   core.Vec2{X: d.AnchorX, Y: d.AnchorY},
		Angle:    d.Angle,
		Spin:     d.Spin,
		Diameter: d.Diameter,
		Velocity: core.Vec2{X: d.VelocityX, Y: d.VelocityY},
	}
}

// ActivationToCore converts a GORM Activation to a core.Activation.
func ActivationToCore(a model.Activation) core.Activation {
	return core.Activation{
		DescriptorID: a.DescriptorID,
		Tick:         a.Tick,
		Time:         a.Time,
		Position:     core.Vec2{X: a.PositionX, Y: a.PositionY},
		Distance:     a.Distance,
		Diameter:     a.Diameter,
		Silhouette:   jsonToSilhouette(a.Silhouette),
	}
}

// DeactivationToCore converts a GORM Deactivation to a core.Deactivation.
func DeactivationToCore(d model.Deactivation) core.Deactivation {
	return core.Deactivation{
		DescriptorID: d.DescriptorID,
		Tick:         d.Tick,
		Time:         d.Time,
		Position:     core.Vec2{X: d.PositionX, Y: d.PositionY},
		Distance:     d.Distance,
	}
}

// DestructionToCore converts a GORM Destruction to a core.Destruction.
func DestructionToCore(d model.Destruction) core.Destruction {
	return core.Destruction{
		DescriptorID: d.DescriptorID,
		Tick:         d.Tick,
		Time:         d.Time,
		Position:     core.Vec2{X: d.PositionX, Y: d.PositionY},
		Diameter:     d.Diameter,
		Value:        d.Value,
	}
}

// TickStatToCore converts a GORM TickStat to a core.TickStats.
func TickStatToCore(s model.TickStat) core.TickStats {
	stats := core.TickStats{
		Tick:        s.Tick,
		Time:        s.Time,
		Active:      s.Active,
		Activated:   s.Activated,
		Deactivated: s.Deactivated,
		Destroyed:   s.Destroyed,
		Duration:    time.Duration(s.DurationUs) * time.Microsecond,
	}
	if s.ObserverX.Valid && s.ObserverY.Valid {
		stats.Observer = &core.Vec2{X: s.ObserverX.Float64, Y: s.ObserverY.Float64}
	}
	return stats
}
