// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"

	"github.com/Softhook/elite-sub000/internal/geo"
	"github.com/Softhook/elite-sub000/internal/model"
	"github.com/Softhook/elite-sub000/pkg/core"
	"gorm.io/datatypes"
)

// emptySilhouette is the GeoJSON of an empty polygon.
const emptySilhouette = `{"type":"Polygon","coordinates":[]}`

// silhouetteToJSON converts a world-space outline to a GeoJSON Polygon for
// DB storage. Outlines that do not form a valid polygon are stored empty.
func silhouetteToJSON(vs []core.Vec2) datatypes.JSON {
	if len(vs) == 0 {
		return datatypes.JSON(emptySilhouette)
	}
	data, err := geo.FormatRing(vs)
	if err != nil {
		return datatypes.JSON(emptySilhouette)
	}
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM model.Session.
// The field is attached so a single Create inserts both rows.
func CoreToSession(s core.Session, f core.FieldInfo) model.Session {
	return model.Session{
		UUID:      s.UUID,
		Name:      s.Name,
		StartTime: s.StartTime,
		Seed:      int64(s.Seed),
		Version:   s.Version,
		Field:     CoreToField(f),
	}
}

// CoreToField converts a core.FieldInfo to a GORM model.Field.
func CoreToField(f core.FieldInfo) model.Field {
	return model.Field{
		CenterX:            f.Center.X,
		CenterY:            f.Center.Y,
		Radius:             f.Radius,
		Density:            f.Density,
		Category:           string(f.Category),
		ActivationDistance: f.ActivationDistance,
		MaxActive:          f.MaxActive,
		Descriptors:        f.Descriptors,
	}
}

// CoreToDescriptor converts a core.DescriptorInfo to a GORM model.Descriptor.
func CoreToDescriptor(d core.DescriptorInfo) model.Descriptor {
	return model.Descriptor{
		DescriptorID: d.ID,
		AnchorX:      d.Anchor.X,
		AnchorY:      d.Anchor.Y,
		Angle:        d.Angle,
		Spin:         d.Spin,
		Diameter:     d.Diameter,
		VelocityX:    d.Velocity.X,
		VelocityY:    d.Velocity.Y,
	}
}

// CoreToActivation converts a core.Activation to a GORM model.Activation.
func CoreToActivation(a core.Activation) model.Activation {
	return model.Activation{
		Time:         a.Time,
		Tick:         a.Tick,
		DescriptorID: a.DescriptorID,
		PositionX:    a.Position.X,
		PositionY:    a.Position.Y,
		Distance:     a.Distance,
		Diameter:     a.Diameter,
		Silhouette:   silhouetteToJSON(a.Silhouette),
	}
}

// CoreToDeactivation converts a core.Deactivation to a GORM model.Deactivation.
func CoreToDeactivation(d core.Deactivation) model.Deactivation {
	return model.Deactivation{
		Time:         d.Time,
		Tick:         d.Tick,
		DescriptorID: d.DescriptorID,
		PositionX:    d.Position.X,
		PositionY:    d.Position.Y,
		Distance:     d.Distance,
	}
}

// CoreToDestruction converts a core.Destruction to a GORM model.Destruction.
func CoreToDestruction(d core.Destruction) model.Destruction {
	return model.Destruction{
		Time:         d.Time,
		Tick:         d.Tick,
		DescriptorID: d.DescriptorID,
		PositionX:    d.Position.X,
		PositionY:    d.Position.Y,
		Diameter:     d.Diameter,
		Value:        d.Value,
	}
}

// CoreToTickStat converts a core.TickStats to a GORM model.TickStat.
// A nil observer is stored as NULL coordinates.
func CoreToTickStat(s core.TickStats) model.TickStat {
	stat := model.TickStat{
		Time:        s.Time,
		Tick:        s.Tick,
		Active:      s.Active,
		Activated:   s.Activated,
		Deactivated: s.Deactivated,
		Destroyed:   s.Destroyed,
		DurationUs:  s.Duration.Microseconds(),
	}
	if s.Observer != nil {
		stat.ObserverX = sql.NullFloat64{Float64: s.Observer.X, Valid: true}
		stat.ObserverY = sql.NullFloat64{Float64: s.Observer.Y, Valid: true}
	}
	return stat
}
