package v1

import (
	"cmp"
	"slices"
	"time"

	"github.com/Softhook/elite-sub000/pkg/core"
)

// SessionData contains all the data needed to build an export
type SessionData struct {
	Session     *core.Session
	Field       *core.FieldInfo
	Descriptors []core.DescriptorInfo

	Activations   []core.Activation
	Deactivations []core.Deactivation
	Destructions  []core.Destruction
	TickStats     []core.TickStats
}

// kindRank orders events inside one tick the way Advance emits them:
// reaping first, then range checks, then admissions.
var kindRank = map[core.EventKind]int{
	core.EventDestroyed:   0,
	core.EventDeactivated: 1,
	core.EventActivated:   2,
}

type eventRow struct {
	tick uint64
	kind core.EventKind
	id   int
	row  []any
}

func xy(v core.Vec2) [2]float64 {
	return [2]float64{v.X, v.Y}
}

// Build creates an Export from the session data
func Build(data *SessionData) Export {
	export := Export{
		FormatVersion: FormatVersion,
		Descriptors:   make([]Descriptor, 0, len(data.Descriptors)),
		Events:        make([][]any, 0),
		Ticks:         make([][]any, 0, len(data.TickStats)),
	}

	if data.Session != nil {
		export.SessionUUID = data.Session.UUID
		export.SessionName = data.Session.Name
		export.Version = data.Session.Version
		export.Seed = data.Session.Seed
		export.StartTime = data.Session.StartTime.UTC().Format(time.RFC3339)
	}
	if data.Field != nil {
		export.Field = Field{
			Center:             xy(data.Field.Center),
			Radius:             data.Field.Radius,
			Density:            data.Field.Density,
			Category:           string(data.Field.Category),
			ActivationDistance: data.Field.ActivationDistance,
			MaxActive:          data.Field.MaxActive,
		}
	}

	index := make(map[int]int, len(data.Descriptors))
	for _, d := range data.Descriptors {
		index[d.ID] = len(export.Descriptors)
		export.Descriptors = append(export.Descriptors, Descriptor{
			ID:       d.ID,
			Anchor:   xy(d.Anchor),
			Angle:    d.Angle,
			Spin:     d.Spin,
			Diameter: d.Diameter,
			Velocity: xy(d.Velocity),
		})
	}

	var maxTick uint64
	seen := func(tick uint64) {
		maxTick = max(maxTick, tick)
	}

	rows := make([]eventRow, 0, len(data.Activations)+len(data.Deactivations)+len(data.Destructions))

	// Format: [tick, "activated", id, [x, y], distance]
	for _, a := range data.Activations {
		if i, ok := index[a.DescriptorID]; ok {
			export.Descriptors[i].Activations++
			if len(a.Silhouette) > 0 {
				sil := make([][2]float64, len(a.Silhouette))
				for j, v := range a.Silhouette {
					sil[j] = xy(v)
				}
				export.Descriptors[i].Silhouette = sil
			}
		}
		rows = append(rows, eventRow{a.Tick, core.EventActivated, a.DescriptorID,
			[]any{a.Tick, string(core.EventActivated), a.DescriptorID, xy(a.Position), a.Distance}})
		seen(a.Tick)
	}

	// Format: [tick, "deactivated", id, [x, y], distance]
	for _, d := range data.Deactivations {
		rows = append(rows, eventRow{d.Tick, core.EventDeactivated, d.DescriptorID,
			[]any{d.Tick, string(core.EventDeactivated), d.DescriptorID, xy(d.Position), d.Distance}})
		seen(d.Tick)
	}

	// Format: [tick, "destroyed", id, [x, y], value]
	for _, d := range data.Destructions {
		if i, ok := index[d.DescriptorID]; ok {
			export.Descriptors[i].Destroyed = true
		}
		rows = append(rows, eventRow{d.Tick, core.EventDestroyed, d.DescriptorID,
			[]any{d.Tick, string(core.EventDestroyed), d.DescriptorID, xy(d.Position), d.Value}})
		seen(d.Tick)
	}

	slices.SortStableFunc(rows, func(a, b eventRow) int {
		return cmp.Or(
			cmp.Compare(a.tick, b.tick),
			cmp.Compare(kindRank[a.kind], kindRank[b.kind]),
		)
	})
	for _, r := range rows {
		export.Events = append(export.Events, r.row)
	}

	for _, s := range data.TickStats {
		export.Ticks = append(export.Ticks, []any{
			s.Tick,
			s.Active,
			s.Activated,
			s.Deactivated,
			s.Destroyed,
			s.Duration.Microseconds(),
		})
		seen(s.Tick)
	}

	export.EndTick = maxTick
	return export
}
