// pkg/core/session.go
package core

import "time"

// Category tags a debris field and selects its size range and multipliers.
type Category string

// Session is one recorded run of a streaming manager over a field.
type Session struct {
	ID        uint
	UUID      string
	Name      string
	StartTime time.Time
	Seed      uint64
	Version   string
}

// FieldInfo describes the field a session streams.
type FieldInfo struct {
	ID                 uint
	Center             Vec2
	Radius             float64
	Density            float64
	Category           Category
	ActivationDistance float64
	MaxActive          int
	Descriptors        int
}

// DescriptorInfo is the recorded, immutable part of a descriptor.
type DescriptorInfo struct {
	ID       int
	Anchor   Vec2
	Angle    float64
	Spin     float64
	Diameter float64
	Velocity Vec2
}

// Activation records a descriptor gaining a live instance.
type Activation struct {
	DescriptorID int
	Tick         uint64
	Time         time.Time
	Position     Vec2
	Distance     float64
	Diameter     float64
	Silhouette   []Vec2
}

// Deactivation records a live instance being discarded by distance.
type Deactivation struct {
	DescriptorID int
	Tick         uint64
	Time         time.Time
	Position     Vec2
	Distance     float64
}

// Destruction records a live instance reaching zero hit points.
type Destruction struct {
	DescriptorID int
	Tick         uint64
	Time         time.Time
	Position     Vec2
	Diameter     float64
	Value        float64
}
