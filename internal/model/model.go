package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Field{},
	&Descriptor{},
	&Activation{},
	&Deactivation{},
	&Destruction{},
	&TickStat{},
}

////////////////////////
// SESSION MODELS
////////////////////////

// Session is one recorded run of the streaming manager.
type Session struct {
	gorm.Model
	UUID      string       `json:"uuid" gorm:"size:36;uniqueIndex:idx_session_uuid"`
	Name      string       `json:"name" gorm:"size:200"`
	StartTime time.Time    `json:"sessionStart" gorm:"type:timestamptz;index:idx_session_start"`
	EndTime   sql.NullTime `json:"sessionEnd" gorm:"type:timestamptz;default:NULL"`
	// Seed is stored bit-for-bit; postgres has no unsigned 64-bit column.
	Seed    int64  `json:"seed"`
	Version string `json:"version" gorm:"size:64"`

	Field       Field `json:"field"`
	Descriptors []Descriptor
}

func (*Session) TableName() string {
	return "sessions"
}

// Field holds the generation parameters of a session's debris field.
type Field struct {
	ID                 uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID          uint    `json:"sessionId" gorm:"uniqueIndex:idx_field_session_id"`
	CenterX            float64 `json:"centerX"`
	CenterY            float64 `json:"centerY"`
	Radius             float64 `json:"radius"`
	Density            float64 `json:"density"`
	Category           string  `json:"category" gorm:"size:32"`
	ActivationDistance float64 `json:"activationDistance"`
	MaxActive          int     `json:"maxActive"`
	Descriptors        int     `json:"descriptors"`
}

func (*Field) TableName() string {
	return "fields"
}

// Descriptor is the immutable record of one generated descriptor.
type Descriptor struct {
	ID           uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID    uint    `json:"sessionId" gorm:"index:idx_descriptor_session_id"`
	Session      Session `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	DescriptorID int     `json:"descriptorId" gorm:"index:idx_descriptor_descriptor_id"`
	AnchorX      float64 `json:"anchorX"`
	AnchorY      float64 `json:"anchorY"`
	Angle        float64 `json:"angle"`
	Spin         float64 `json:"spin"`
	Diameter     float64 `json:"diameter"`
	VelocityX    float64 `json:"velocityX"`
	VelocityY    float64 `json:"velocityY"`
}

func (*Descriptor) TableName() string {
	return "descriptors"
}

////////////////////////
// STREAM RECORDS
////////////////////////

// Activation is written when a descriptor gains a live instance.
type Activation struct {
	ID           uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time         time.Time `json:"time" gorm:"type:timestamptz;"`
	SessionID    uint      `json:"sessionId" gorm:"index:idx_activation_session_id"`
	Session      Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Tick         uint64    `json:"tick" gorm:"index:idx_activation_tick"`
	DescriptorID int       `json:"descriptorId" gorm:"index:idx_activation_descriptor_id"`
	PositionX    float64   `json:"positionX"`
	PositionY    float64   `json:"positionY"`
	Distance     float64   `json:"distance"`
	Diameter     float64   `json:"diameter"`
	// Silhouette is the world-space outline as a GeoJSON Polygon.
	Silhouette datatypes.JSON `json:"silhouette"`
}

func (*Activation) TableName() string {
	return "activations"
}

// Deactivation is written when a live instance drifts out of range.
type Deactivation struct {
	ID           uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time         time.Time `json:"time" gorm:"type:timestamptz;"`
	SessionID    uint      `json:"sessionId" gorm:"index:idx_deactivation_session_id"`
	Session      Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Tick         uint64    `json:"tick" gorm:"index:idx_deactivation_tick"`
	DescriptorID int       `json:"descriptorId" gorm:"index:idx_deactivation_descriptor_id"`
	PositionX    float64   `json:"positionX"`
	PositionY    float64   `json:"positionY"`
	Distance     float64   `json:"distance"`
}

func (*Deactivation) TableName() string {
	return "deactivations"
}

// Destruction is written when a live instance runs out of hit points.
type Destruction struct {
	ID           uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time         time.Time `json:"time" gorm:"type:timestamptz;"`
	SessionID    uint      `json:"sessionId" gorm:"index:idx_destruction_session_id"`
	Session      Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Tick         uint64    `json:"tick" gorm:"index:idx_destruction_tick"`
	DescriptorID int       `json:"descriptorId" gorm:"index:idx_destruction_descriptor_id"`
	PositionX    float64   `json:"positionX"`
	PositionY    float64   `json:"positionY"`
	Diameter     float64   `json:"diameter"`
	Value        float64   `json:"value"`
}

func (*Destruction) TableName() string {
	return "destructions"
}

// TickStat summarises one Advance call.
type TickStat struct {
	ID          uint            `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time       `json:"time" gorm:"type:timestamptz;"`
	SessionID   uint            `json:"sessionId" gorm:"index:idx_tickstat_session_id"`
	Session     Session         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Tick        uint64          `json:"tick" gorm:"index:idx_tickstat_tick"`
	Active      int             `json:"active"`
	Activated   int             `json:"activated"`
	Deactivated int             `json:"deactivated"`
	Destroyed   int             `json:"destroyed"`
	DurationUs  int64           `json:"durationUs"`
	ObserverX   sql.NullFloat64 `json:"observerX" gorm:"default:NULL"`
	ObserverY   sql.NullFloat64 `json:"observerY" gorm:"default:NULL"`
}

func (*TickStat) TableName() string {
	return "tick_stats"
}
