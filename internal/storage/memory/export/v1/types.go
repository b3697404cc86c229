// Package v1 contains the v1 export format for recorded debris field sessions.
package v1

// FormatVersion is written to every export built by this package.
const FormatVersion = 1

// Export is the root JSON structure for v1 format
type Export struct {
	FormatVersion int          `json:"formatVersion"`
	SessionUUID   string       `json:"sessionUuid"`
	SessionName   string       `json:"sessionName"`
	Version       string       `json:"version"`
	Seed          uint64       `json:"seed"`
	StartTime     string       `json:"startTime"`
	EndTick       uint64       `json:"endTick"`
	Field         Field        `json:"field"`
	Descriptors   []Descriptor `json:"descriptors"`
	// Events rows: [tick, kind, descriptorId, [x, y], detail]
	Events [][]any `json:"events"`
	// Ticks rows: [tick, active, activated, deactivated, destroyed, durationUs]
	Ticks [][]any `json:"ticks"`
}

// Field holds the generation parameters of the recorded field
type Field struct {
	Center             [2]float64 `json:"center"`
	Radius             float64    `json:"radius"`
	Density            float64    `json:"density"`
	Category           string     `json:"category"`
	ActivationDistance float64    `json:"activationDistance"`
	MaxActive          int        `json:"maxActive"`
}

// Descriptor is one descriptor with a summary of what happened to it
type Descriptor struct {
	ID          int          `json:"id"`
	Anchor      [2]float64   `json:"anchor"`
	Angle       float64      `json:"angle"`
	Spin        float64      `json:"spin"`
	Diameter    float64      `json:"diameter"`
	Velocity    [2]float64   `json:"velocity"`
	Activations int          `json:"activations"`
	Destroyed   bool         `json:"destroyed"`
	Silhouette  [][2]float64 `json:"silhouette,omitempty"` // from the last activation
}
