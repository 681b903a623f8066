// pkg/core/types.go
package core

import "sort"

// Channel identifies an image kind a camera produces per frame.
type Channel string

const (
	ChannelGrayscale Channel = "grayscale"
	ChannelSemantic  Channel = "semantic"
)

// Channels lists every channel a LAC archive can record.
var Channels = []Channel{ChannelGrayscale, ChannelSemantic}

// Valid reports whether c names a recordable channel.
func (c Channel) Valid() bool {
	return c == ChannelGrayscale || c == ChannelSemantic
}

// Position3D represents a 3D coordinate in the lunar site frame
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Rotation3D represents an orientation as intrinsic Euler angles in radians
type Rotation3D struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Transform combines a position and an orientation
type Transform struct {
	Position Position3D `json:"position"`
	Rotation Rotation3D `json:"rotation"`
}

// TransformFromSlice builds a Transform from a flat [x y z roll pitch yaw]
// pose, the layout the initial record uses for the rover and lander poses.
func TransformFromSlice(pose []float64) Transform {
	var t Transform
	if len(pose) > 0 {
		t.Position.X = pose[0]
	}
	if len(pose) > 1 {
		t.Position.Y = pose[1]
	}
	if len(pose) > 2 {
		t.Position.Z = pose[2]
	}
	if len(pose) > 3 {
		t.Rotation.Roll = pose[3]
	}
	if len(pose) > 4 {
		t.Rotation.Pitch = pose[4]
	}
	if len(pose) > 5 {
		t.Rotation.Yaw = pose[5]
	}
	return t
}

// CameraConfig is one camera's block in the initial record.
type CameraConfig struct {
	UseSemantic    bool    `json:"useSemantic" toml:"use_semantic"`
	LightIntensity float64 `json:"lightIntensity" toml:"light_intensity"`
	Width          int     `json:"width" toml:"width"`
	Height         int     `json:"height" toml:"height"`
}

// Initial is the session's initial record, captured once at session start.
type Initial struct {
	Fiducials bool                    `json:"fiducials"`
	Rover     []float64               `json:"rover"`  // starting pose [x y z roll pitch yaw]
	Lander    []float64               `json:"lander"` // lander pose [x y z roll pitch yaw]
	Cameras   map[string]CameraConfig `json:"cameras"`

	// Raw holds every key of the record, including ones not modeled above.
	Raw map[string]any `json:"raw,omitempty"`
}

// CameraNames returns the declared camera names in stable sorted order.
func (i *Initial) CameraNames() []string {
	names := make([]string, 0, len(i.Cameras))
	for name := range i.Cameras {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
