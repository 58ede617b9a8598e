package compositor

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Scheme selects how a decoded frame is turned into the two eye images.
type Scheme int

const (
	// SingleImage shows the whole frame unchanged to both eyes.
	SingleImage Scheme = iota
	// LeftRight180 treats the halves as 180 degree per-eye panoramas.
	LeftRight180
	// Flat3D shows the eye images on a flat virtual screen.
	Flat3D
)

var schemeNames = map[Scheme]string{
	SingleImage:  "single",
	LeftRight180: "lr180",
	Flat3D:       "flat3d",
}

func (s Scheme) String() string {
	if n, ok := schemeNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Scheme(%d)", int(s))
}

func ParseScheme(name string) (Scheme, error) {
	for s, n := range schemeNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown scheme %q", name)
}

// SplitMode says where the two eye images are in the frame.
type SplitMode int

const (
	SplitLeftRight SplitMode = iota
	SplitUpDown
	// SplitMono gives both eyes the whole frame.
	SplitMono
)

var splitNames = map[SplitMode]string{
	SplitLeftRight: "lr",
	SplitUpDown:    "ud",
	SplitMono:      "mono",
}

func (m SplitMode) String() string {
	if n, ok := splitNames[m]; ok {
		return n
	}
	return fmt.Sprintf("SplitMode(%d)", int(m))
}

func ParseSplitMode(name string) (SplitMode, error) {
	for m, n := range splitNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown split mode %q", name)
}

// DefaultEyesDistance is the lens distance the optics are built for, in
// millimetres.
const DefaultEyesDistance = 66

// Settings are the user adjustable render settings.
type Settings struct {
	Scheme       Scheme    `json:"scheme"`
	Split        SplitMode `json:"split"`
	SwapEyes     bool      `json:"swap_eyes"`
	EyesDistance int       `json:"eyes_distance"`
}

func DefaultSettings() Settings {
	return Settings{Scheme: SingleImage, Split: SplitLeftRight, EyesDistance: DefaultEyesDistance}
}

// EyesCorrection is the horizontal shift of each eye image as a fraction
// of the eye viewport width.
func EyesCorrection(eyesDistance int) float64 {
	return float64(DefaultEyesDistance-eyesDistance) / 72
}

// SceneParameters is assembled for every rendered frame and not kept.
type SceneParameters struct {
	Scheme         Scheme
	Split          SplitMode
	SwapEyes       bool
	EyesCorrection float64

	Width, Height               int
	AlignedWidth, AlignedHeight int

	ViewPoint mgl64.Mat4
}
