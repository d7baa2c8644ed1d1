// Package mask holds the domain types shared between the classifier
// collaborators and the status stabilization pipeline.
package mask

// Status is the mask classification of one face in one frame.
// StatusUnknown doubles as the "no value" sentinel throughout the system.
type Status int32

const (
	StatusUnknown Status = iota
	StatusWithMask
	StatusWithoutMask
	StatusIncorrectMask
)

func (s Status) String() string {
	switch s {
	case StatusWithMask:
		return "WithMask"
	case StatusWithoutMask:
		return "WithoutMask"
	case StatusIncorrectMask:
		return "IncorrectMask"
	}
	return "Unknown"
}

// Label is the short human-readable form, used by overlay/UI consumers.
func (s Status) Label() string {
	switch s {
	case StatusWithMask:
		return "Mask"
	case StatusWithoutMask:
		return "No Mask"
	case StatusIncorrectMask:
		return "Incorrect"
	}
	return "Unknown"
}

// ColorRGB returns the conventional overlay color for a status
// (green = masked, red = unmasked, orange = incorrect, yellow = unknown).
func (s Status) ColorRGB() (r, g, b uint8) {
	switch s {
	case StatusWithMask:
		return 0, 255, 0
	case StatusWithoutMask:
		return 255, 0, 0
	case StatusIncorrectMask:
		return 255, 165, 0
	}
	return 255, 255, 0
}

// Classification is the raw per-frame output of a mask classifier for one face.
// Confidence is carried through for presentation, but the stabilizer never
// consults it.
type Classification struct {
	Status     Status  `json:"status"`
	Confidence float32 `json:"confidence"`
}
