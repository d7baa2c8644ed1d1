package monitor

import (
	"github.com/bmharper/cimg/v2"

	"github.com/maskwatch/maskwatch/pkg/mask"
)

// FaceDetector finds face bounding boxes in a frame.
// Implementations live outside this package (eg an ONNX or NCNN wrapper,
// or a test fake).
type FaceDetector interface {
	DetectFaces(img *cimg.Image) ([]mask.Rect, error)
	Close()
}

// MaskClassifier classifies a single face crop as masked/unmasked/incorrect.
type MaskClassifier interface {
	ClassifyFace(img *cimg.Image, face mask.Rect) (mask.Classification, error)
	Close()
}

// Observation is one face in one frame, as produced by the detection thread
// or pushed in by an external classifier over the HTTP API.
type Observation struct {
	Box            mask.Rect           `json:"box"`
	Classification mask.Classification `json:"classification"`
}
