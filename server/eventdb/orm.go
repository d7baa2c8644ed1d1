package eventdb

import (
	"github.com/cyclopcam/dbh"

	"github.com/maskwatch/maskwatch/pkg/mask"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// A StatusEvent records a transition of the stabilized status of one face slot.
// We only write transitions, not every frame, so the table stays small even
// with cameras running around the clock.
// SYNC-STATUS-EVENT
type StatusEvent struct {
	BaseModel
	Time     dbh.IntTime                 `json:"time"`
	CameraID int64                       `json:"cameraID"`
	Slot     int                         `json:"slot"`
	Status   mask.Status                 `json:"status"`
	Detail   *dbh.JSONField[EventDetail] `json:"detail,omitempty"`
}

// SYNC-STATUS-EVENT-DETAIL
type EventDetail struct {
	Previous   mask.Status `json:"previous"`   // Stabilized status before this transition
	Raw        mask.Status `json:"raw"`        // Raw classifier output on the transition frame
	Box        mask.Rect   `json:"box"`        // Face bounding box on the transition frame
	Confidence float32     `json:"confidence"` // Classifier confidence on the transition frame
}
