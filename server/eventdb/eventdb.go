package eventdb

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"

	"github.com/maskwatch/maskwatch/pkg/mask"
)

// Delete status events older than this
const MaxEventAge = 30 * 24 * time.Hour

// How often we purge old records
const purgeInterval = time.Hour

// EventDB stores the history of stabilized status transitions.
type EventDB struct {
	Log logs.Log
	DB  *gorm.DB

	purgeLock   sync.Mutex
	lastPurgeAt time.Time
}

// Open or create an event DB
func Open(logger logs.Log, dbFilename string) (*EventDB, error) {
	os.MkdirAll(filepath.Dir(dbFilename), 0777)
	eventDB, err := dbh.OpenDB(logger, dbh.MakeSqliteConfig(dbFilename), Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open database %v: %w", dbFilename, err)
	}
	return &EventDB{
		Log: logger,
		DB:  eventDB,
	}, nil
}

// AddStatusEvent records a status transition of one face slot.
func (e *EventDB) AddStatusEvent(cameraID int64, slot int, at time.Time, status mask.Status, detail *EventDetail) error {
	e.purgeOldRecords()

	event := &StatusEvent{
		Time:     dbh.MakeIntTime(at),
		CameraID: cameraID,
		Slot:     slot,
		Status:   status,
	}
	if detail != nil {
		event.Detail = dbh.MakeJSONField(*detail)
	}
	return e.DB.Create(event).Error
}

// RecentEvents returns the newest events, most recent first.
// cameraID 0 means all cameras.
func (e *EventDB) RecentEvents(cameraID int64, limit int) ([]*StatusEvent, error) {
	var events []*StatusEvent
	q := e.DB.Order("time DESC, id DESC").Limit(limit)
	if cameraID != 0 {
		q = q.Where("camera_id = ?", cameraID)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// EventsInRange returns events for a camera with time in [start, end),
// oldest first.
func (e *EventDB) EventsInRange(cameraID int64, start, end time.Time) ([]*StatusEvent, error) {
	var events []*StatusEvent
	q := e.DB.Order("time, id").
		Where("time >= ? AND time < ?", dbh.MakeIntTime(start), dbh.MakeIntTime(end))
	if cameraID != 0 {
		q = q.Where("camera_id = ?", cameraID)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// PurgeOlderThan deletes all events older than the given time.
func (e *EventDB) PurgeOlderThan(oldest time.Time) error {
	return e.DB.Where("time < ?", dbh.MakeIntTime(oldest)).Delete(&StatusEvent{}).Error
}

func (e *EventDB) purgeOldRecords() {
	e.purgeLock.Lock()
	due := time.Now().Sub(e.lastPurgeAt) > purgeInterval
	if due {
		e.lastPurgeAt = time.Now()
	}
	e.purgeLock.Unlock()
	if !due {
		return
	}
	if err := e.PurgeOlderThan(time.Now().Add(-MaxEventAge)); err != nil {
		e.Log.Errorf("Failed to purge old status events: %v", err)
	}
}
