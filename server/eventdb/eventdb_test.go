package eventdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"

	"github.com/maskwatch/maskwatch/pkg/mask"
)

func createTestDB(t *testing.T) *EventDB {
	db, err := Open(logs.NewTestingLog(t), filepath.Join(t.TempDir(), "test-events.sqlite"))
	require.NoError(t, err)
	return db
}

func TestAddAndQueryEvents(t *testing.T) {
	db := createTestDB(t)

	base := time.Now().Add(-time.Minute)
	detail := &EventDetail{
		Previous:   mask.StatusWithMask,
		Raw:        mask.StatusWithoutMask,
		Box:        mask.Rect{X: 10, Y: 20, Width: 80, Height: 80},
		Confidence: 0.93,
	}
	require.NoError(t, db.AddStatusEvent(1, 0, base, mask.StatusWithoutMask, detail))
	require.NoError(t, db.AddStatusEvent(1, 1, base.Add(time.Second), mask.StatusWithMask, nil))
	require.NoError(t, db.AddStatusEvent(2, 0, base.Add(2*time.Second), mask.StatusIncorrectMask, nil))

	events, err := db.RecentEvents(0, 100)
	require.NoError(t, err)
	require.Len(t, events, 3)
	// Most recent first
	require.Equal(t, int64(2), events[0].CameraID)

	events, err = db.RecentEvents(1, 100)
	require.NoError(t, err)
	require.Len(t, events, 2)

	events, err = db.RecentEvents(0, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)

	inRange, err := db.EventsInRange(1, base, base.Add(500*time.Millisecond))
	require.NoError(t, err)
	require.Len(t, inRange, 1)
	require.Equal(t, mask.StatusWithoutMask, inRange[0].Status)
	require.NotNil(t, inRange[0].Detail)
	require.Equal(t, mask.StatusWithMask, inRange[0].Detail.Data.Previous)
	require.Equal(t, float32(0.93), inRange[0].Detail.Data.Confidence)
}

func TestPurge(t *testing.T) {
	db := createTestDB(t)

	old := time.Now().Add(-2 * MaxEventAge)
	require.NoError(t, db.AddStatusEvent(1, 0, old, mask.StatusWithMask, nil))
	require.NoError(t, db.AddStatusEvent(1, 0, time.Now(), mask.StatusWithoutMask, nil))

	require.NoError(t, db.PurgeOlderThan(time.Now().Add(-MaxEventAge)))

	events, err := db.RecentEvents(0, 100)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, mask.StatusWithoutMask, events[0].Status)
}
