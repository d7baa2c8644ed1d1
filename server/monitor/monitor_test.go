package monitor

import (
	"testing"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"

	"github.com/maskwatch/maskwatch/pkg/mask"
)

type scriptedDetector struct {
	faces []mask.Rect
}

func (d *scriptedDetector) DetectFaces(img *cimg.Image) ([]mask.Rect, error) {
	return d.faces, nil
}

func (d *scriptedDetector) Close() {
}

type scriptedClassifier struct {
	status mask.Status
}

func (c *scriptedClassifier) ClassifyFace(img *cimg.Image, face mask.Rect) (mask.Classification, error) {
	return mask.Classification{Status: c.status, Confidence: 0.9}, nil
}

func (c *scriptedClassifier) Close() {
}

func makeObservation(status mask.Status) Observation {
	return Observation{
		Box:            mask.Rect{X: 100, Y: 100, Width: 80, Height: 80},
		Classification: mask.Classification{Status: status, Confidence: 0.9},
	}
}

func TestMonitorObservationPath(t *testing.T) {
	m := NewMonitor(logs.NewTestingLog(t), nil, nil, DefaultStabilizerSettings())
	defer m.Close()

	ch := m.AddWatcher(42)
	defer m.RemoveWatcher(42, ch)

	pts := time.Now()
	require.NoError(t, m.InjectObservations(42, pts, []Observation{makeObservation(mask.StatusWithMask)}))

	state := <-ch
	require.Equal(t, int64(42), state.CameraID)
	require.Len(t, state.Faces, 1)
	require.Equal(t, mask.StatusWithMask, state.Faces[0].Raw)
	require.Equal(t, mask.StatusWithMask, state.Faces[0].Status)
	require.Equal(t, 0, state.Faces[0].Slot)

	require.Equal(t, state, m.LatestState(42))
	require.Nil(t, m.LatestState(43))
}

func TestMonitorFramePath(t *testing.T) {
	detector := &scriptedDetector{
		faces: []mask.Rect{{X: 10, Y: 10, Width: 50, Height: 50}},
	}
	classifier := &scriptedClassifier{status: mask.StatusWithoutMask}
	m := NewMonitor(logs.NewTestingLog(t), detector, classifier, DefaultStabilizerSettings())
	defer m.Close()

	ch := m.AddWatcherAllCameras()
	defer m.RemoveWatcherAllCameras(ch)

	img := cimg.NewImage(320, 240, cimg.PixelFormatRGB)
	require.NoError(t, m.InjectFrame(7, time.Now(), img))

	state := <-ch
	require.Equal(t, int64(7), state.CameraID)
	require.Len(t, state.Faces, 1)
	require.Equal(t, mask.StatusWithoutMask, state.Faces[0].Raw)
	require.Equal(t, detector.faces[0], state.Faces[0].Box)
}

func TestMonitorFramePathNeedsClassifier(t *testing.T) {
	m := NewMonitor(logs.NewTestingLog(t), nil, nil, DefaultStabilizerSettings())
	defer m.Close()
	img := cimg.NewImage(320, 240, cimg.PixelFormatRGB)
	require.Error(t, m.InjectFrame(1, time.Now(), img))
}

// Each face slot stabilizes independently: one person taking their mask off
// must not disturb the status of the person next to them.
func TestPerSlotStabilization(t *testing.T) {
	m := NewMonitor(logs.NewTestingLog(t), nil, nil, DefaultStabilizerSettings())
	defer m.Close()

	ch := m.AddWatcher(1)
	defer m.RemoveWatcher(1, ch)

	var state *AnalysisState
	for i := 0; i < 10; i++ {
		obs := []Observation{
			makeObservation(mask.StatusWithMask),
			makeObservation(mask.StatusWithoutMask),
		}
		require.NoError(t, m.InjectObservations(1, time.Now(), obs))
		state = <-ch
	}
	require.Len(t, state.Faces, 2)
	require.Equal(t, mask.StatusWithMask, state.Faces[0].Status)
	require.Equal(t, mask.StatusWithoutMask, state.Faces[1].Status)
}

// With SharedLock on, all faces of a camera feed one state machine. Two faces
// with conflicting statuses reset the shared streak on every frame, so no
// lock ever forms and both report the machine's seed status.
func TestSharedLockStabilization(t *testing.T) {
	settings := DefaultStabilizerSettings()
	settings.SharedLock = true
	m := NewMonitor(logs.NewTestingLog(t), nil, nil, settings)
	defer m.Close()

	ch := m.AddWatcher(1)
	defer m.RemoveWatcher(1, ch)

	var state *AnalysisState
	for i := 0; i < 20; i++ {
		obs := []Observation{
			makeObservation(mask.StatusWithMask),
			makeObservation(mask.StatusWithoutMask),
		}
		require.NoError(t, m.InjectObservations(1, time.Now(), obs))
		state = <-ch
	}
	require.Len(t, state.Faces, 2)
	require.Equal(t, mask.StatusWithMask, state.Faces[0].Status)
	require.Equal(t, mask.StatusWithMask, state.Faces[1].Status)
}

func TestMaxFacesCap(t *testing.T) {
	m := NewMonitor(logs.NewTestingLog(t), nil, nil, DefaultStabilizerSettings())
	defer m.Close()

	ch := m.AddWatcher(1)
	defer m.RemoveWatcher(1, ch)

	obs := make([]Observation, 30)
	for i := range obs {
		obs[i] = makeObservation(mask.StatusWithMask)
	}
	require.NoError(t, m.InjectObservations(1, time.Now(), obs))
	state := <-ch
	require.Len(t, state.Faces, 20)
}

// A slot that goes unseen for slotForgetTime restarts with a fresh
// stabilizer. The previous occupant's lock must not leak onto the next
// person who lands on that slot index.
func TestSlotForgetRestartsStabilizer(t *testing.T) {
	m := NewMonitor(logs.NewTestingLog(t), nil, nil, DefaultStabilizerSettings())
	defer m.Close()
	m.settings.slotForgetTime = 200 * time.Millisecond

	ch := m.AddWatcher(1)
	defer m.RemoveWatcher(1, ch)

	// Lock slot 0 to WithMask
	var state *AnalysisState
	for i := 0; i < 10; i++ {
		require.NoError(t, m.InjectObservations(1, time.Now(), []Observation{makeObservation(mask.StatusWithMask)}))
		state = <-ch
	}
	require.Equal(t, mask.StatusWithMask, state.Faces[0].Status)

	// While the slot is live, the lock shrugs off a WithoutMask frame
	require.NoError(t, m.InjectObservations(1, time.Now(), []Observation{makeObservation(mask.StatusWithoutMask)}))
	state = <-ch
	require.Equal(t, mask.StatusWithMask, state.Faces[0].Status)

	// After the forget time, the same frame seeds a fresh stabilizer
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, m.InjectObservations(1, time.Now(), []Observation{makeObservation(mask.StatusWithoutMask)}))
	state = <-ch
	require.Equal(t, mask.StatusWithoutMask, state.Faces[0].Status)
}

// Stale slots are trimmed from the tail only, so a face that leaves never
// shifts the slot indices of the faces still in frame.
func TestSlotTailTrim(t *testing.T) {
	m := NewMonitor(logs.NewTestingLog(t), nil, nil, DefaultStabilizerSettings())
	defer m.Close()
	m.settings.slotForgetTime = 200 * time.Millisecond

	ch := m.AddWatcher(1)
	defer m.RemoveWatcher(1, ch)

	// Lock slot 0 to WithMask and slot 1 to WithoutMask
	var state *AnalysisState
	for i := 0; i < 10; i++ {
		obs := []Observation{
			makeObservation(mask.StatusWithMask),
			makeObservation(mask.StatusWithoutMask),
		}
		require.NoError(t, m.InjectObservations(1, time.Now(), obs))
		state = <-ch
	}
	require.Equal(t, mask.StatusWithoutMask, state.Faces[1].Status)

	// Face 1 leaves while face 0 keeps arriving. Slot 1 goes stale and is
	// trimmed; slot 0 keeps its index and its lock.
	for i := 0; i < 8; i++ {
		time.Sleep(50 * time.Millisecond)
		require.NoError(t, m.InjectObservations(1, time.Now(), []Observation{makeObservation(mask.StatusWithMask)}))
		state = <-ch
	}
	require.Len(t, state.Faces, 1)
	require.Equal(t, 0, state.Faces[0].Slot)
	require.Equal(t, mask.StatusWithMask, state.Faces[0].Status)

	// A new face on index 1 starts from scratch. If the trimmed slot's state
	// had survived, its WithoutMask lock would override the seed here.
	obs := []Observation{
		makeObservation(mask.StatusWithMask),
		makeObservation(mask.StatusWithMask),
	}
	require.NoError(t, m.InjectObservations(1, time.Now(), obs))
	state = <-ch
	require.Len(t, state.Faces, 2)
	require.Equal(t, 0, state.Faces[0].Slot)
	require.Equal(t, 1, state.Faces[1].Slot)
	require.Equal(t, mask.StatusWithMask, state.Faces[1].Status)
}

// Closing the monitor while injections are in flight must not panic; once
// shutdown has begun, injections report an error instead.
func TestInjectDuringClose(t *testing.T) {
	m := NewMonitor(logs.NewTestingLog(t), nil, nil, DefaultStabilizerSettings())

	done := make(chan bool)
	go func() {
		for {
			if err := m.InjectObservations(1, time.Now(), []Observation{makeObservation(mask.StatusWithMask)}); err != nil {
				break
			}
		}
		done <- true
	}()

	time.Sleep(10 * time.Millisecond)
	m.Close()
	<-done
	require.Error(t, m.InjectObservations(1, time.Now(), []Observation{makeObservation(mask.StatusWithMask)}))
}

func TestSetStabilizerSettings(t *testing.T) {
	m := NewMonitor(logs.NewTestingLog(t), nil, nil, DefaultStabilizerSettings())
	defer m.Close()

	settings := DefaultStabilizerSettings()
	settings.LockStreak = 2
	m.SetStabilizerSettings(settings)
	require.Equal(t, 2, m.StabilizerSettings().LockStreak)

	ch := m.AddWatcher(1)
	defer m.RemoveWatcher(1, ch)

	// With LockStreak 2, the lock forms on the 2nd post-seed frame
	var state *AnalysisState
	for i := 0; i < 3; i++ {
		require.NoError(t, m.InjectObservations(1, time.Now(), []Observation{makeObservation(mask.StatusWithMask)}))
		state = <-ch
	}
	require.Equal(t, mask.StatusWithMask, state.Faces[0].Status)
}
