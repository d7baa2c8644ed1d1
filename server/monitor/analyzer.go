package monitor

import (
	"time"

	"github.com/maskwatch/maskwatch/pkg/mask"
)

// A face slot. Faces are matched to slots by their index within the frame:
// the detector emits faces in a stable order (left to right), so index
// identity holds as long as the scene composition doesn't change. When a
// slot goes unseen for slotForgetTime, its stabilizer state is discarded
// and the next face to land on that index starts fresh.
type faceSlot struct {
	stabilizer *Stabilizer
	lastBox    mask.Rect
	lastSeen   time.Time
}

// Internal state of the analyzer for a single camera
type analyzerCameraState struct {
	cameraID int64
	slots    []*faceSlot
	shared   *Stabilizer // only used when SharedLock is on
	lastSeen time.Time
}

// One face in a published analysis result.
// SYNC-FACE-STATE
type FaceState struct {
	Slot       int         `json:"slot"`
	Box        mask.Rect   `json:"box"`
	Raw        mask.Status `json:"raw"`
	Status     mask.Status `json:"status"`
	Label      string      `json:"label"` // Human-readable form of Status, for overlay/UI consumers
	Confidence float32     `json:"confidence"`
}

// Result of stabilizing one frame's observations.
// SYNC-ANALYSIS-STATE
type AnalysisState struct {
	CameraID int64       `json:"cameraID"`
	FramePTS time.Time   `json:"framePTS"`
	Faces    []FaceState `json:"faces"`
}

func (m *Monitor) analyzer() {
	camStates := map[int64]*analyzerCameraState{} // Camera ID -> state

	for {
		item, ok := <-m.analyzerQueue
		if !ok {
			break
		}
		cam := camStates[item.cameraID]
		if cam == nil {
			cam = &analyzerCameraState{
				cameraID: item.cameraID,
			}
			camStates[item.cameraID] = cam
		}
		m.analyzeFrame(cam, item)
		cam.lastSeen = time.Now()

		// Delete cameras that haven't been seen in a while
		for camID, state := range camStates {
			if time.Now().Sub(state.lastSeen) > m.settings.cameraForgetTime {
				delete(camStates, camID)
			}
		}
	}
	m.analyzerStopped <- true
}

func (m *Monitor) analyzeFrame(cam *analyzerCameraState, item analyzerQueueItem) {
	now := time.Now()
	settings := m.StabilizerSettings()

	observations := item.observations
	if len(observations) > m.settings.maxFaces {
		observations = observations[:m.settings.maxFaces]
	}

	if settings.SharedLock && cam.shared == nil {
		cam.shared = NewStabilizer(settings, m.Log)
	}

	result := &AnalysisState{
		CameraID: cam.cameraID,
		FramePTS: item.pts,
		Faces:    make([]FaceState, 0, len(observations)), // non-nil, so that we always get an array in our JSON output
	}

	for i, obs := range observations {
		for len(cam.slots) <= i {
			cam.slots = append(cam.slots, nil)
		}
		slot := cam.slots[i]
		if slot == nil || now.Sub(slot.lastSeen) > m.settings.slotForgetTime {
			slot = &faceSlot{
				stabilizer: NewStabilizer(settings, m.Log),
			}
			cam.slots[i] = slot
			if m.settings.verbose {
				m.Log.Infof("Analyzer (cam %v): New face slot %v at %v,%v", cam.cameraID, i, obs.Box.Center().X, obs.Box.Center().Y)
			}
		}
		if m.settings.verbose && !slot.lastSeen.IsZero() && obs.Box.IOU(slot.lastBox) < 0.3 {
			moved := obs.Box.Center().Distance(slot.lastBox.Center())
			m.Log.Infof("Analyzer (cam %v): face slot %v jumped %.0f px, possibly a different face", cam.cameraID, i, moved)
		}
		slot.lastBox = obs.Box
		slot.lastSeen = now

		stabilizer := slot.stabilizer
		if settings.SharedLock {
			stabilizer = cam.shared
		}
		status := stabilizer.Update(obs.Classification.Status)

		result.Faces = append(result.Faces, FaceState{
			Slot:       i,
			Box:        obs.Box,
			Raw:        obs.Classification.Status,
			Status:     status,
			Label:      status.Label(),
			Confidence: obs.Classification.Confidence,
		})
	}

	// Drop stale slots off the tail. Interior slots must stay in place to
	// preserve index identity for the faces that are still present.
	for len(cam.slots) != 0 {
		last := cam.slots[len(cam.slots)-1]
		if last != nil && now.Sub(last.lastSeen) <= m.settings.slotForgetTime {
			break
		}
		cam.slots = cam.slots[:len(cam.slots)-1]
	}

	m.latestLock.Lock()
	m.latest[cam.cameraID] = result
	m.latestLock.Unlock()

	m.sendToWatchers(result)
}
