package monitor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"

	"github.com/maskwatch/maskwatch/pkg/mask"
)

// Monitor runs the face detection / mask classification pipeline on incoming
// frames, and stabilizes the per-face statuses before publishing them.
//
// Frames enter via one of two paths:
//  1. InjectFrame: a raw image. The detection thread runs the FaceDetector and
//     MaskClassifier on it, producing observations.
//  2. InjectObservations: pre-classified observations, typically pushed in by
//     an external classifier process over the HTTP API.
//
// Both paths converge on the analyzer thread, which owns all stabilizer state.
type Monitor struct {
	Log        logs.Log
	detector   FaceDetector   // may be nil, if all input arrives via InjectObservations
	classifier MaskClassifier // may be nil, same as detector

	settings monitorSettings

	stabilizerLock     sync.Mutex
	stabilizerSettings StabilizerSettings

	// injectLock is held for read around queue sends, and for write while
	// Close closes the queues, so an in-flight injection can never send on
	// a closed channel.
	injectLock      sync.RWMutex
	frameQueue      chan frameQueueItem
	analyzerQueue   chan analyzerQueueItem
	mustStop        atomic.Bool
	nnStopped       chan bool
	analyzerStopped chan bool

	watchersLock       sync.RWMutex
	watchers           map[int64][]chan *AnalysisState
	watchersAllCameras []chan *AnalysisState

	latestLock sync.Mutex
	latest     map[int64]*AnalysisState

	lastDropWarnAt atomic.Int64 // unix milliseconds, shared across injectors
}

type monitorSettings struct {
	maxFaces         int           // Faces beyond this count in a single frame are ignored
	slotForgetTime   time.Duration // A slot unseen for this long restarts with a fresh stabilizer
	cameraForgetTime time.Duration // Drop all state for a camera after this long without frames
	verbose          bool
}

type frameQueueItem struct {
	cameraID int64
	pts      time.Time
	image    *cimg.Image
}

type analyzerQueueItem struct {
	cameraID     int64
	pts          time.Time
	observations []Observation
}

func NewMonitor(logger logs.Log, detector FaceDetector, classifier MaskClassifier, stabilizer StabilizerSettings) *Monitor {
	m := &Monitor{
		Log:        logger,
		detector:   detector,
		classifier: classifier,
		settings: monitorSettings{
			maxFaces:         20,
			slotForgetTime:   3 * time.Second,
			cameraForgetTime: time.Hour,
			verbose:          false,
		},
		stabilizerSettings: stabilizer,
		frameQueue:         make(chan frameQueueItem, 10),
		analyzerQueue:      make(chan analyzerQueueItem, 100),
		nnStopped:          make(chan bool),
		analyzerStopped:    make(chan bool),
		watchers:           map[int64][]chan *AnalysisState{},
		latest:             map[int64]*AnalysisState{},
	}
	go m.nnThread()
	go m.analyzer()
	return m
}

// Close the monitor object.
func (m *Monitor) Close() {
	m.Log.Infof("Monitor shutting down")
	m.mustStop.Store(true)
	m.injectLock.Lock()
	close(m.frameQueue)
	m.injectLock.Unlock()
	<-m.nnStopped
	// nnThread has exited, so nothing sends on analyzerQueue anymore
	m.injectLock.Lock()
	close(m.analyzerQueue)
	m.injectLock.Unlock()
	<-m.analyzerStopped
	if m.detector != nil {
		m.detector.Close()
	}
	if m.classifier != nil {
		m.classifier.Close()
	}
	m.Log.Infof("Monitor is closed")
}

// InjectFrame queues a raw frame for detection and classification.
// If the pipeline is falling behind, the frame is dropped.
func (m *Monitor) InjectFrame(cameraID int64, pts time.Time, img *cimg.Image) error {
	if m.detector == nil || m.classifier == nil {
		return fmt.Errorf("Monitor has no detector/classifier; use InjectObservations instead")
	}
	m.injectLock.RLock()
	defer m.injectLock.RUnlock()
	if m.mustStop.Load() {
		return fmt.Errorf("Monitor is shutting down")
	}
	select {
	case m.frameQueue <- frameQueueItem{cameraID: cameraID, pts: pts, image: img}:
	default:
		m.warnDrop("Monitor frame queue is full. Dropping frame from camera %v", cameraID)
	}
	return nil
}

// InjectObservations queues pre-classified observations for stabilization.
func (m *Monitor) InjectObservations(cameraID int64, pts time.Time, observations []Observation) error {
	m.injectLock.RLock()
	defer m.injectLock.RUnlock()
	if m.mustStop.Load() {
		return fmt.Errorf("Monitor is shutting down")
	}
	select {
	case m.analyzerQueue <- analyzerQueueItem{cameraID: cameraID, pts: pts, observations: observations}:
	default:
		m.warnDrop("Monitor analyzer queue is full. Dropping observations from camera %v", cameraID)
	}
	return nil
}

// LatestState returns the most recently published analysis for a camera,
// or nil if the camera has produced nothing yet.
func (m *Monitor) LatestState(cameraID int64) *AnalysisState {
	m.latestLock.Lock()
	defer m.latestLock.Unlock()
	return m.latest[cameraID]
}

// StabilizerSettings returns the settings that new face slots will use.
func (m *Monitor) StabilizerSettings() StabilizerSettings {
	m.stabilizerLock.Lock()
	defer m.stabilizerLock.Unlock()
	return m.stabilizerSettings
}

// SetStabilizerSettings applies to face slots created from now on.
// Slots that already exist keep the settings they were created with.
func (m *Monitor) SetStabilizerSettings(settings StabilizerSettings) {
	m.stabilizerLock.Lock()
	defer m.stabilizerLock.Unlock()
	m.stabilizerSettings = settings
}

// nnThread runs the face detector and mask classifier on queued frames.
// A single thread is enough: classification of a handful of face crops is
// cheap next to detection, and keeping one thread avoids frame reordering.
func (m *Monitor) nnThread() {
	lastErrAt := time.Time{}

	for item := range m.frameQueue {
		faces, err := m.detector.DetectFaces(item.image)
		if err != nil {
			if time.Now().Sub(lastErrAt) > 15*time.Second {
				m.Log.Errorf("Error detecting faces: %v", err)
				lastErrAt = time.Now()
			}
			continue
		}
		if len(faces) > m.settings.maxFaces {
			faces = faces[:m.settings.maxFaces]
		}
		observations := make([]Observation, 0, len(faces))
		for _, face := range faces {
			cls, err := m.classifier.ClassifyFace(item.image, face)
			if err != nil {
				if time.Now().Sub(lastErrAt) > 15*time.Second {
					m.Log.Errorf("Error classifying face: %v", err)
					lastErrAt = time.Now()
				}
				cls = mask.Classification{Status: mask.StatusUnknown}
			}
			observations = append(observations, Observation{Box: face, Classification: cls})
		}
		select {
		case m.analyzerQueue <- analyzerQueueItem{cameraID: item.cameraID, pts: item.pts, observations: observations}:
		default:
			m.warnDrop("Monitor analyzer queue is full. Dropping observations from camera %v", item.cameraID)
		}
	}
	m.nnStopped <- true
}

func (m *Monitor) warnDrop(format string, args ...any) {
	now := time.Now().UnixMilli()
	last := m.lastDropWarnAt.Load()
	if now-last > 15000 && m.lastDropWarnAt.CompareAndSwap(last, now) {
		m.Log.Warnf(format, args...)
	}
}
