package monitor

import "github.com/maskwatch/maskwatch/pkg/gen"

// SYNC-WATCHER-CHANNEL-SIZE
const WatcherChannelSize = 100

// Register to receive analysis results for a specific camera.
func (m *Monitor) AddWatcher(cameraID int64) chan *AnalysisState {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	ch := make(chan *AnalysisState, WatcherChannelSize)
	m.watchers[cameraID] = append(m.watchers[cameraID], ch)
	return ch
}

// Unregister from analysis results for a specific camera
func (m *Monitor) RemoveWatcher(cameraID int64, ch chan *AnalysisState) {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	for i, w := range m.watchers[cameraID] {
		if w == ch {
			m.watchers[cameraID] = gen.DeleteFromSliceUnordered(m.watchers[cameraID], i)
			return
		}
	}
	m.Log.Warnf("Monitor.RemoveWatcher failed to find channel for camera %v", cameraID)
}

// Add a watcher that is interested in all camera activity
func (m *Monitor) AddWatcherAllCameras() chan *AnalysisState {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	ch := make(chan *AnalysisState, WatcherChannelSize)
	m.watchersAllCameras = append(m.watchersAllCameras, ch)
	return ch
}

// Unregister from analysis results of all cameras
func (m *Monitor) RemoveWatcherAllCameras(ch chan *AnalysisState) {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	for i, wch := range m.watchersAllCameras {
		if wch == ch {
			m.watchersAllCameras = gen.DeleteFromSliceUnordered(m.watchersAllCameras, i)
			return
		}
	}
	m.Log.Warnf("Monitor.RemoveWatcherAllCameras failed to find channel")
}

func (m *Monitor) sendToWatchers(state *AnalysisState) {
	m.watchersLock.RLock()
	// If a watcher stalls, we drop frames for it rather than stalling the
	// analyzer, so that the other watchers can continue to run.
	for _, ch := range m.watchers[state.CameraID] {
		// SYNC-WATCHER-CHANNEL-SIZE
		if len(ch) >= cap(ch)*9/10 {
			// This should never happen. But as a safeguard against monitor stalls, we choose to drop frames.
			m.Log.Warnf("Monitor watcher on camera %v is falling behind. I am going to drop frames.", state.CameraID)
		} else {
			ch <- state
		}
	}
	for _, ch := range m.watchersAllCameras {
		// SYNC-WATCHER-CHANNEL-SIZE
		if len(ch) >= cap(ch)*9/10 {
			m.Log.Warnf("Monitor watcher on all cameras is falling behind. I am going to drop frames.")
		} else {
			ch <- state
		}
	}
	m.watchersLock.RUnlock()
}
