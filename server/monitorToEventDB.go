package server

import (
	"github.com/maskwatch/maskwatch/pkg/gen"
	"github.com/maskwatch/maskwatch/pkg/mask"
	"github.com/maskwatch/maskwatch/server/eventdb"
	"github.com/maskwatch/maskwatch/server/monitor"
)

// It doesn't seem right to make 'eventdb' dependent on 'monitor' or vice versa,
// so we hook them up via this intermediate thread here. We watch the stream of
// stabilized states and write a StatusEvent whenever a face slot's status
// changes.
func (s *Server) attachMonitorToEventDB() {
	go func() {
		s.Log.Infof("Monitor -> EventDB thread starting")
		incoming := s.monitor.AddWatcherAllCameras()

		type slotKey struct {
			cameraID int64
			slot     int
		}
		lastStatus := map[slotKey]mask.Status{}

		processState := func(msg *monitor.AnalysisState) {
			for _, face := range msg.Faces {
				key := slotKey{cameraID: msg.CameraID, slot: face.Slot}
				previous, seen := lastStatus[key]
				if seen && previous == face.Status {
					continue
				}
				lastStatus[key] = face.Status
				detail := &eventdb.EventDetail{
					Previous:   previous,
					Raw:        face.Raw,
					Box:        face.Box,
					Confidence: face.Confidence,
				}
				if err := s.eventDB.AddStatusEvent(msg.CameraID, face.Slot, msg.FramePTS, face.Status, detail); err != nil {
					s.Log.Errorf("Failed to record status event for camera %v: %v", msg.CameraID, err)
				}
			}
		}

		keepRunning := true
		for keepRunning {
			select {
			case <-s.ShutdownStarted:
				keepRunning = false
			case msg := <-incoming:
				// If the DB write stalled, then work through the backlog
				// before going back to sleep on the select.
				processState(msg)
				for _, queued := range gen.DrainChannelIntoSlice(incoming) {
					processState(queued)
				}
			}
		}
		s.monitor.RemoveWatcherAllCameras(incoming)
		s.Log.Infof("Monitor -> EventDB thread exiting")
		close(s.monitorToEventDBClosed)
	}()
}
