package server

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"

	"github.com/maskwatch/maskwatch/server/monitor"
)

// Maximum size of a POSTed frame (JPEG)
const maxFrameBytes = 8 * 1024 * 1024

// frameTime returns the frame timestamp from the "time" query parameter
// (unix milliseconds), or the current time if absent.
func frameTime(r *http.Request) time.Time {
	if ms, _ := strconv.ParseInt(r.URL.Query().Get("time"), 10, 64); ms != 0 {
		return time.UnixMilli(ms)
	}
	return time.Now()
}

// Ingest pre-classified observations from an external classifier.
// Body is a JSON array of observations. This is the hot path for external
// classifier processes, so we don't validate the camera ID against the
// config DB here.
func (s *Server) httpObserve(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	camID := www.ParseID(params.ByName("cameraID"))
	observations := []monitor.Observation{}
	www.ReadJSON(w, r, &observations, 1024*1024)
	www.CheckClient(s.monitor.InjectObservations(camID, frameTime(r), observations))
	www.SendOK(w)
}

// Ingest a raw JPEG frame, to be run through the built-in detector and
// classifier. Returns 400 if the server was started without them.
func (s *Server) httpFrame(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	camID := www.ParseID(params.ByName("cameraID"))
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameBytes))
	www.CheckClient(err)
	img, err := cimg.Decompress(body)
	if err != nil {
		www.PanicBadRequestf("Failed to decode image: %v", err)
	}
	www.CheckClient(s.monitor.InjectFrame(camID, frameTime(r), img))
	www.SendOK(w)
}

// Latest stabilized state of a camera
func (s *Server) httpStatus(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	camID := www.ParseID(params.ByName("cameraID"))
	state := s.monitor.LatestState(camID)
	if state == nil {
		state = &monitor.AnalysisState{
			CameraID: camID,
			Faces:    []monitor.FaceState{},
		}
	}
	www.CacheNever(w)
	www.SendJSON(w, state)
}

// Recent status transition events.
// Query parameters: camera (0 or absent = all cameras), limit (default 100).
func (s *Server) httpEvents(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	cameraID := int64(www.QueryInt(r, "camera"))
	limit := www.QueryInt(r, "limit")
	if limit <= 0 {
		limit = 100
	}
	events, err := s.eventDB.RecentEvents(cameraID, limit)
	www.Check(err)
	www.SendJSON(w, events)
}

// Stream stabilized states for a camera over a websocket, one JSON message
// per analyzed frame.
func (s *Server) httpStatusWebSocket(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	camID := www.ParseID(params.ByName("cameraID"))

	c, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("httpStatusWebSocket websocket upgrade failed: %v", err)
		return
	}
	defer c.Close()

	s.Log.Infof("httpStatusWebSocket starting for camera %v", camID)

	watcher := s.monitor.AddWatcher(camID)
	defer s.monitor.RemoveWatcher(camID, watcher)

	// The read pump exists only to detect the client going away
	clientClosed := make(chan bool)
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				close(clientClosed)
				return
			}
		}
	}()

	for {
		select {
		case <-clientClosed:
			s.Log.Infof("httpStatusWebSocket camera %v: client closed", camID)
			return
		case <-s.ShutdownStarted:
			return
		case state := <-watcher:
			if err := c.WriteJSON(state); err != nil {
				s.Log.Infof("httpStatusWebSocket camera %v: write failed (%v)", camID, err)
				return
			}
		}
	}
}
