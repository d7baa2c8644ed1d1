package server

import (
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) setupHttpRoutes() {
	router := httprouter.New()

	handle := func(method, route string, handler httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handler)
	}

	handle("GET", "/api/ping", s.httpPing)

	handle("GET", "/api/config/cameras", s.httpConfigGetCameras)
	handle("GET", "/api/config/camera/:cameraID", s.httpConfigGetCamera)
	handle("POST", "/api/config/camera", s.httpConfigAddCamera)
	handle("POST", "/api/config/camera/:cameraID", s.httpConfigChangeCamera)
	handle("DELETE", "/api/config/camera/:cameraID", s.httpConfigRemoveCamera)
	handle("GET", "/api/config/stabilizer", s.httpConfigGetStabilizer)
	handle("POST", "/api/config/stabilizer", s.httpConfigSetStabilizer)

	handle("POST", "/api/observe/:cameraID", s.httpObserve)
	handle("POST", "/api/frame/:cameraID", s.httpFrame)

	handle("GET", "/api/status/:cameraID", s.httpStatus)
	handle("GET", "/api/events", s.httpEvents)
	handle("GET", "/api/ws/status/:cameraID", s.httpStatusWebSocket)

	s.httpRouter = router
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type pingJSON struct {
		Greeting string `json:"greeting"`
		Time     int64  `json:"time"`
	}
	www.SendJSON(w, &pingJSON{
		Greeting: "maskwatch",
		Time:     time.Now().UnixMilli(),
	})
}
