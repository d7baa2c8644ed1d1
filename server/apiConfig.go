package server

import (
	"net/http"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"

	"github.com/maskwatch/maskwatch/server/configdb"
	"github.com/maskwatch/maskwatch/server/monitor"
)

func (s *Server) httpConfigGetCamera(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("cameraID"))
	cam, err := s.configDB.GetCameraFromID(id)
	www.Check(err)
	www.SendJSON(w, cam)
}

func (s *Server) httpConfigGetCameras(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	cams, err := s.configDB.ListCameras()
	www.Check(err)
	www.SendJSON(w, cams)
}

func (s *Server) httpConfigAddCamera(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	cfg := configdb.Camera{}
	www.ReadJSON(w, r, &cfg, 1024*1024)
	cfg.ID = 0

	// Add to DB
	now := dbh.MakeIntTime(time.Now())
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	www.Check(s.configDB.DB.Create(&cfg).Error)
	s.Log.Infof("Added new camera to DB. Camera ID: %v", cfg.ID)

	www.SendID(w, cfg.ID)
}

func (s *Server) httpConfigChangeCamera(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("cameraID"))
	cfgNew := configdb.Camera{}
	www.ReadJSON(w, r, &cfgNew, 1024*1024)
	cfgNew.ID = id

	cfgOld, err := s.configDB.GetCameraFromID(id)
	www.Check(err)

	cfgNew.CreatedAt = cfgOld.CreatedAt
	cfgNew.UpdatedAt = dbh.MakeIntTime(time.Now())

	// Update DB
	if err := s.configDB.DB.Save(&cfgNew).Error; err != nil {
		www.PanicServerErrorf("Error saving camera config to DB: %v", err)
	}

	www.SendOK(w)
}

func (s *Server) httpConfigRemoveCamera(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	camID := www.ParseID(params.ByName("cameraID"))
	cam, err := s.configDB.GetCameraFromID(camID)
	www.Check(err)
	www.Check(s.configDB.DB.Delete(cam).Error)
	www.SendOK(w)
}

func (s *Server) httpConfigGetStabilizer(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.monitor.StabilizerSettings())
}

// Change the stabilizer settings. The new settings are persisted, and apply
// to all face slots created from here on. Slots that are already being
// tracked keep their existing settings.
func (s *Server) httpConfigSetStabilizer(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	settings := monitor.StabilizerSettings{}
	www.ReadJSON(w, r, &settings, 1024*1024)

	cfg, err := s.configDB.GetConfig()
	www.Check(err)
	cfg.Stabilizer = settings
	www.CheckClient(s.configDB.SetConfig(cfg))

	s.monitor.SetStabilizerSettings(settings)
	s.Log.Infof("Stabilizer settings changed")

	www.SendOK(w)
}
