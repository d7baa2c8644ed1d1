package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/maskwatch/maskwatch/server/configdb"
	"github.com/maskwatch/maskwatch/server/eventdb"
	"github.com/maskwatch/maskwatch/server/monitor"
)

type Server struct {
	Log logs.Log
	cfg Config

	// ShutdownStarted is closed as the first act of Shutdown
	ShutdownStarted chan bool

	configDB *configdb.ConfigDB
	eventDB  *eventdb.EventDB
	monitor  *monitor.Monitor

	signalIn   chan os.Signal
	httpServer *http.Server
	httpRouter *httprouter.Router
	wsUpgrader websocket.Upgrader

	monitorToEventDBClosed chan bool
}

// NewServer loads the JSON config file, opens the databases, and starts the
// monitor. The detector and classifier may be nil, in which case frames can
// only enter the system as pre-classified observations (POST /api/observe).
func NewServer(configFile string, detector monitor.FaceDetector, classifier monitor.MaskClassifier) (*Server, error) {
	cfg := Config{}
	if cfgB, err := os.ReadFile(configFile); err != nil {
		return nil, err
	} else {
		if err := json.Unmarshal(cfgB, &cfg); err != nil {
			return nil, fmt.Errorf("Error parsing config file %v: %w", configFile, err)
		}
	}
	logger, err := logs.NewLog()
	if err != nil {
		return nil, err
	}
	configDB, err := configdb.NewConfigDB(logger, cfg.ConfigDB)
	if err != nil {
		return nil, err
	}
	eventDB, err := eventdb.Open(logger, cfg.EventDB)
	if err != nil {
		return nil, err
	}
	sysCfg, err := configDB.GetConfig()
	if err != nil {
		return nil, err
	}
	mon := monitor.NewMonitor(logger, detector, classifier, sysCfg.Stabilizer)

	s := &Server{
		Log:                    logger,
		cfg:                    cfg,
		ShutdownStarted:        make(chan bool),
		configDB:               configDB,
		eventDB:                eventDB,
		monitor:                mon,
		monitorToEventDBClosed: make(chan bool),
	}
	s.setupHttpRoutes()
	s.attachMonitorToEventDB()
	return s, nil
}

// HTTPPort returns the configured listen address, eg ":8088"
func (s *Server) HTTPPort() string {
	port := s.cfg.HTTP.Port
	if port == 0 {
		port = DefaultHTTPPort
	}
	return fmt.Sprintf(":%v", port)
}

// port example: ":8088"
func (s *Server) ListenHTTP(port string) error {
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.httpRouter,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) ListenForKillSignals() {
	s.Log.Infof("ListenForKillSignals starting")
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig, ok := <-s.signalIn:
			if ok {
				s.Log.Infof("Received OS signal '%v'. ListenForKillSignals will exit after shutdown", sig.String())
				s.Shutdown()
			} else {
				// This path gets hit when Shutdown() is called by something other than ourselves, and Shutdown() closes the signalIn channel.
				s.Log.Infof("signalIn closed. ListenForKillSignals will exit now")
			}
		}
	}()
}

func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	close(s.ShutdownStarted)
	signal.Stop(s.signalIn)
	close(s.signalIn)

	<-s.monitorToEventDBClosed
	s.monitor.Close()

	s.Log.Infof("Closing HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	err := s.httpServer.Shutdown(ctx)
	defer cancel()
	if err != nil {
		s.Log.Warnf("Shutdown complete, with error: %v", err)
	} else {
		s.Log.Infof("Shutdown complete")
	}
	s.Log.Close()
}
