package main

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"

	"github.com/maskwatch/maskwatch/server"
)

func main() {
	parser := argparse.NewParser("maskwatch", "Face mask compliance monitor")
	configFile := parser.String("c", "config", &argparse.Options{Help: "Configuration file", Default: "/etc/maskwatch/config.json"})
	port := parser.String("", "port", &argparse.Options{Help: "Override the HTTP listen address from the config file (eg :8088)", Default: ""})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	// The built-in detector/classifier slots are nil here: all observations
	// arrive over the HTTP API. A binary that links a real face detector can
	// construct the server itself and pass its implementations in.
	srv, err := server.NewServer(*configFile, nil, nil)
	if err != nil {
		fmt.Printf("Failed to start server: %v\n", err)
		os.Exit(1)
	}
	srv.ListenForKillSignals()

	// Tell systemd that we're alive.
	// We might also want to implement a liveness ping.
	// See this article for more details: https://vincent.bernat.ch/en/blog/2017-systemd-golang
	daemon.SdNotify(false, daemon.SdNotifyReady)

	listenOn := srv.HTTPPort()
	if *port != "" {
		listenOn = *port
	}
	if err := srv.ListenHTTP(listenOn); err != nil {
		srv.Log.Infof("ListenHTTP returned: %v", err)
	}
}
