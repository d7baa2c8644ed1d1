package server

// Config is the root of the JSON config file
type Config struct {
	HTTP     HTTPConfig `json:"http"`
	ConfigDB string     `json:"configDB"` // Path to config sqlite DB (eg /var/lib/maskwatch/config.sqlite)
	EventDB  string     `json:"eventDB"`  // Path to status event sqlite DB (eg /var/lib/maskwatch/events.sqlite)
}

type HTTPConfig struct {
	Port int `json:"port"` // Default 8088
}

const DefaultHTTPPort = 8088
