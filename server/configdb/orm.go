package configdb

import (
	"github.com/cyclopcam/dbh"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// SYNC-RECORD-CAMERA
type Camera struct {
	BaseModel
	Name      string      `json:"name"`                          // Friendly name, eg "Front entrance"
	Host      string      `json:"host"`                          // Hostname such as 192.168.1.33
	Port      int         `json:"port" gorm:"default:null"`      // if 0, then default is 554
	Username  string      `json:"username"`                      // RTSP username
	Password  string      `json:"password"`                      // RTSP password
	URLSuffix string      `json:"urlSuffix" gorm:"default:null"` // eg Streaming/Channels/102
	Enabled   bool        `json:"enabled" gorm:"default:1"`      // Disabled cameras are kept in config but not monitored
	CreatedAt dbh.IntTime `json:"createdAt"`
	UpdatedAt dbh.IntTime `json:"updatedAt"`
}

type SystemConfig struct {
	Key   string `gorm:"primaryKey"`
	Value string
}
