package configdb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

// ConfigDB holds the durable configuration: cameras and system settings.
type ConfigDB struct {
	Log logs.Log
	DB  *gorm.DB
}

func NewConfigDB(logger logs.Log, dbFilename string) (*ConfigDB, error) {
	os.MkdirAll(filepath.Dir(dbFilename), 0777)
	configDB, err := dbh.OpenDB(logger, dbh.MakeSqliteConfig(dbFilename), Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open database %v: %w", dbFilename, err)
	}
	return &ConfigDB{
		Log: logger,
		DB:  configDB,
	}, nil
}
