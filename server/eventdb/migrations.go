package eventdb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE status_event(
			id INTEGER PRIMARY KEY,
			time INT NOT NULL,
			camera_id INT NOT NULL,
			slot INT NOT NULL,
			status INT NOT NULL,
			detail BLOB
		);

		CREATE INDEX idx_status_event_time ON status_event(time);
		CREATE INDEX idx_status_event_camera_id ON status_event(camera_id);

	`))

	return migs
}
