package migrations

import (
	_ "embed"

	"github.com/0xPolygon/ctc/db"
	"github.com/0xPolygon/ctc/db/types"
)

//go:embed chain0001.sql
var mig001 string

func RunMigrations(dbPath string) error {
	migrations := []types.Migration{
		{
			ID:  "chain0001",
			SQL: mig001,
		},
	}
	return db.RunMigrations(dbPath, migrations)
}
