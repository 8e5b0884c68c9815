package models

import (
	"log"

	"github.com/bpopendata/budget_backend/config"
)

// MigrateTable creates the schema the engine reads. Ingestion owns the data
// itself; this only exists for fresh environments and local development.
func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Entity{}, &TerritorialUnit{},
		&FactLineItem{}, &RollupRow{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
