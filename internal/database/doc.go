// Package database provides the data access layer for the sync service.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations
//	├── connections/     # Provider connections and sync configurations
//	├── meals/           # Meal log CRUD and window queries
//	├── syncrecords/     # Exported/imported record idempotence markers
//	├── conflicts/       # Pending sync conflicts and resolutions
//	└── history/         # Append-only sync history log
//
// Each sub-package provides a Repository type constructed with NewRepository:
//
//	db, err := database.NewDatabase("./diaguard.db")
//	connRepo := connections.NewRepository(db.DB)
//	conn, err := connRepo.GetActive(userID, entities.ProviderCronometer)
package database
