package state

import (
	"io"

	"github.com/ShayCichocki/waver/internal/orchestrator"
)

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store is the database handle the CLI opens and closes.
type Store interface {
	io.Closer
	Migrator
}

// Compile-time verification of the implementations.
var (
	_ Store                     = (*DB)(nil)
	_ orchestrator.HistoryStore = (*History)(nil)
)
