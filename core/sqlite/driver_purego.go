//go:build !cgo_sqlite

package sqlite

import (
	_ "modernc.org/sqlite" // pure Go driver, registers "sqlite"
)

const (
	driverName    = "sqlite"
	driverType    = "purego"
	driverPackage = "modernc.org/sqlite"
)
