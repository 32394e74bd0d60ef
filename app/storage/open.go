package storage

import "fmt"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the store for the configured driver.
func Open(driver, sqlitePath, postgresDSN string) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(sqlitePath)
	case DriverPostgres:
		if postgresDSN == "" {
			return nil, fmt.Errorf("postgres driver requires a DSN")
		}
		return OpenPostgres(postgresDSN)
	default:
		return nil, fmt.Errorf("unknown database driver: %s", driver)
	}
}
