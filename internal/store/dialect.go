package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

type dialect struct {
	name       string
	driverName string
	// dollarParams rewrites ? placeholders to $1..$n.
	dollarParams bool
	// returning reports whether INSERT ... RETURNING is available.
	returning bool
	// textTimes stores timestamps as RFC3339 text.
	textTimes bool
}

var dialects = map[string]dialect{
	DriverSQLite:   {name: DriverSQLite, driverName: "sqlite", returning: true, textTimes: true},
	DriverPostgres: {name: DriverPostgres, driverName: "pgx", dollarParams: true, returning: true},
	DriverMySQL:    {name: DriverMySQL, driverName: "mysql"},
}

func dialectFor(driver string) (dialect, error) {
	name := strings.ToLower(strings.TrimSpace(driver))
	if name == "" {
		name = DriverSQLite
	}
	switch name {
	case "postgresql", "pgx":
		name = DriverPostgres
	case "sqlite3":
		name = DriverSQLite
	}
	d, ok := dialects[name]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

func (d dialect) dsn(opts Options) (string, error) {
	if d.name == DriverSQLite {
		return sqliteDSN(opts.Path)
	}
	dsn := strings.TrimSpace(opts.DSN)
	if dsn == "" {
		return "", fmt.Errorf("%s dsn is required", d.name)
	}
	return dsn, nil
}

// rebind rewrites ? placeholders for drivers that use numbered parameters.
// Queries in this package never contain literal question marks.
func (d dialect) rebind(query string) string {
	if !d.dollarParams {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d dialect) timeArg(t time.Time) any {
	if d.textTimes {
		return formatTime(t)
	}
	return t.UTC()
}
