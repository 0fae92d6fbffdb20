package rdbms

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/lib/pq"
	"github.com/xo/dburl"
	_ "modernc.org/sqlite"

	"github.com/relloyd/scdpipe/constants"
	"github.com/relloyd/scdpipe/logger"
	"github.com/relloyd/scdpipe/rdbms/shared"
)

// supportedDsnConnectionTypes are the server databases opened through dburl.
var supportedDsnConnectionTypes = map[string]struct{}{
	constants.ConnectionTypeSqlServer: {},
	constants.ConnectionTypePostgres:  {},
}

// isSupportedConnection returns true if connectionType is in supportedDsnConnectionTypes.
func isSupportedConnection(connectionType string) bool {
	_, ok := supportedDsnConnectionTypes[connectionType]
	return ok
}

// OpenDbConnection opens a database connection using the supplied ConnectionDetails struct in c.
// SQLite and DuckDB use the DSN as a file path (or ":memory:"); server databases use a URL DSN.
func OpenDbConnection(ctx context.Context, log logger.Logger, c shared.ConnectionDetails) (db shared.Connector, err error) {
	log.Debug("opening connection type ", c.Type, " with logicalName ", c.LogicalName) // don't log password details in c.Data!
	switch c.Type {
	case constants.ConnectionTypeSqlite:
		db, err = newFileConnection(ctx, log, c, "sqlite", shared.NewSqliteDmlGenerator())
	case constants.ConnectionTypeDuckDb:
		db, err = newFileConnection(ctx, log, c, "duckdb", shared.NewDuckDbDmlGenerator())
	default:
		if isSupportedConnection(c.Type) {
			db, err = newConnectionWithDsn(ctx, log, c)
		} else {
			err = fmt.Errorf("unsupported database type, %q", c.Type)
		}
	}
	return
}

func newFileConnection(ctx context.Context, log logger.Logger, c shared.ConnectionDetails, driver string, dml shared.DmlGenerator) (shared.Connector, error) {
	log.Info("Opening database connection: ", c)
	conn := &shared.HpConnection{Dml: dml, DbType: c.Type}
	var err error
	conn.DbSql, err = sql.Open(driver, c.Dsn())
	if err != nil {
		return nil, err
	}
	if c.Type == constants.ConnectionTypeSqlite {
		// One connection keeps ":memory:" databases and transactions on the same handle.
		conn.DbSql.SetMaxOpenConns(1)
	}
	if err = conn.DbSql.PingContext(ctx); err != nil {
		_ = conn.DbSql.Close()
		return nil, err
	}
	log.Info("Successful connection to: ", c)
	return conn, nil
}

func newConnectionWithDsn(ctx context.Context, log logger.Logger, c shared.ConnectionDetails) (shared.Connector, error) {
	log.Info("Opening database connection: ", c)
	u, err := dburl.Parse(c.Dsn())
	if err != nil { // if the DSN could not be parsed...
		return nil, fmt.Errorf("error parsing DSN %q: %w", shared.RedactDsn(c.Type, c.Dsn()), err)
	}
	// Create the new Connector.
	conn := &shared.HpConnection{
		Dml:    shared.NewGenericDmlGenerator(), // source connections are read only
		DbType: c.Type,
	}
	// Open the connection.
	conn.DbSql, err = sql.Open(u.Driver, u.DSN)
	if err != nil {
		return nil, err
	}
	// Test the connection.
	if err = conn.DbSql.PingContext(ctx); err != nil {
		_ = conn.DbSql.Close()
		return nil, err
	}
	log.Info("Successful connection to: ", c)
	return conn, nil
}
