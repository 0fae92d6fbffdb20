package shared

import (
	"fmt"
	"strings"

	"github.com/xo/dburl"

	"github.com/relloyd/scdpipe/constants"
)

var DefaultDsnConnectionKeyNames = struct {
	Dsn string
}{
	Dsn: "dsn",
}

// ConnectionDetails is intended to hold credentials for a logical database connection.
type ConnectionDetails struct {
	Type        string            `json:"type" errorTxt:"database type" mandatory:"yes" yaml:"type"`
	LogicalName string            `json:"logicalName" errorTxt:"database logical name" mandatory:"yes" yaml:"logicalName"`
	Data        map[string]string `json:"data" yaml:"data"`
}

// NewDsnConnectionDetails builds ConnectionDetails for a connection described by a DSN alone.
func NewDsnConnectionDetails(logicalName string, connectionType string, dsn string) ConnectionDetails {
	return ConnectionDetails{
		Type:        strings.ToLower(strings.TrimSpace(connectionType)),
		LogicalName: logicalName,
		Data:        map[string]string{DefaultDsnConnectionKeyNames.Dsn: dsn},
	}
}

// Dsn returns the DSN held in the connection data.
func (c ConnectionDetails) Dsn() string {
	return c.Data[DefaultDsnConnectionKeyNames.Dsn]
}

// String redacts passwords and pretty-prints the contents of ConnectionDetails.
func (c ConnectionDetails) String() string {
	return fmt.Sprintf("%v (type = %v; dsn = %v)", c.LogicalName, c.Type, RedactDsn(c.Type, c.Dsn()))
}

// RedactDsn hides any password held in dsn.
// File based DSNs used by sqlite and duckdb are returned as they are.
func RedactDsn(connectionType string, dsn string) string {
	switch connectionType {
	case constants.ConnectionTypeSqlite, constants.ConnectionTypeDuckDb:
		return dsn
	}
	u, err := dburl.Parse(dsn)
	if err != nil {
		return "<unparseable dsn>"
	}
	return u.Redacted()
}
