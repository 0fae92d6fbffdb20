package rdbms

import (
	"context"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/relloyd/scdpipe/constants"
	"github.com/relloyd/scdpipe/rdbms/shared"
)

// warehouseTypes are the connection types a warehouse or run store can live in.
var warehouseTypes = []string{constants.ConnectionTypeSqlite, constants.ConnectionTypeDuckDb}

func openTestDb(t *testing.T, connectionType string, name string) shared.Connector {
	t.Helper()
	log := logrus.New()
	conn, err := OpenDbConnection(context.Background(), log,
		shared.NewDsnConnectionDetails(name, connectionType, filepath.Join(t.TempDir(), name+"."+connectionType)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(conn.Close)
	return conn
}

func openTestSqlite(t *testing.T, name string) shared.Connector {
	t.Helper()
	return openTestDb(t, constants.ConnectionTypeSqlite, name)
}

func TestOpenDbConnectionSqlite(t *testing.T) {
	g := NewGomegaWithT(t)
	conn := openTestSqlite(t, "oltp")
	g.Expect(conn.GetType()).To(Equal(constants.ConnectionTypeSqlite))
	g.Expect(conn.GetDmlGenerator()).NotTo(BeNil())
	_, err := conn.ExecContext(context.Background(), "create table t (a text)")
	g.Expect(err).NotTo(HaveOccurred())
}

func TestOpenDbConnectionDuckDb(t *testing.T) {
	g := NewGomegaWithT(t)
	conn := openTestDb(t, constants.ConnectionTypeDuckDb, "olap")
	g.Expect(conn.GetType()).To(Equal(constants.ConnectionTypeDuckDb))
	_, err := conn.ExecContext(context.Background(), "create table t (a decimal(18,4))")
	g.Expect(err).NotTo(HaveOccurred())
	_, err = conn.ExecContext(context.Background(), "insert into t values (cast(? as decimal(18,4)))", "10.5")
	g.Expect(err).NotTo(HaveOccurred())
}

func TestOpenDbConnectionErrors(t *testing.T) {
	g := NewGomegaWithT(t)
	log := logrus.New()
	_, err := OpenDbConnection(context.Background(), log, shared.NewDsnConnectionDetails("x", "oracle", "whatever"))
	g.Expect(err).To(MatchError(`unsupported database type, "oracle"`))
	_, err = OpenDbConnection(context.Background(), log, shared.NewDsnConnectionDetails("x", "postgres", "::not a url"))
	g.Expect(err).To(HaveOccurred())
	g.Expect(isSupportedConnection(constants.ConnectionTypeSqlServer)).To(BeTrue())
	g.Expect(isSupportedConnection(constants.ConnectionTypeDuckDb)).To(BeFalse())
}
