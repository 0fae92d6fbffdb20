package shared

import (
	"testing"

	"github.com/cevaris/ordered_map"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

func newTestGeneratorConfig(binds map[string]string) *SqlStatementGeneratorConfig {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)
	omKeys := ordered_map.NewOrderedMap()
	omKeys.Set("col1", "a")
	omKeys.Set("col2", "b")
	omCols := ordered_map.NewOrderedMap()
	omCols.Set("col3", "c")
	return &SqlStatementGeneratorConfig{
		Log:             log,
		OutputTable:     "t2",
		TargetKeyCols:   omKeys,
		TargetOtherCols: omCols,
		ColumnBinds:     binds,
	}
}

func TestSqlInsertBatching(t *testing.T) {
	g := NewGomegaWithT(t)
	o := NewSqliteDmlGenerator().NewInsertGenerator(newTestGeneratorConfig(nil))

	o.InitBatch(2)
	batchIsFull, err := o.AddValuesToBatch([]interface{}{"x", "y", 123})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(batchIsFull).To(BeFalse())
	batchIsFull, err = o.AddValuesToBatch([]interface{}{"p", "q", 2})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(batchIsFull).To(BeTrue())
	_, err = o.AddValuesToBatch([]interface{}{"p", "q", 3})
	g.Expect(err).To(HaveOccurred(), "the batch is full")

	g.Expect(o.GetStatement()).To(Equal("insert into t2 (a,b,c) values ( ?,?,? ),( ?,?,? )"))
	g.Expect(o.GetValues()).To(Equal([]interface{}{"x", "y", 123, "p", "q", 2}))

	o.InitBatch(1)
	_, err = o.AddValuesToBatch([]interface{}{"a", "b", 456, 789})
	g.Expect(err).To(HaveOccurred(), "the number of values must match the columns")

	o.InitBatch(1)
	_, err = o.AddValuesToBatch([]interface{}{"a", "b", 456})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(o.GetStatement()).To(Equal("insert into t2 (a,b,c) values ( ?,?,? )"))
	g.Expect(o.GetValues()).To(HaveLen(3))
}

func TestSqlInsertPartialBatchRegeneratesStatement(t *testing.T) {
	g := NewGomegaWithT(t)
	o := NewSqliteDmlGenerator().NewInsertGenerator(newTestGeneratorConfig(nil))
	o.InitBatch(3)
	_, _ = o.AddValuesToBatch([]interface{}{1, 2, 3})
	g.Expect(o.GetStatement()).To(Equal("insert into t2 (a,b,c) values ( ?,?,? )"))
	_, _ = o.AddValuesToBatch([]interface{}{4, 5, 6})
	g.Expect(o.GetStatement()).To(Equal("insert into t2 (a,b,c) values ( ?,?,? ),( ?,?,? )"))
}

func TestSqlInsertUsesColumnBinds(t *testing.T) {
	g := NewGomegaWithT(t)
	o := NewDuckDbDmlGenerator().NewInsertGenerator(newTestGeneratorConfig(map[string]string{
		"c": "CAST(? AS DECIMAL(18,4))",
	}))
	o.InitBatch(1)
	_, err := o.AddValuesToBatch([]interface{}{"x", "y", "1.5000"})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(o.GetStatement()).To(Equal("insert into t2 (a,b,c) values ( ?,?,CAST(? AS DECIMAL(18,4)) )"))
}

func TestNewInsertGeneratorPanicsOnBadConfig(t *testing.T) {
	g := NewGomegaWithT(t)
	cfg := newTestGeneratorConfig(nil)
	cfg.OutputTable = ""
	g.Expect(func() { NewSqliteDmlGenerator().NewInsertGenerator(cfg) }).To(Panic())
}
