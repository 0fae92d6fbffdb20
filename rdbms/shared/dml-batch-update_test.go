package shared

import (
	"regexp"
	"testing"

	. "github.com/onsi/gomega"
)

func TestSqlUpdateBatching(t *testing.T) {
	g := NewGomegaWithT(t)
	o := NewSqliteDmlGenerator().NewUpdateGenerator(newTestGeneratorConfig(nil))

	o.InitBatch(2)
	batchIsFull, err := o.AddValuesToBatch([]interface{}{"x", "y", 123})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(batchIsFull).To(BeFalse())
	batchIsFull, err = o.AddValuesToBatch([]interface{}{"p", "q", 2})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(batchIsFull).To(BeTrue())

	expected := "update t2 set c = src.c from ( select ? as a, ? as b, ? as c union all select ?, ?, ? ) src where t2.a = src.a and t2.b = src.b"
	g.Expect(o.GetStatement()).To(Equal(expected))
	g.Expect(o.GetValues()).To(Equal([]interface{}{"x", "y", 123, "p", "q", 2}))

	o.InitBatch(1)
	_, err = o.AddValuesToBatch([]interface{}{"a", "b"})
	g.Expect(err).To(HaveOccurred(), "too few values")
}

func TestSqlUpdateWithCastBinds(t *testing.T) {
	g := NewGomegaWithT(t)
	o := NewDuckDbDmlGenerator().NewUpdateGenerator(newTestGeneratorConfig(map[string]string{
		"a": "CAST(? AS BIGINT)",
		"c": "CAST(? AS DATE)",
	}))
	o.InitBatch(3)
	for i := 0; i < 3; i++ {
		_, err := o.AddValuesToBatch([]interface{}{i, "k", "2024-01-01"})
		g.Expect(err).NotTo(HaveOccurred())
	}
	stmt := o.GetStatement()
	g.Expect(stmt).To(HavePrefix("update t2 set c = src.c from ( select CAST(? AS BIGINT) as a, ? as b, CAST(? AS DATE) as c"))
	g.Expect(regexp.MustCompile(`union all`).FindAllString(stmt, -1)).To(HaveLen(2))
	g.Expect(o.GetValues()).To(HaveLen(9))
}
