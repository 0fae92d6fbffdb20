package config_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/relloyd/scdpipe/config"
)

var _ = Describe("File", func() {
	var dir string
	var f *config.File

	BeforeEach(func() {
		var err error
		dir, err = ioutil.TempDir("", "config")
		Expect(err).NotTo(HaveOccurred())
		f = config.NewConfigFileWithDir(filepath.Join(dir, ".scdpipe"), config.MainFileFullName)
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("Should treat a missing file as empty", func() {
		keys, err := f.GetAllKeys()
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(BeEmpty())
		var s string
		err = f.Get("log-level", &s)
		Expect(err).To(BeAssignableToTypeOf(config.KeyNotFoundError{}))
	})

	It("Should write keys and read them back from a new File", func() {
		Expect(f.Set("warehouse-dsn", "/tmp/olap.duckdb")).To(Succeed())
		Expect(f.Set("max-attempts", 5)).To(Succeed())
		Expect(f.Set("retry-delay", "45s")).To(Succeed())

		again := config.NewConfigFileWithDir(f.Dirname, f.FileName)
		var dsn string
		Expect(again.Get("warehouse-dsn", &dsn)).To(Succeed())
		Expect(dsn).To(Equal("/tmp/olap.duckdb"))
		var attempts int
		Expect(again.Get("max-attempts", &attempts)).To(Succeed())
		Expect(attempts).To(Equal(5))
		var delay time.Duration
		Expect(again.Get("retry-delay", &delay)).To(Succeed())
		Expect(delay).To(Equal(45 * time.Second))
		var text string
		Expect(again.Get("max-attempts", &text)).To(Succeed())
		Expect(text).To(Equal("5"))
		keys, err := again.GetAllKeys()
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(Equal([]string{"max-attempts", "retry-delay", "warehouse-dsn"}))
	})

	It("Should delete keys", func() {
		Expect(f.Set("lag-days", 1)).To(Succeed())
		Expect(f.Delete("lag-days")).To(Succeed())
		Expect(f.Delete("lag-days")).To(BeAssignableToTypeOf(config.KeyNotFoundError{}))
	})

	It("Should reject a non-pointer target", func() {
		var s string
		Expect(f.Get("x", s)).To(MatchError("out must be a pointer"))
	})

	It("Should report a corrupt file", func() {
		Expect(os.MkdirAll(f.Dirname, 0755)).To(Succeed())
		Expect(ioutil.WriteFile(f.FullPath, []byte("a: [unclosed"), 0600)).To(Succeed())
		_, err := f.GetAllKeys()
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ParseValue", func() {
	It("Should type booleans and integers and keep the rest as text", func() {
		Expect(config.ParseValue("true")).To(Equal(true))
		Expect(config.ParseValue("3")).To(Equal(3))
		Expect(config.ParseValue("30s")).To(Equal("30s"))
		Expect(config.ParseValue("2024-01-02")).To(Equal("2024-01-02"))
	})
})
