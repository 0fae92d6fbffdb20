package logger_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/relloyd/scdpipe/logger"
	"github.com/sirupsen/logrus"
)

var _ = Describe("Logger", func() {
	log := logger.NewLogger("test-service", "debug", true)

	capture := func(fn func()) map[string]interface{} {
		logOutput := bytes.NewBufferString("")
		log.SetOutput(logOutput)
		fn()
		var actual map[string]interface{}
		Expect(json.Unmarshal(logOutput.Bytes(), &actual)).To(Succeed())
		return actual
	}

	It("Should have `test-service` as service name", func() {
		actual := capture(func() { log.Info("Testing") })
		Expect(actual["service"]).To(Equal("test-service"))
	})

	It("Should have info as log level", func() {
		actual := capture(func() { log.Info("Testing") })
		Expect(actual["level"]).To(Equal("info"))
	})

	It("Should have warn as log level", func() {
		actual := capture(func() { log.Warn("Testing") })
		Expect(actual["level"]).To(Equal("warning"))
	})

	It("Should have error as log level with a stack trace", func() {
		actual := capture(func() { log.Error("Testing") })
		Expect(actual["level"]).To(Equal("error"))
		Expect(actual["stackTrace"]).ToNot(BeNil())
	})

	It("Should have `Testing` as msg", func() {
		actual := capture(func() { log.Info("Testing") })
		Expect(actual["msg"]).To(Equal("Testing"))
	})

	It("Should carry run fields on a child logger", func() {
		child := log.WithFields(logger.Fields{"run_id": "abc", "attempt": 2})
		actual := capture(func() { child.Info("Testing") })
		Expect(actual["run_id"]).To(Equal("abc"))
		Expect(actual["attempt"]).To(BeNumerically("==", 2))
		Expect(actual["service"]).To(Equal("test-service"))
	})

	It("Should add fields to a plain logrus logger", func() {
		l := logrus.New()
		buf := bytes.NewBufferString("")
		l.SetOutput(buf)
		l.SetFormatter(&logrus.JSONFormatter{})
		logger.WithFields(l, logger.Fields{"stage": "merge"}).Info("Testing")
		var actual map[string]interface{}
		Expect(json.Unmarshal(buf.Bytes(), &actual)).To(Succeed())
		Expect(actual["stage"]).To(Equal("merge"))
	})
})
