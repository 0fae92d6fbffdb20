package helper

import (
	"strings"
	"testing"
	"time"
)

type nestedCfg struct {
	Dsn string `mandatory:"yes" errorTxt:"source-dsn"`
}

type topCfg struct {
	Name       string        `mandatory:"yes" errorTxt:"name"`
	Delay      time.Duration `mandatory:"yes" errorTxt:"retry-delay"`
	Optional   string
	Source     nestedCfg
	Tables     []string `mandatory:"yes" errorTxt:"tables"`
	unexported string
}

func TestValidateStructIsPopulated(t *testing.T) {
	err := ValidateStructIsPopulated(&topCfg{})
	if err == nil {
		t.Fatal("expected an error for missing fields")
	}
	for _, txt := range []string{"name", "retry-delay", "source-dsn", "tables"} {
		if !strings.Contains(err.Error(), txt) {
			t.Fatalf("expected %q in error: %v", txt, err)
		}
	}
	ok := topCfg{Name: "x", Delay: time.Second, Source: nestedCfg{Dsn: "file:x"}, Tables: []string{"users"}}
	if err := ValidateStructIsPopulated(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
