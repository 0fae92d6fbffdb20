package tabledefinition

import (
	"strings"
	"testing"
)

func TestTableDefinitionMapper(t *testing.T) {
	mapper, err := GetMapper("duckdb")
	if err != nil {
		t.Fatal(err)
	}
	got := mapper.Map(TableColumn{ColName: "x", DataType: DataTypeDecimal, DataScale: 4})
	if got != "DECIMAL(18,4) NOT NULL" {
		t.Fatalf("unexpected duckdb decimal mapping %q", got)
	}
	got = mapper.Map(TableColumn{ColName: "x", DataType: DataTypeDate, Nullable: true})
	if got != "DATE" {
		t.Fatalf("unexpected duckdb date mapping %q", got)
	}
	if _, err := GetMapper("oracle"); err == nil {
		t.Fatal("expected error for unsupported warehouse type")
	}
}

func TestEveryTypeIsMapped(t *testing.T) {
	for _, mapping := range [][]dataTypeLink{DuckDbDataTypeMapping, SqliteDataTypeMapping} {
		found := make(map[DataType]bool)
		for _, v := range mapping {
			found[v.SourceDataType] = true
		}
		for _, dt := range []DataType{DataTypeString, DataTypeInteger, DataTypeDecimal, DataTypeDate, DataTypeTimestamp, DataTypeBoolean} {
			if !found[dt] {
				t.Fatalf("data type %v is not mapped", dt)
			}
		}
	}
}

func TestGenerateTableDDL(t *testing.T) {
	sqlite := GenerateTableDDL(MembershipSummary, NewSqliteDataTypeMapper())
	if len(sqlite) != 2 {
		t.Fatalf("expected create table and index for sqlite; got %v", sqlite)
	}
	if !strings.Contains(sqlite[0], "membership_summary_sk INTEGER PRIMARY KEY") ||
		!strings.Contains(sqlite[0], "effective_end_date TEXT,") ||
		!strings.Contains(sqlite[0], "is_active INTEGER NOT NULL") {
		t.Fatalf("unexpected sqlite DDL: %v", sqlite[0])
	}
	duck := GenerateTableDDL(MembershipSummary, NewDuckDbDataTypeMapper())
	if len(duck) != 2 || !strings.HasPrefix(duck[0], "CREATE SEQUENCE IF NOT EXISTS membership_summary_sk_seq") {
		t.Fatalf("expected sequence then table for duckdb; got %v", duck)
	}
	if !strings.Contains(duck[1], "mdr_revenue DECIMAL(18,4) NOT NULL") {
		t.Fatalf("unexpected duckdb DDL: %v", duck[1])
	}
}

func TestGeneratePlainTableDDL(t *testing.T) {
	cols := []TableColumn{
		{ColName: "run_date", DataType: DataTypeString},
		{ColName: "owner", DataType: DataTypeString, Nullable: true},
	}
	got := GeneratePlainTableDDL("etl_run_lock", cols, []string{"run_date"}, NewDuckDbDataTypeMapper())
	want := "CREATE TABLE IF NOT EXISTS etl_run_lock (\n\trun_date VARCHAR NOT NULL,\n\towner VARCHAR,\n\tPRIMARY KEY (run_date)\n)"
	if got != want {
		t.Fatalf("unexpected DDL:\n%v\nwant:\n%v", got, want)
	}
}
