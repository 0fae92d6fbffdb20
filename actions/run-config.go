package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/relloyd/scdpipe/aws/s3"
	"github.com/relloyd/scdpipe/components"
	c "github.com/relloyd/scdpipe/constants"
	h "github.com/relloyd/scdpipe/helper"
	"github.com/relloyd/scdpipe/logger"
	"github.com/relloyd/scdpipe/orchestrator"
	"github.com/relloyd/scdpipe/rdbms"
	"github.com/relloyd/scdpipe/rdbms/shared"
	"github.com/relloyd/scdpipe/snapshot"
	"github.com/relloyd/scdpipe/stats"
	tabledefinition "github.com/relloyd/scdpipe/table-definition"
)

// RunConfig holds every setting needed to process run dates.
type RunConfig struct {
	LogLevel         string        `errorTxt:"log level" mandatory:"yes" json:"logLevel"`
	StackDumpOnPanic bool          `json:"stackDumpOnPanic"`
	SourceType       string        `errorTxt:"source type" mandatory:"yes" json:"sourceType"`
	SourceDsn        string        `errorTxt:"source DSN" mandatory:"yes" json:"-"`
	WarehouseType    string        `errorTxt:"warehouse type" mandatory:"yes" json:"warehouseType"`
	WarehouseDsn     string        `errorTxt:"warehouse DSN" mandatory:"yes" json:"-"`
	TableNames       string        `json:"tableNames,omitempty"` // CSV of entity=table
	FiltersFile      string        `json:"filtersFile,omitempty"` // YAML or JSON map of entity to JSON Logic rule
	SummaryPeriod    string        `json:"summaryPeriod"`
	ReplayPolicy     string        `json:"replayPolicy"`
	MaxAttempts      int           `json:"maxAttempts"`
	RetryDelay       time.Duration `json:"retryDelay"`
	LockTTL          time.Duration `json:"lockTtl"`
	BatchSize        int           `json:"batchSize"`
	ArchiveDir       string        `json:"archiveDir,omitempty"`
	ArchiveGzip      bool          `json:"archiveGzip"`
	ArchiveS3Url     string        `json:"archiveS3Url,omitempty"` // s3://<bucket>[/<prefix>]
	ArchiveS3Region  string        `json:"archiveS3Region,omitempty"`
	LagDays          int           `json:"lagDays"` // used when no run date is given
	Output           string        `json:"-"`       // yaml or json
}

// Redacted returns the config as a map with DSN passwords hidden, for display.
func (cfg *RunConfig) Redacted() (map[string]interface{}, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	m := make(map[string]interface{})
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	m["sourceDsn"] = shared.RedactDsn(cfg.SourceType, cfg.SourceDsn)
	m["warehouseDsn"] = shared.RedactDsn(cfg.WarehouseType, cfg.WarehouseDsn)
	m["retryDelay"] = cfg.RetryDelay.String()
	m["lockTtl"] = cfg.LockTTL.String()
	return m, nil
}

// parseTableNames reads "entity=table,entity=table".
func parseTableNames(s string) (map[string]string, error) {
	retval := make(map[string]string)
	for _, pair := range h.CsvToStringSliceTrimSpaces(s) {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || strings.TrimSpace(kv[0]) == "" || strings.TrimSpace(kv[1]) == "" {
			return nil, fmt.Errorf("bad table name mapping %q, expected <entity>=<table>", pair)
		}
		retval[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return retval, nil
}

// loadFilters reads a YAML or JSON file mapping entity to a JSON Logic rule.
func loadFilters(fileName string) (map[string]string, error) {
	if fileName == "" {
		return nil, nil
	}
	b, err := ioutil.ReadFile(fileName)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read filters file")
	}
	rules := make(map[string]interface{})
	if err := yaml.Unmarshal(b, &rules); err != nil {
		return nil, errors.Wrapf(err, "unable to parse filters file %v", fileName)
	}
	retval := make(map[string]string, len(rules))
	for entity, rule := range rules {
		j, err := json.Marshal(rule)
		if err != nil {
			return nil, errors.Wrapf(err, "bad filter rule for %v", entity)
		}
		retval[entity] = string(j)
	}
	return retval, nil
}

// Pipeline is the wired set of connections and services used by the actions.
type Pipeline struct {
	Log          logger.Logger
	Source       shared.Connector
	Warehouse    shared.Connector
	RunStore     *rdbms.RunStore
	Orchestrator *orchestrator.Orchestrator
}

// NewPipeline opens both connections, creates the warehouse and bookkeeping tables and wires the orchestrator.
func NewPipeline(ctx context.Context, log logger.Logger, cfg *RunConfig, metrics *stats.Metrics) (_ *Pipeline, err error) {
	if err := h.ValidateStructIsPopulated(cfg); err != nil {
		return nil, err
	}
	policy, err := components.ParseReplayPolicy(cfg.ReplayPolicy)
	if err != nil {
		return nil, err
	}
	builders, err := components.DefaultTableBuilders(cfg.SummaryPeriod)
	if err != nil {
		return nil, err
	}
	tableNames, err := parseTableNames(cfg.TableNames)
	if err != nil {
		return nil, err
	}
	filters, err := loadFilters(cfg.FiltersFile)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{Log: log}
	defer func() {
		if err != nil {
			p.Close()
		}
	}()
	p.Warehouse, err = rdbms.OpenDbConnection(ctx, log, shared.NewDsnConnectionDetails("warehouse", cfg.WarehouseType, cfg.WarehouseDsn))
	if err != nil {
		return nil, errors.Wrap(err, "unable to open warehouse")
	}
	p.Source, err = rdbms.OpenDbConnection(ctx, log, shared.NewDsnConnectionDetails("source", cfg.SourceType, cfg.SourceDsn))
	if err != nil {
		return nil, errors.Wrap(err, "unable to open source")
	}
	wh, err := rdbms.NewWarehouse(&rdbms.WarehouseConfig{
		Log:       log,
		Conn:      p.Warehouse,
		Tables:    tabledefinition.WarehouseTables(),
		BatchSize: cfg.BatchSize,
	})
	if err != nil {
		return nil, err
	}
	if err = wh.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	if p.RunStore, err = rdbms.NewRunStore(log, p.Warehouse); err != nil {
		return nil, err
	}
	if err = p.RunStore.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	archiver, err := newArchiver(log, cfg)
	if err != nil {
		return nil, err
	}
	extractor, err := snapshot.NewExtractor(&snapshot.ExtractorConfig{
		Log:        log,
		Source:     p.Source,
		TableNames: tableNames,
		Filters:    filters,
		Archiver:   archiver,
	})
	if err != nil {
		return nil, err
	}
	p.Orchestrator, err = orchestrator.NewOrchestrator(&orchestrator.Config{
		Log:         log,
		Extractor:   extractor,
		Builders:    builders,
		Warehouse:   wh,
		RunStore:    p.RunStore,
		MaxAttempts: cfg.MaxAttempts,
		RetryDelay:  cfg.RetryDelay,
		LockTTL:     cfg.LockTTL,
		Policy:      policy,
		Metrics:     metrics,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newArchiver(log logger.Logger, cfg *RunConfig) (*snapshot.Archiver, error) {
	if cfg.ArchiveDir == "" {
		if cfg.ArchiveS3Url != "" {
			return nil, errors.New("an archive directory is required to upload archives to S3")
		}
		return nil, nil
	}
	a := &snapshot.Archiver{Log: log, Directory: cfg.ArchiveDir, Gzip: cfg.ArchiveGzip}
	if cfg.ArchiveS3Url != "" {
		bucket, err := s3.ParseDSN(cfg.ArchiveS3Url, cfg.ArchiveS3Region)
		if err != nil {
			return nil, err
		}
		if a.Uploader, err = s3.NewBasicClient(bucket); err != nil {
			return nil, errors.Wrapf(err, "unable to create S3 client for %v", bucket)
		}
		log.Info("archives will be uploaded to ", bucket)
	}
	return a, h.ValidateStructIsPopulated(a)
}

// Close closes any open connection.
func (p *Pipeline) Close() {
	if p.Source != nil {
		p.Source.Close()
	}
	if p.Warehouse != nil {
		p.Warehouse.Close()
	}
}

// DefaultRunDate returns the calendar day lagDays before now.
func DefaultRunDate(now time.Time, lagDays int) time.Time {
	return h.TruncateToDay(now).AddDate(0, 0, -lagDays)
}

func newLogger(cfg *RunConfig) logger.Logger {
	return logger.NewLogger(c.ServiceName, cfg.LogLevel, cfg.StackDumpOnPanic)
}
