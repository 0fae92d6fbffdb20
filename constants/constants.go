package constants

// Merge flags and general settings.

const (
	MergeDiffValueNew            = "N" // new business key, insert
	MergeDiffValueChanged        = "C" // changed attributes, close active and insert
	MergeDiffValueIdentical      = "I" // no mutation
	MergeDiffValueCorrected      = "U" // replayed run date, active row updated in place
	DateFormat                   = "2006-01-02"
	TimestampFormat              = "2006-01-02 15:04:05"
	PeriodFormatMonth            = "2006-01"
	EnvVarPrefix                 = "SP" // prefixed for environment variables in twelveFactorMode
	ServiceName                  = "scdpipe"
	WarehouseBatchNumRowsDefault = 50
	RunLockTtlDefault            = "6h"
	RetryDelayDefault            = "30s"
	MaxAttemptsDefault           = 3
	ReplayPolicyReject           = "reject"
	ReplayPolicyCorrect          = "correct"
	SummaryPeriodMonth           = "month"
	SummaryPeriodDay             = "day"
	MembershipTypeNone           = "none"
	MembershipTypeBasic          = "basic"
	MembershipTypePremium        = "premium"
	ColumnNameEffectiveStartDate = "effective_start_date"
	ColumnNameEffectiveEndDate   = "effective_end_date"
	ColumnNameIsActive           = "is_active"
	SurrogateKeySuffix           = "_sk"
	TableNameRunLog              = "etl_run_log"
	TableNameRunLock             = "etl_run_lock"
	ConnectionTypeSqlite         = "sqlite"
	ConnectionTypeDuckDb         = "duckdb"
	ConnectionTypeSqlServer      = "sqlserver"
	ConnectionTypePostgres       = "postgres"
)

// Run states written to the run log.
const (
	RunStatePending    = "PENDING"
	RunStateExtracting = "EXTRACTING"
	RunStateBuilding   = "BUILDING"
	RunStateMerging    = "MERGING"
	RunStateSucceeded  = "SUCCEEDED"
	RunStateFailed     = "FAILED"
	RunStateAbandoned  = "ABANDONED"
)
