package alertlog

import "codeberg.org/mutker/sensorpoll/internal/errors"

const (
	ErrInvalidDBPath = errors.ErrorCode("alertlog_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("alertlog_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("alertlog_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("alertlog_schema_migration_failed")

	// Storage Errors
	ErrStorageAccess = errors.ErrorCode("alertlog_storage_access_failed")
	ErrStorageInit   = errors.ErrInitFailed
	ErrStorageClose  = errors.ErrShutdownFailed

	ErrOperationTimeout = errors.ErrTimeout
)
