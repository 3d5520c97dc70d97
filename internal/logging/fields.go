package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step for the reader of a warning.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldConnID identifies one accepted daemon connection.
	FieldConnID  = "conn_id"
	FieldSocket  = "socket"
	FieldLock    = "lock"
	FieldPIDFile = "pid_file"
	FieldPID     = "pid"

	// FieldSessionID ties every line of one daemon process together.
	FieldSessionID = "session_id"
)
