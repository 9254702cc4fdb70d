package logging

// Standardized structured log field keys.
const (
	// FieldComponent identifies the subsystem emitting the record.
	FieldComponent = "component"
	// FieldEventType is a machine-matchable event identifier.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step when an operation fails.
	FieldErrorHint = "error_hint"
	// FieldPath is the absolute path of the file an event concerns.
	FieldPath = "path"
	// FieldFolder is the configured folder an event concerns.
	FieldFolder = "folder"
	// FieldJobID identifies a processing job.
	FieldJobID = "job_id"
	// FieldFileID identifies a catalog media file.
	FieldFileID = "file_id"
)
