package types

// Field names of a LogRecord. These are the column names a dump emits.
const (
	FieldFilename   = "filename"
	FieldVersion    = "vcslog_version"
	FieldStartTime  = "start_time"
	FieldCmd        = "cmd"
	FieldEndTime    = "end_time"
	FieldDuration   = "duration"
	FieldExitStatus = "exit_status"
	FieldUserTime   = "user_time"
	FieldSystemTime = "system_time"
)

// LogRecord represents one wrapped command invocation parsed from a
// start/cmd/end block.
type LogRecord struct {
	Filename  string  `json:"filename"`
	Version   string  `json:"vcslog_version"`
	StartTime float64 `json:"start_time"`
	Cmd       string  `json:"cmd"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`

	// Optional fields, set only when the end line carried them.
	ExitStatus *int     `json:"exit_status,omitempty"`
	UserTime   *float64 `json:"user_time,omitempty"`
	SystemTime *float64 `json:"system_time,omitempty"`
}

// Keys returns the field names present on the record, core fields first.
func (r *LogRecord) Keys() []string {
	keys := []string{
		FieldFilename,
		FieldVersion,
		FieldStartTime,
		FieldCmd,
		FieldEndTime,
		FieldDuration,
	}
	if r.ExitStatus != nil {
		keys = append(keys, FieldExitStatus)
	}
	if r.UserTime != nil {
		keys = append(keys, FieldUserTime)
	}
	if r.SystemTime != nil {
		keys = append(keys, FieldSystemTime)
	}
	return keys
}

// Lookup returns the value stored under key. Unset optional fields and
// unknown keys report false.
func (r *LogRecord) Lookup(key string) (any, bool) {
	switch key {
	case FieldFilename:
		return r.Filename, true
	case FieldVersion:
		return r.Version, true
	case FieldStartTime:
		return r.StartTime, true
	case FieldCmd:
		return r.Cmd, true
	case FieldEndTime:
		return r.EndTime, true
	case FieldDuration:
		return r.Duration, true
	case FieldExitStatus:
		if r.ExitStatus == nil {
			return nil, false
		}
		return *r.ExitStatus, true
	case FieldUserTime:
		if r.UserTime == nil {
			return nil, false
		}
		return *r.UserTime, true
	case FieldSystemTime:
		if r.SystemTime == nil {
			return nil, false
		}
		return *r.SystemTime, true
	default:
		return nil, false
	}
}

// FilePosition tracks how far a followed log file has been emitted
type FilePosition struct {
	Path    string `json:"path"`
	Records int    `json:"records"`
	Inode   uint64 `json:"inode"`
}

// DumpStats summarizes one dump run
type DumpStats struct {
	Files         int64 `json:"files"`
	FilesFailed   int64 `json:"files_failed"`
	Records       int64 `json:"records"`
	UnknownFields int64 `json:"unknown_fields"`
}
