package enums

import "fmt"

// ImportJobStatus tracks an asynchronous supplier extraction run.
type ImportJobStatus string

const (
	ImportJobStatusPending    ImportJobStatus = "pending"
	ImportJobStatusProcessing ImportJobStatus = "processing"
	ImportJobStatusCompleted  ImportJobStatus = "completed"
	ImportJobStatusFailed     ImportJobStatus = "failed"
)

var validImportJobStatuses = []ImportJobStatus{
	ImportJobStatusPending,
	ImportJobStatusProcessing,
	ImportJobStatusCompleted,
	ImportJobStatusFailed,
}

// String implements fmt.Stringer.
func (s ImportJobStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ImportJobStatus.
func (s ImportJobStatus) IsValid() bool {
	for _, candidate := range validImportJobStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the job can no longer change state.
func (s ImportJobStatus) IsTerminal() bool {
	return s == ImportJobStatusCompleted || s == ImportJobStatusFailed
}

// ParseImportJobStatus converts raw input into an ImportJobStatus.
func ParseImportJobStatus(value string) (ImportJobStatus, error) {
	for _, candidate := range validImportJobStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid import job status %q", value)
}
