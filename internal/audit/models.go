package audit

import (
	"time"

	"wardgate/internal/catalog"
	id "wardgate/pkg/domain"
)

// Source tells where an allowed permission came from. Denied checks carry
// SourceNone.
type Source string

const (
	SourceRole      Source = "ROLE"
	SourceTemporary Source = "TEMPORARY"
	SourceAdmin     Source = "ADMIN"
	SourceNone      Source = ""
)

// Entry records one authorization check. Keep it transport-agnostic so
// stores and sinks can fan out.
type Entry struct {
	Timestamp  time.Time
	UserID     id.UserID
	Permission catalog.Code
	Granted    bool
	Source     Source
	RequestID  string
}
