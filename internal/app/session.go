package app

// Session tracks one CLI invocation. Its ID tags every log line the
// invocation writes.
type Session struct {
	ID      string
	Command string
	Status  string // "success" or "error"
}

// NewSession creates a session that has not failed yet.
func NewSession(id, command string) *Session {
	return &Session{
		ID:      id,
		Command: command,
		Status:  "success",
	}
}

// Fail marks the session as failed.
func (s *Session) Fail() {
	s.Status = "error"
}

func (s *Session) Failed() bool {
	return s.Status == "error"
}
