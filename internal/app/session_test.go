package app

import "testing"

func TestSession(t *testing.T) {
	s := NewSession("abcd1234", "scan")
	if s.Status != "success" || s.Failed() {
		t.Errorf("new session Status = %q, want success", s.Status)
	}

	s.Fail()
	if !s.Failed() {
		t.Error("Failed() = false after Fail()")
	}
}
