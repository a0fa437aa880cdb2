package gateway

import "testing"

func TestSessionStateSeq(t *testing.T) {
	var s SessionState

	if _, ok := s.Seq(); ok {
		t.Error("fresh state claims to have a seq")
	}

	if !s.SetSeq(3) {
		t.Error("first seq reported out of order")
	}
	if !s.SetSeq(5) {
		t.Error("increasing seq reported out of order")
	}

	// A regression keeps the maximum.
	if s.SetSeq(4) {
		t.Error("regressing seq reported in order")
	}

	seq, ok := s.Seq()
	if !ok || seq != 5 {
		t.Errorf("expected seq 5, got %d (ok=%v)", seq, ok)
	}

	// Duplicates are reported too, keeping the stored value.
	if s.SetSeq(5) {
		t.Error("repeated seq reported as an advance")
	}

	seq, ok = s.Seq()
	if !ok || seq != 5 {
		t.Errorf("expected seq 5 after repeat, got %d (ok=%v)", seq, ok)
	}
}

func TestSessionStateResumeInfo(t *testing.T) {
	var s SessionState

	if _, _, ok := s.ResumeInfo(); ok {
		t.Error("fresh state claims to be resumable")
	}

	s.SetSessionID("session_1")
	if _, _, ok := s.ResumeInfo(); ok {
		t.Error("state with no seq claims to be resumable")
	}

	s.SetSeq(7)

	id, seq, ok := s.ResumeInfo()
	if !ok || id != "session_1" || seq != 7 {
		t.Errorf("wrong resume info: %q %d %v", id, seq, ok)
	}

	s.Clear()

	if _, _, ok := s.ResumeInfo(); ok {
		t.Error("cleared state claims to be resumable")
	}
	if s.SessionID() != "" {
		t.Error("session id survived Clear")
	}
	if _, ok := s.Seq(); ok {
		t.Error("seq survived Clear")
	}
}
