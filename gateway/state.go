package gateway

import "sync"

// SessionState holds the resumable identity of one logical gateway session:
// the session id handed out by READY and the last dispatch sequence number.
// It outlives individual websocket connections. Readers take the read lock;
// all writers are exclusive.
type SessionState struct {
	mut sync.RWMutex

	sessionID string
	seq       uint64
	hasSeq    bool
}

// SetSessionID installs the session id from a READY payload.
func (s *SessionState) SetSessionID(id string) {
	s.mut.Lock()
	s.sessionID = id
	s.mut.Unlock()
}

func (s *SessionState) SessionID() string {
	s.mut.RLock()
	defer s.mut.RUnlock()

	return s.sessionID
}

// SetSeq records a dispatch sequence number. last_seq is monotonic
// non-decreasing: a regression keeps the stored maximum. It reports whether
// seq advanced, so the caller can log repeats and regressions.
func (s *SessionState) SetSeq(seq uint64) bool {
	s.mut.Lock()
	defer s.mut.Unlock()

	if s.hasSeq && seq <= s.seq {
		return false
	}

	s.seq = seq
	s.hasSeq = true
	return true
}

// Seq returns the last recorded sequence number, if any. The heartbeat
// sender reads this.
func (s *SessionState) Seq() (uint64, bool) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	return s.seq, s.hasSeq
}

// ResumeInfo reports the session to resume. ok is false unless both the
// session id and a sequence number are known.
func (s *SessionState) ResumeInfo() (sessionID string, seq uint64, ok bool) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	if s.sessionID == "" || !s.hasSeq {
		return "", 0, false
	}

	return s.sessionID, s.seq, true
}

// Clear wipes both fields. Only an InvalidSession does this; the next
// handshake will Identify instead of Resume.
func (s *SessionState) Clear() {
	s.mut.Lock()
	s.sessionID = ""
	s.seq = 0
	s.hasSeq = false
	s.mut.Unlock()
}
