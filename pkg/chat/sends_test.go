package chat

import (
	"testing"
	"time"
)

func TestSendTracker_GraceClearsSilently(t *testing.T) {
	var s signals
	tr := NewSendTracker(20*time.Millisecond, s.emit)

	tr.Track("c-1")
	if !tr.Sending() {
		t.Fatal("Sending: got false after Track")
	}
	time.Sleep(80 * time.Millisecond)

	if tr.Sending() {
		t.Error("Sending: still true after grace period")
	}
	if got := s.snapshot(); !equalBools(got, []bool{true, false}) {
		t.Errorf("changes: got %v, want [true false]", got)
	}
	if tr.Ack("c-1") {
		t.Error("late ack matched an expired send")
	}
}

func TestSendTracker_Ack(t *testing.T) {
	tr := NewSendTracker(time.Minute, nil)
	tr.Track("c-1")
	tr.Track("c-2")

	if !tr.Ack("c-1") {
		t.Error("Ack(c-1): got false")
	}
	if !tr.Sending() {
		t.Error("Sending: want true while c-2 is pending")
	}
	tr.Ack("c-2")
	if tr.Sending() {
		t.Error("Sending: want false after all acks")
	}
}

func TestSendTracker_FailClearsAll(t *testing.T) {
	var s signals
	tr := NewSendTracker(time.Minute, s.emit)
	tr.Track("c-1")
	tr.Track("c-2")

	tr.Fail()
	tr.Fail()

	if tr.Sending() {
		t.Error("Sending after Fail")
	}
	if got := s.snapshot(); !equalBools(got, []bool{true, false}) {
		t.Errorf("changes: got %v, want [true false]", got)
	}
}
