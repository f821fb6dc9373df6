package logging

import "testing"

func TestNewBuildsBothModes(t *testing.T) {
	for _, debug := range []bool{false, true} {
		logger, err := New(debug)
		if err != nil {
			t.Fatalf("debug=%v: %v", debug, err)
		}
		logger.Debugf("debug=%v", debug)
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatalf("expected a logger")
	}
	logger := Nop()
	if OrNop(logger) != logger {
		t.Fatalf("expected the given logger back")
	}
}
