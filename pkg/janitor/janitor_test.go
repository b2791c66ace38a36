package janitor

import "testing"

func TestSummaryString(t *testing.T) {
	s := Summary{TotalActions: 5, Succeeded: 4, Failed: 1}
	got := s.String()
	want := "cleanup: 5 actions, 4 succeeded, 1 failed"
	if got != want {
		t.Errorf("Summary.String() = %q, want %q", got, want)
	}
}

func TestJanitorAuditLogAccumulates(t *testing.T) {
	j := New(nil, Config{})

	j.logAudit("test_action", "target-1", true, nil)
	j.logAudit("test_action", "target-2", false, errTest{})

	entries := j.AuditLog()
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	if entries[0].Success != true || entries[1].Success != false {
		t.Fatalf("unexpected success flags: %+v", entries)
	}
	if entries[1].Error == "" {
		t.Fatal("expected failed entry to record an error message")
	}

	s := j.summary()
	if s.TotalActions != 2 || s.Succeeded != 1 || s.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }
