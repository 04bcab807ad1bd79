package ledger

import (
	"testing"
	"time"
)

func TestParseMonthKey(t *testing.T) {
	valid := []string{"2026-01", "2026-12", "1999-09"}
	for _, s := range valid {
		if _, err := ParseMonthKey(s); err != nil {
			t.Errorf("%s: unexpected error %v", s, err)
		}
	}
	invalid := []string{"", "2026", "2026-1", "2026-00", "2026-13", "26-01", "2026/01", "2026-01-01"}
	for _, s := range invalid {
		if _, err := ParseMonthKey(s); err == nil {
			t.Errorf("%s: expected error", s)
		}
	}
}

func TestMonthKey_Window(t *testing.T) {
	start, end, err := MonthKey("2026-12").Window(time.UTC)
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}
	if !start.Equal(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	if !end.Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v", end)
	}
}

func TestMonthRange(t *testing.T) {
	got, err := MonthRange("2025-11", "2026-02")
	if err != nil {
		t.Fatalf("MonthRange failed: %v", err)
	}
	want := []MonthKey{"2025-11", "2025-12", "2026-01", "2026-02"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if _, err := MonthRange("2026-02", "2026-01"); err == nil {
		t.Error("expected error for reversed range")
	}
}

func TestMonthRange_YearRollover(t *testing.T) {
	got, err := MonthRange("2026-12", "2027-01")
	if err != nil {
		t.Fatalf("MonthRange failed: %v", err)
	}
	if len(got) != 2 || got[0] != "2026-12" || got[1] != "2027-01" {
		t.Errorf("got %v, want [2026-12 2027-01]", got)
	}
}

func TestMonthRange_LastRepresentableMonth(t *testing.T) {
	done := make(chan []MonthKey, 1)
	go func() {
		got, _ := MonthRange("9999-11", "9999-12")
		done <- got
	}()
	select {
	case got := <-done:
		if len(got) != 2 || got[0] != "9999-11" || got[1] != "9999-12" {
			t.Errorf("got %v, want [9999-11 9999-12]", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("MonthRange(9999-11, 9999-12) did not return")
	}
}

func TestMonthKey_Next(t *testing.T) {
	tests := []struct {
		in      MonthKey
		want    MonthKey
		wantErr bool
	}{
		{"2026-01", "2026-02", false},
		{"2026-12", "2027-01", false},
		{"0999-12", "1000-01", false},
		{"9999-12", "", true},
		{"2026-13", "", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			got, err := tt.in.Next()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Next() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Next() = %s, want %s", got, tt.want)
			}
		})
	}
}
