package plan

import "testing"

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"07:00", At(7, 0), false},
		{"23:59", At(23, 59), false},
		{"00:00", 0, false},
		{" 09:30 ", At(9, 30), false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"12", 0, true},
		{"ab:cd", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseTimeOfDay(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTimeOfDay(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestAddWrapsMidnight(t *testing.T) {
	if got := At(23, 30).Add(60); got != At(0, 30) {
		t.Fatalf("23:30+60 = %v, want 00:30", got)
	}
	if got := At(0, 15).Add(-30); got != At(23, 45) {
		t.Fatalf("00:15-30 = %v, want 23:45", got)
	}
}

func TestFromMinutesNormalizes(t *testing.T) {
	if got := FromMinutes(-90); got != At(22, 30) {
		t.Fatalf("FromMinutes(-90) = %v, want 22:30", got)
	}
	if got := FromMinutes(minutesPerDay + 61); got != At(1, 1) {
		t.Fatalf("FromMinutes(day+61) = %v, want 01:01", got)
	}
}

func TestDiffMinutesShorterArc(t *testing.T) {
	cases := []struct {
		a, b TimeOfDay
		want int
	}{
		{At(23, 0), At(1, 0), 120},
		{At(1, 0), At(23, 0), -120},
		{At(10, 0), At(10, 0), 0},
		{At(0, 0), At(12, 0), 720},
	}
	for _, tc := range cases {
		if got := DiffMinutes(tc.a, tc.b); got != tc.want {
			t.Errorf("DiffMinutes(%v, %v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestString(t *testing.T) {
	if got := At(7, 5).String(); got != "07:05" {
		t.Fatalf("String() = %q, want 07:05", got)
	}
}
