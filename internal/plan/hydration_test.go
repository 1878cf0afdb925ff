package plan

import "testing"

func TestBuildHydrationScheduleDefaults(t *testing.T) {
	doses := BuildHydrationSchedule(2000, At(7, 0), nil, nil)
	// 14h window at a 2h gap gives 7 doses of 2000/7 ml.
	if len(doses) != 7 {
		t.Fatalf("got %d doses, want 7", len(doses))
	}
	if doses[0].Time != At(7, 0) {
		t.Fatalf("first dose at %v, want 07:00", doses[0].Time)
	}
	for i, d := range doses {
		if d.VolumeML != 2000/7 {
			t.Fatalf("dose %d volume %d, want %d", i, d.VolumeML, 2000/7)
		}
		if i > 0 {
			gap := d.Time.Minutes() - doses[i-1].Time.Minutes()
			if gap != 120 {
				t.Fatalf("gap before dose %d is %d min, want 120", i, gap)
			}
		}
	}
}

func TestBuildHydrationScheduleMinimums(t *testing.T) {
	start := At(8, 0)
	end := At(10, 0)
	doses := BuildHydrationSchedule(2000, At(7, 0), &start, &end)
	if len(doses) != 4 {
		t.Fatalf("narrow window: got %d doses, want minimum 4", len(doses))
	}
	if doses[0].Time != start {
		t.Fatalf("first dose at %v, want %v", doses[0].Time, start)
	}

	doses = BuildHydrationSchedule(400, At(7, 0), nil, nil)
	for i, d := range doses {
		if d.VolumeML != 150 {
			t.Fatalf("small goal: dose %d volume %d, want floor 150", i, d.VolumeML)
		}
	}
}

func TestBuildHydrationScheduleWindowAcrossMidnight(t *testing.T) {
	start := At(22, 0)
	end := At(2, 0)
	doses := BuildHydrationSchedule(1000, At(7, 0), &start, &end)
	if len(doses) != 4 {
		t.Fatalf("got %d doses, want 4", len(doses))
	}
	if doses[0].Time != start {
		t.Fatalf("first dose at %v, want 22:00", doses[0].Time)
	}
	// 4h span split four ways.
	if doses[1].Time != At(23, 0) {
		t.Fatalf("second dose at %v, want 23:00", doses[1].Time)
	}
	if doses[3].Time != At(1, 0) {
		t.Fatalf("last dose at %v, want 01:00", doses[3].Time)
	}
}
