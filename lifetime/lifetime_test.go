package lifetime

import "testing"

const tenMinutes = 6 // 6 blocks per ten minutes, easy arithmetic for tests

func TestComputeStage_NoSuccessor(t *testing.T) {
	if s := ComputeStage(100, nil, 50, tenMinutes); s != NotYetActive {
		t.Fatalf("expected NotYetActive, got %s", s)
	}
	if s := ComputeStage(100, nil, 100, tenMinutes); s != Active {
		t.Fatalf("expected Active, got %s", s)
	}
	if s := ComputeStage(100, nil, 10_000, tenMinutes); s != Active {
		t.Fatalf("expected Active forever without a successor, got %s", s)
	}
}

func TestComputeStage_Rotation(t *testing.T) {
	// Mirrors scenario E4: K0 active from 0, K1 queued to activate at 110
	// with WINDOW_LENGTH=10 (acknowledge_block(100, K1) -> activation 110).
	succ := uint64(110)

	cases := []struct {
		current uint64
		want    Stage
	}{
		{0, Active},
		{109, Active},
		{110, UsedToForward},
		{110 + 6*tenMinutes - 1, UsedToForward},
		{110 + 6*tenMinutes, Forwarding},
		{110 + 12*tenMinutes - 1, Forwarding},
		{110 + 12*tenMinutes, Finishing},
		{110 + 100*tenMinutes, Finishing},
	}
	for _, c := range cases {
		if got := ComputeStage(0, &succ, c.current, tenMinutes); got != c.want {
			t.Errorf("ComputeStage(0, %d, %d) = %s, want %s", succ, c.current, got, c.want)
		}
	}
}

func TestComputeStage_NotYetActiveWithSuccessor(t *testing.T) {
	succ := uint64(200)
	if s := ComputeStage(100, &succ, 50, tenMinutes); s != NotYetActive {
		t.Fatalf("expected NotYetActive, got %s", s)
	}
}
