package prefixcache

import (
	"strings"
	"testing"
)

// TestOps_TableIsComplete checks every operation has a name that resolves
// back to it and a usable key position.
func TestOps_TableIsComplete(t *testing.T) {
	ops := Ops()
	if len(ops) != 30 {
		t.Fatalf("Ops() returned %d operations, want 30", len(ops))
	}

	seen := make(map[string]bool)
	for _, op := range ops {
		name := op.String()
		if name == "" {
			t.Fatalf("op %d has no name", op)
		}
		if seen[name] {
			t.Errorf("duplicate op name %q", name)
		}
		seen[name] = true

		got, ok := LookupOp(name)
		if !ok || got != op {
			t.Errorf("LookupOp(%q) = %v, %v; want %v, true", name, got, ok, op)
		}
		if op.KeyArg() < 0 || op.KeyArg() > 2 {
			t.Errorf("%s KeyArg = %d, want 0..2", name, op.KeyArg())
		}
	}
}

func TestOps_KeyPositions(t *testing.T) {
	tests := []struct {
		op   Op
		want int
	}{
		{OpGet, 0},
		{OpGetByKey, 1},
		{OpGetMulti, 0},
		{OpGetMultiByKey, 1},
		{OpGetDelayed, 0},
		{OpGetDelayedByKey, 1},
		{OpSet, 0},
		{OpSetByKey, 1},
		{OpSetMultiByKey, 1},
		{OpAppendByKey, 1},
		{OpCas, 1},
		{OpCasByKey, 2},
		{OpDeleteByKey, 1},
		{OpIncrement, 0},
		{OpTouchByKey, 1},
	}

	for _, tt := range tests {
		if got := tt.op.KeyArg(); got != tt.want {
			t.Errorf("%s KeyArg = %d, want %d", tt.op, got, tt.want)
		}
	}
}

// TestOps_BatchByName checks that batch classification follows the
// Multi/Delayed naming and nothing else.
func TestOps_BatchByName(t *testing.T) {
	batch := map[Op]bool{
		OpGetMulti:         true,
		OpGetMultiByKey:    true,
		OpGetDelayed:       true,
		OpGetDelayedByKey:  true,
		OpSetMulti:         true,
		OpSetMultiByKey:    true,
		OpDeleteMulti:      true,
		OpDeleteMultiByKey: true,
	}

	for _, op := range Ops() {
		if got := op.Batch(); got != batch[op] {
			t.Errorf("%s Batch = %v, want %v", op, got, batch[op])
		}
		name := op.String()
		byName := strings.Contains(name, "Multi") || strings.Contains(name, "Delayed")
		if op.Batch() != byName {
			t.Errorf("%s Batch disagrees with its name", op)
		}
	}
}

func TestIsBatchName(t *testing.T) {
	tests := map[string]bool{
		"get":             false,
		"getByKey":        false,
		"getMulti":        true,
		"fetchDelayed":    true,
		"getDelayedByKey": true,
		"delayed":         false,
		"multiGet":        false,
	}
	for name, want := range tests {
		if got := isBatchName(name); got != want {
			t.Errorf("isBatchName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestLookupOp_Unknown(t *testing.T) {
	for _, name := range []string{"", "flush", "Get", "getmulti", "fetchAll"} {
		if _, ok := LookupOp(name); ok {
			t.Errorf("LookupOp(%q) should fail", name)
		}
	}
}

func TestOp_Invalid(t *testing.T) {
	op := Op(200)
	if op.String() != "Op(200)" {
		t.Errorf("String = %q, want %q", op.String(), "Op(200)")
	}
	if op.KeyArg() != -1 {
		t.Errorf("KeyArg = %d, want -1", op.KeyArg())
	}
	if op.Batch() {
		t.Error("invalid op should not be batch")
	}
}
