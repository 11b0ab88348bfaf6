package concepts

import (
	"testing"

	"github.com/cppc-project/cppc/pkg/types"
)

// TestSFINAEScenario grounds scenario 3: two overloads
// constrained by `integral` and `floating_point` each match exactly one
// of f(1) / f(1.0), with the other silently removed.
func TestSFINAEScenario(t *testing.T) {
	r := NewRegistry()

	intOK, err := r.Satisfies("integral", types.Int)
	if err != nil || !intOK {
		t.Fatalf("int should satisfy integral: ok=%v err=%v", intOK, err)
	}
	intRejected, err := r.Satisfies("floating_point", types.Int)
	if err != nil || intRejected {
		t.Fatalf("int should not satisfy floating_point")
	}

	floatOK, err := r.Satisfies("floating_point", types.Double)
	if err != nil || !floatOK {
		t.Fatalf("double should satisfy floating_point: ok=%v err=%v", floatOK, err)
	}
	floatRejected, err := r.Satisfies("integral", types.Double)
	if err != nil || floatRejected {
		t.Fatalf("double should not satisfy integral")
	}
}

func TestFilterCandidatesSFINAE(t *testing.T) {
	r := NewRegistry()
	candidates := []string{"integral", "floating_point"}

	intWinners := r.FilterCandidates(types.Int, candidates)
	if len(intWinners) != 1 || intWinners[0] != 0 {
		t.Fatalf("int should keep only the integral candidate, got %v", intWinners)
	}

	floatWinners := r.FilterCandidates(types.Double, candidates)
	if len(floatWinners) != 1 || floatWinners[0] != 1 {
		t.Fatalf("double should keep only the floating_point candidate, got %v", floatWinners)
	}
}

func TestUnknownConceptIsAnError(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Satisfies("bogus", types.Int); err == nil {
		t.Fatalf("expected an error for an unregistered concept name")
	}
}
