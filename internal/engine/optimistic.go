package engine

import (
	"sync"

	"github.com/lalith-99/agora/internal/models"
)

// OptimisticPhase tracks a provisional local vote through its lifecycle.
// The phases are one-way: Pending → Settled or Pending → Reverted, never
// back. A delta is never left ambiguous — it is either replaced by the
// authoritative result or rolled back.
type OptimisticPhase int

const (
	PhasePending OptimisticPhase = iota
	PhaseSettled
	PhaseReverted
)

// OptimisticVote is the two-phase local-then-authoritative vote update a
// serving edge applies for responsiveness. It computes the provisional
// score delta a cast implies given the caller's known prior vote, exposes
// it immediately, and reconciles once the VoteProcessor answers.
//
// Safe for concurrent use; the transition methods are idempotent in the
// sense that only the first of Settle/Revert wins.
type OptimisticVote struct {
	mu    sync.Mutex
	phase OptimisticPhase
	delta int
	final *VoteResult
}

// BeginOptimisticVote starts the pending phase. prior is the caller's
// current vote on the item (nil if none), cast the vote being submitted.
// The provisional delta mirrors the processor's semantics: add moves the
// score by ±1, retract undoes ±1, switch moves it by ±2.
func BeginOptimisticVote(prior *models.VoteType, cast models.VoteType) *OptimisticVote {
	direction := 1
	if cast == models.VoteDown {
		direction = -1
	}

	var delta int
	switch {
	case prior == nil:
		delta = direction
	case *prior == cast:
		delta = -direction
	default:
		delta = 2 * direction
	}
	return &OptimisticVote{phase: PhasePending, delta: delta}
}

// Delta returns the score delta the caller should currently display:
// the provisional delta while pending, zero once reverted. After Settle
// the authoritative VoteResult is the source of truth and Delta keeps
// returning the provisional value only as a fallback for callers that
// have not yet repainted from Result.
func (o *OptimisticVote) Delta() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase == PhaseReverted {
		return 0
	}
	return o.delta
}

// Settle installs the authoritative transaction result. Returns false if
// the vote was already settled or reverted.
func (o *OptimisticVote) Settle(res *VoteResult) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase != PhasePending {
		return false
	}
	o.phase = PhaseSettled
	o.final = res
	return true
}

// Revert rolls the provisional delta back after a failed transaction.
// Returns false if the vote was already settled or reverted.
func (o *OptimisticVote) Revert() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase != PhasePending {
		return false
	}
	o.phase = PhaseReverted
	return true
}

// Result returns the authoritative result once settled, else nil.
func (o *OptimisticVote) Result() *VoteResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.final
}

// Phase returns the current phase.
func (o *OptimisticVote) Phase() OptimisticPhase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}
