package services

import (
	"sync/atomic"

	"github.com/fxviews/fx-views-go/internal/pressure"
	"github.com/fxviews/fx-views-go/internal/valuation"
)

// ModelRegistry holds the active model states behind atomic pointers.
// States are immutable after publication, so concurrent readers never need
// a lock; a successful re-fit swaps the pointer, a failed one leaves the
// previous state in force.
type ModelRegistry struct {
	layer1 atomic.Pointer[valuation.ModelState]
	layer2 atomic.Pointer[pressure.ModelState]
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{}
}

// Layer1 returns the active valuation state, or nil before the first fit.
func (r *ModelRegistry) Layer1() *valuation.ModelState {
	return r.layer1.Load()
}

// Layer2 returns the active pressure state, or nil before the first fit.
func (r *ModelRegistry) Layer2() *pressure.ModelState {
	return r.layer2.Load()
}

// PublishLayer1 atomically activates a new valuation state.
func (r *ModelRegistry) PublishLayer1(state *valuation.ModelState) {
	r.layer1.Store(state)
}

// PublishLayer2 atomically activates a new pressure state.
func (r *ModelRegistry) PublishLayer2(state *pressure.ModelState) {
	r.layer2.Store(state)
}
