package catalog

import (
	"encoding/json"
	"slices"
)

// Phase is the exposed state of a browsing controller.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseLoading     Phase = "loading"
	PhaseLoadingMore Phase = "loading_more"
	PhaseReady       Phase = "ready"
	PhaseComplete    Phase = "complete"
	PhaseSorted      Phase = "sorted"
	PhaseError       Phase = "error"
)

// pager holds the incremental collection. It is not safe for concurrent use;
// the controller serializes access.
type pager struct {
	phase  Phase
	stable Phase

	items         []Item
	page          int
	declaredTotal int
	hasMore       bool
	loadedFirst   bool
	retryCount    int
}

func newPager() pager {
	return pager{phase: PhaseIdle, stable: PhaseIdle}
}

func (p *pager) inFlight() bool {
	return p.phase == PhaseLoading || p.phase == PhaseLoadingMore
}

func (p *pager) canStart() bool {
	return p.phase == PhaseIdle && !p.loadedFirst
}

func (p *pager) canLoadMore() bool {
	return p.loadedFirst && p.phase == PhaseReady && p.hasMore
}

// begin moves into a loading phase for pageIndex. A pending retry keeps the
// pager in this phase until the final attempt resolves.
func (p *pager) begin(pageIndex int) {
	p.stable = p.phase
	if pageIndex == 0 {
		p.phase = PhaseLoading
		return
	}
	p.phase = PhaseLoadingMore
}

// apply commits a validated page. Nothing is touched before this point.
func (p *pager) apply(pageIndex int, items []Item, total json.RawMessage, appendItems bool) {
	if pageIndex == 0 {
		p.declaredTotal = ParseTotal(total)
	}
	if appendItems {
		p.items = append(slices.Clip(p.items), items...)
	} else {
		p.items = items
	}
	p.page = pageIndex
	p.loadedFirst = true
	p.retryCount = 0
	p.hasMore = (pageIndex+1)*PageSize < p.declaredTotal
	p.settle()
}

// fail returns to the last stable phase.
func (p *pager) fail() {
	p.phase = p.stable
	p.retryCount = 0
}

// setDeclaredTotal replaces the total after a full collection fetch.
func (p *pager) setDeclaredTotal(total int) {
	p.declaredTotal = total
	if !p.loadedFirst {
		return
	}
	p.hasMore = (p.page+1)*PageSize < p.declaredTotal
	if !p.inFlight() {
		p.settle()
	} else if p.stable == PhaseReady || p.stable == PhaseComplete {
		p.stable = p.stablePhase()
	}
}

func (p *pager) settle() {
	p.phase = p.stablePhase()
}

func (p *pager) stablePhase() Phase {
	if p.hasMore {
		return PhaseReady
	}
	return PhaseComplete
}
