package paxos

import (
	"cmp"
	"slices"
)

// PValue is a proposal an acceptor accepted for a slot under a ballot.
type PValue struct {
	Ballot   Ballot   `json:"ballot"`
	Slot     int64    `json:"slot"`
	Proposal Proposal `json:"proposal"`
}

type pvalueKey struct {
	ballot Ballot
	slot   int64
}

// PValues is a set of accepted values keyed by (ballot, slot).
type PValues map[pvalueKey]Proposal

// NewPValues returns a set holding list
func NewPValues(list ...PValue) PValues {
	pvals := make(PValues, len(list))
	pvals.Add(list...)
	return pvals
}

// Add records every value of list, a value seen before is kept once
func (p PValues) Add(list ...PValue) {
	for _, pval := range list {
		p[pvalueKey{ballot: pval.Ballot, slot: pval.Slot}] = pval.Proposal
	}
}

// List returns the values ordered by slot, then ballot.
func (p PValues) List() []PValue {
	list := make([]PValue, 0, len(p))
	for key, proposal := range p {
		list = append(list, PValue{Ballot: key.ballot, Slot: key.slot, Proposal: proposal})
	}
	slices.SortFunc(list, func(a, b PValue) int {
		return cmp.Or(cmp.Compare(a.Slot, b.Slot), a.Ballot.Compare(b.Ballot))
	})
	return list
}

// LatestBySlot keeps, for every slot, the proposal accepted under the highest
// ballot. A new leader must adopt these values before proposing its own.
func (p PValues) LatestBySlot() map[int64]Proposal {
	latest := make(map[int64]Proposal)
	ballots := make(map[int64]Ballot)
	for key, proposal := range p {
		if seen, ok := ballots[key.slot]; ok && !seen.Less(key.ballot) {
			continue
		}
		ballots[key.slot] = key.ballot
		latest[key.slot] = proposal
	}
	return latest
}
