package paxos

import (
	"maps"
	"slices"
)

// Proposal is a candidate operation for a log slot. It only becomes binding
// once a commander has it decided.
type Proposal struct {
	Caller   string `json:"caller"`
	ClientID uint64 `json:"client_id"`
	Input    string `json:"input"`
}

// Proposals maps slot numbers to the proposal this leader holds for them.
// Most slots are absent. Entries are never removed.
type Proposals struct {
	bySlot map[int64]Proposal
}

// NewProposals returns an empty store
func NewProposals() *Proposals {
	return &Proposals{bySlot: make(map[int64]Proposal)}
}

// Get returns the proposal held for slot, if any
func (p *Proposals) Get(slot int64) (Proposal, bool) {
	proposal, ok := p.bySlot[slot]
	return proposal, ok
}

// Set holds proposal for slot, replacing what was there
func (p *Proposals) Set(slot int64, proposal Proposal) {
	p.bySlot[slot] = proposal
}

// Len returns the number of slots holding a proposal
func (p *Proposals) Len() int {
	return len(p.bySlot)
}

// PeerHistory maps a view slot to the peers that were active at that slot.
// The peers allowed to commit slot s are found at s - ALPHA.
// A history is replaced as a whole, never modified in place once handed out.
type PeerHistory map[int64][]string

// Clone returns a copy that can be modified without affecting h.
func (h PeerHistory) Clone() PeerHistory {
	clone := make(PeerHistory, len(h)+1)
	for slot, peers := range h {
		clone[slot] = slices.Clone(peers)
	}
	return clone
}

// Slots returns the view slots in ascending order.
func (h PeerHistory) Slots() []int64 {
	return slices.Sorted(maps.Keys(h))
}

// InitialPeerHistory opens the first alpha slots of the log to peers.
func InitialPeerHistory(alpha int64, peers []string) PeerHistory {
	history := make(PeerHistory, alpha)
	for slot := -alpha; slot < 0; slot++ {
		history[slot] = slices.Clone(peers)
	}
	return history
}

// CommanderID identifies one unit of phase 2 work. At most one commander runs
// per identity.
type CommanderID struct {
	Address  string
	Slot     int64
	Proposal Proposal
}
