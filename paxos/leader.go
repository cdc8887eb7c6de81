/*
Package paxos implements the roles of a multi-Paxos replicated log: the leader state machine,
the scouts and commanders it spawns, and the acceptor that answers them.
*/
package paxos

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/Kareem-F/500lines/util"
)

// Scout is an outstanding phase 1 attempt.
type Scout interface {
	Start()
	// Finish ends the attempt early, the scout still reports back exactly once
	Finish(adopted bool, ballot *Ballot)
}

// Commander drives one slot through phase 2. It has no cancellation, it runs until the slot is
// decided or the ballot is preempted.
type Commander interface {
	Start()
}

type ScoutFactory func(leader *Leader, ballot Ballot, peers []string) Scout

type CommanderFactory func(leader *Leader, ballot Ballot, slot int64, proposal Proposal, id CommanderID, peers []string) Commander

// Status is a snapshot of the leader state
type Status struct {
	Ballot     Ballot `json:"ballot"`
	Active     bool   `json:"active"`
	Scouting   bool   `json:"scouting"`
	Commanders int    `json:"commanders"`
	Proposals  int    `json:"proposals"`
	ViewID     int64  `json:"view_id"`
	Primary    bool   `json:"primary"`
}

// Leader acquires leadership for a member and orders proposals into slots.
// All exported methods are serialized on the leader lock.
type Leader struct {
	lock    sync.Mutex
	address string
	alpha   int64
	// the ballot in use, or being scouted for
	ballotNum Ballot
	// true once a scout for ballotNum was adopted and nothing preempted it since
	active    bool
	proposals *Proposals
	// at most one scout is outstanding
	scout Scout
	// a view change asked the running scout to finish, so its outcome no longer counts
	scoutSuperseded bool
	commanders      map[CommanderID]Commander
	viewID          int64
	peers           []string
	isPrimary       bool
	peerHistory     PeerHistory
	newScout        ScoutFactory
	newCommander    CommanderFactory
	logger          *slog.Logger
}

// NewLeader creates the leader of the member listening on address. It starts inactive, with the
// ballot (-1, 0, address).
func NewLeader(address string, alpha int64, peerHistory PeerHistory, newScout ScoutFactory, newCommander CommanderFactory) *Leader {
	return &Leader{
		address:      address,
		alpha:        alpha,
		ballotNum:    Ballot{View: -1, Round: 0, Leader: address},
		proposals:    NewProposals(),
		commanders:   make(map[CommanderID]Commander),
		viewID:       -1,
		peerHistory:  peerHistory,
		newScout:     newScout,
		newCommander: newCommander,
		logger:       slog.With(slog.String("leader", address)),
	}
}

// UpdatePeerHistory replaces the peer history
func (leader *Leader) UpdatePeerHistory(peerHistory PeerHistory) {
	leader.lock.Lock()
	defer leader.lock.Unlock()
	leader.peerHistory = peerHistory
}

// ViewChange records a new view. Whatever authority the leader had came from the previous view,
// so it has to be established again.
func (leader *Leader) ViewChange(slot int64, viewID int64, peers []string) {
	leader.lock.Lock()
	defer leader.lock.Unlock()
	leader.viewID = viewID
	leader.peers = slices.Clone(peers)
	leader.isPrimary = ViewPrimary(viewID, peers) == leader.address
	leader.logger.Info("View changed", slog.Int64("slot", slot), slog.Int64("view", viewID), slog.Any("peers", peers), slog.Bool("primary", leader.isPrimary))
	switch {
	case leader.scout != nil:
		// the scout's callback will take the preemption path and re-scout if needed
		leader.scoutSuperseded = true
		leader.scout.Finish(false, nil)
	case leader.active:
		leader.preempted(nil)
	case leader.isPrimary:
		leader.spawnScout()
	}
}

// assumes lock is held
func (leader *Leader) spawnScout() {
	if leader.scout != nil {
		util.SlogPanic("Spawning a scout while another one is running", slog.String("ballot", leader.ballotNum.String()))
	}
	leader.ballotNum = Ballot{View: leader.viewID, Round: leader.ballotNum.Round, Leader: leader.ballotNum.Leader}
	leader.scoutSuperseded = false
	leader.logger.Debug("Spawning scout", slog.String("ballot", leader.ballotNum.String()))
	leader.scout = leader.newScout(leader, leader.ballotNum, slices.Clone(leader.peers))
	leader.scout.Start()
}

// ScoutFinished is called exactly once by every scout. When adopted, pvals holds the values the
// acceptors of the quorum had accepted.
func (leader *Leader) ScoutFinished(adopted bool, ballot *Ballot, pvals PValues) {
	leader.lock.Lock()
	defer leader.lock.Unlock()
	superseded := leader.scoutSuperseded
	leader.scout = nil
	leader.scoutSuperseded = false
	if adopted && superseded {
		leader.logger.Debug("Discarding adoption from a superseded scout", slog.String("ballot", leader.ballotNum.String()))
		adopted = false
		ballot = nil
	}
	if !adopted {
		leader.preempted(ballot)
		return
	}
	for slot, proposal := range pvals.LatestBySlot() {
		leader.proposals.Set(slot, proposal)
	}
	// re-spawn commanders for any potentially outstanding proposals, undecided slots without
	// one are re-proposed by the replicas
	for _, viewSlot := range leader.peerHistory.Slots() {
		slot := viewSlot + leader.alpha
		if proposal, ok := leader.proposals.Get(slot); ok {
			leader.spawnCommander(leader.ballotNum, slot, proposal)
		}
	}
	leader.logger.Info("Leader becoming active", slog.String("ballot", leader.ballotNum.String()))
	leader.active = true
}

// ballot is nil when preempted by a view change
// assumes lock is held
func (leader *Leader) preempted(ballot *Ballot) {
	round := leader.ballotNum.Round
	if ballot != nil {
		leader.logger.Info("Leader preempted", slog.String("by", ballot.Leader), slog.String("ballot", ballot.String()))
		round = max(round, ballot.Round)
	} else {
		leader.logger.Info("Leader preempted by view change")
	}
	leader.active = false
	leader.ballotNum = Ballot{View: leader.viewID, Round: round + 1, Leader: leader.ballotNum.Leader}
	if leader.scout == nil && leader.isPrimary {
		leader.logger.Info("Re-scouting as the primary for this view")
		leader.spawnScout()
	}
}

// The peers of a commander always come from the peer history window of its slot.
// assumes lock is held
func (leader *Leader) spawnCommander(ballot Ballot, slot int64, proposal Proposal) {
	peers, ok := leader.peerHistory[slot-leader.alpha]
	if !ok {
		util.SlogPanic("Peer history has no window for slot", slog.Int64("slot", slot), slog.Any("history", leader.peerHistory.Slots()))
	}
	stored, _ := leader.proposals.Get(slot)
	commanderID := CommanderID{Address: leader.address, Slot: slot, Proposal: stored}
	if _, running := leader.commanders[commanderID]; running {
		return
	}
	commander := leader.newCommander(leader, ballot, slot, proposal, commanderID, slices.Clone(peers))
	leader.commanders[commanderID] = commander
	commander.Start()
}

// CommanderFinished is called exactly once by every commander
func (leader *Leader) CommanderFinished(commanderID CommanderID, ballot Ballot, preempted bool) {
	leader.lock.Lock()
	defer leader.lock.Unlock()
	delete(leader.commanders, commanderID)
	if preempted {
		leader.preempted(&ballot)
	}
}

// Propose asks the leader to place proposal at slot. Dropped requests are not queued, the caller
// is expected to propose again.
func (leader *Leader) Propose(slot int64, proposal Proposal) {
	leader.lock.Lock()
	defer leader.lock.Unlock()
	if _, ok := leader.proposals.Get(slot); ok {
		leader.logger.Warn("Got PROPOSE for a slot already being proposed", slog.Int64("slot", slot))
		return
	}
	if leader.active {
		// find the peers ALPHA slots ago, or ignore if unknown
		if _, known := leader.peerHistory[slot-leader.alpha]; !known {
			leader.logger.Warn("Slot window not in peer history", slog.Int64("slot", slot), slog.Int64("window", slot-leader.alpha), slog.Any("history", leader.peerHistory.Slots()))
			return
		}
		leader.proposals.Set(slot, proposal)
		leader.logger.Debug("Spawning commander", slog.Int64("slot", slot))
		leader.spawnCommander(leader.ballotNum, slot, proposal)
		return
	}
	if leader.scout == nil {
		leader.logger.Warn("Got PROPOSE when not active, scouting", slog.Int64("slot", slot))
		leader.spawnScout()
		return
	}
	leader.logger.Warn("Got PROPOSE while scouting, ignored", slog.Int64("slot", slot))
}

// Status returns a snapshot of the leader state
func (leader *Leader) Status() Status {
	leader.lock.Lock()
	defer leader.lock.Unlock()
	return Status{
		Ballot:     leader.ballotNum,
		Active:     leader.active,
		Scouting:   leader.scout != nil,
		Commanders: len(leader.commanders),
		Proposals:  leader.proposals.Len(),
		ViewID:     leader.viewID,
		Primary:    leader.isPrimary,
	}
}
