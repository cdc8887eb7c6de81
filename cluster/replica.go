package cluster

/*
* The replica: the decided log, and the gRPC endpoint commanders announce decisions through
 */

import (
	"cmp"
	context "context"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/Kareem-F/500lines/config"
	"github.com/Kareem-F/500lines/paxos"
	"github.com/Kareem-F/500lines/util"

	emptypb "google.golang.org/protobuf/types/known/emptypb"
)

// Decide is the gRPC endpoint for DECIDE messages
func (server *ServerState) Decide(_ context.Context, msg *paxos.DecideMessage) (*emptypb.Empty, error) {
	server.replicaLock.Lock()
	defer server.replicaLock.Unlock()
	if decided, ok := server.decisions[msg.Slot]; ok {
		if decided != msg.Proposal {
			util.SlogPanic("Conflicting decisions for slot", slog.Int64("slot", msg.Slot), slog.Any("decided", decided), slog.Any("received", msg.Proposal))
		}
		return &emptypb.Empty{}, nil
	}
	server.decisions[msg.Slot] = msg.Proposal
	server.advanceFirstUndecided()
	// the slot ALPHA slots after this one is committed by the peers of the current view
	peerHistory := server.peerHistory.Clone()
	if len(server.viewPeers) == 0 {
		slog.Warn("Decision arrived before any view, no window opened", slog.Int64("slot", msg.Slot))
	} else {
		peerHistory[msg.Slot] = slices.Clone(server.viewPeers)
	}
	server.publishPeerHistory(peerHistory)
	server.notifyDecided()
	slog.Info("Slot decided", slog.Int64("slot", msg.Slot), slog.String("caller", msg.Proposal.Caller), slog.Uint64("client ID", msg.Proposal.ClientID))
	return &emptypb.Empty{}, nil
}

// StateMessage is the decided log of a member, handed to members that join after it
type StateMessage struct {
	Decisions      []paxos.DecideMessage `json:"decisions"`
	FirstUndecided int64                 `json:"first_undecided"`
	PeerHistory    paxos.PeerHistory     `json:"peer_history"`
}

// RequestState replies with everything a recovering member needs to take part in the next slots
func (server *ServerState) RequestState(_ context.Context, _ *emptypb.Empty) (*StateMessage, error) {
	server.replicaLock.Lock()
	defer server.replicaLock.Unlock()
	slog.Debug("Got state request")
	decisions := make([]paxos.DecideMessage, 0, len(server.decisions))
	for slot, proposal := range server.decisions {
		decisions = append(decisions, paxos.DecideMessage{Slot: slot, Proposal: proposal})
	}
	slices.SortFunc(decisions, func(a, b paxos.DecideMessage) int {
		return cmp.Compare(a.Slot, b.Slot)
	})
	// histories are replaced as a whole, never modified, so it can be shared
	return &StateMessage{Decisions: decisions, FirstUndecided: server.firstUndecided, PeerHistory: server.peerHistory}, nil
}

// merge the decided log of another member into this one
func (server *ServerState) installState(state *StateMessage) {
	server.replicaLock.Lock()
	defer server.replicaLock.Unlock()
	for _, decision := range state.Decisions {
		if _, ok := server.decisions[decision.Slot]; !ok {
			server.decisions[decision.Slot] = decision.Proposal
		}
	}
	server.advanceFirstUndecided()
	peerHistory := server.peerHistory.Clone()
	for slot, peers := range state.PeerHistory {
		peerHistory[slot] = slices.Clone(peers)
	}
	server.publishPeerHistory(peerHistory)
	server.notifyDecided()
}

// assumes replicaLock is held
func (server *ServerState) advanceFirstUndecided() {
	for {
		if _, ok := server.decisions[server.firstUndecided]; !ok {
			return
		}
		server.firstUndecided++
	}
}

// hand a new peer history to the leader, without the windows no undecided slot can need
// assumes replicaLock is held
func (server *ServerState) publishPeerHistory(peerHistory paxos.PeerHistory) {
	maps.DeleteFunc(peerHistory, func(slot int64, _ []string) bool {
		return slot < server.firstUndecided-config.PaxosAlpha
	})
	server.peerHistory = peerHistory
	server.leader.UpdatePeerHistory(peerHistory)
}

// wake up everyone waiting for a decision
// assumes replicaLock is held
func (server *ServerState) notifyDecided() {
	close(server.decidedChannel)
	server.decidedChannel = make(chan struct{})
}

// Decision returns the proposal decided for slot, if there is one
func (server *ServerState) Decision(slot int64) (paxos.Proposal, bool) {
	server.replicaLock.Lock()
	defer server.replicaLock.Unlock()
	proposal, ok := server.decisions[slot]
	return proposal, ok
}

// FirstUndecided returns the lowest slot without a decision
func (server *ServerState) FirstUndecided() int64 {
	server.replicaLock.Lock()
	defer server.replicaLock.Unlock()
	return server.firstUndecided
}

// waits until slot is decided, the timeout elapses or ctx is done
func (server *ServerState) waitForDecision(ctx context.Context, slot int64, timeout time.Duration) (paxos.Proposal, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		server.replicaLock.Lock()
		proposal, ok := server.decisions[slot]
		decidedChannel := server.decidedChannel
		server.replicaLock.Unlock()
		if ok {
			return proposal, true
		}
		select {
		case <-decidedChannel:
		case <-timer.C:
			return paxos.Proposal{}, false
		case <-ctx.Done():
			return paxos.Proposal{}, false
		}
	}
}

// pick the lowest slot that is neither decided nor already proposed for by this replica
// assumes replicaLock is held
func (server *ServerState) reserveSlot() int64 {
	slot := server.firstUndecided
	for {
		_, decided := server.decisions[slot]
		if !decided && !server.usedSlots[slot] {
			break
		}
		slot++
	}
	server.usedSlots[slot] = true
	return slot
}
