package cluster

/*
* Functions intended for clients to call in order to append to and read the replicated log
* Used by the http endpoints, proposals are passed to the primary of the current view
 */

import (
	context "context"
	"log/slog"

	"github.com/Kareem-F/500lines/config"
	"github.com/Kareem-F/500lines/paxos"
)

// Submit appends input to the replicated log and returns the slot it was decided at.
// Proposals that are dropped are proposed again, and a slot lost to another proposal is traded
// for the next free one, until ctx is done.
func (server *ServerState) Submit(ctx context.Context, input string) (int64, error) {
	server.replicaLock.Lock()
	server.nextClientID++
	proposal := paxos.Proposal{Caller: server.address, ClientID: server.nextClientID, Input: input}
	slot := server.reserveSlot()
	server.replicaLock.Unlock()
	for {
		server.propose(ctx, slot, proposal)
		decided, ok := server.waitForDecision(ctx, slot, 10*config.PaxosRetryDelay)
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if !ok {
			slog.Debug("Slot not decided in time, proposing again", slog.Int64("slot", slot), slog.Uint64("client ID", proposal.ClientID))
			continue
		}
		if decided == proposal {
			return slot, nil
		}
		server.replicaLock.Lock()
		lost := slot
		slot = server.reserveSlot()
		server.replicaLock.Unlock()
		slog.Info("Slot taken by another proposal, moving on", slog.Int64("lost", lost), slog.Int64("slot", slot))
	}
}

// hand a proposal to the primary of the current view, which may be this member
func (server *ServerState) propose(ctx context.Context, slot int64, proposal paxos.Proposal) {
	primary, err := server.primary()
	if err != nil {
		slog.Warn("Cannot propose", slog.Int64("slot", slot), slog.String("error", err.Error()))
		return
	}
	if primary == server.address {
		server.leader.Propose(slot, proposal)
		return
	}
	client, err := server.peerClient(primary)
	if err == nil {
		_, err = client.Propose(ctx, &paxos.ProposeMessage{Slot: slot, Proposal: proposal})
	}
	if err != nil {
		slog.Warn("Error proposing to primary", slog.String("primary", primary), slog.Int64("slot", slot), slog.String("error", err.Error()))
	}
}
