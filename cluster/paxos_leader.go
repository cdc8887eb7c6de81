package cluster

/*
* Delivery of the leader's messages, used by its scouts and commanders
 */

import (
	context "context"
	"log/slog"
	"time"

	"github.com/Kareem-F/500lines/config"
	"github.com/Kareem-F/500lines/paxos"
)

// peerTransport sends protocol messages to peers over gRPC
type peerTransport struct {
	server *ServerState
}

func (transport *peerTransport) newScout(leader *paxos.Leader, ballot paxos.Ballot, peers []string) paxos.Scout {
	return paxos.NewScout(leader, transport, ballot, peers)
}

func (transport *peerTransport) newCommander(leader *paxos.Leader, ballot paxos.Ballot, slot int64, proposal paxos.Proposal, commanderID paxos.CommanderID, peers []string) paxos.Commander {
	// replicas of the current view learn the decision even when the window of the slot predates them
	var learners []string
	if viewPeers := transport.server.learners.Load(); viewPeers != nil {
		learners = *viewPeers
	}
	return paxos.NewCommander(leader, transport, ballot, slot, proposal, commanderID, peers, learners)
}

// waits for the retry delay, false if ctx ended first
func retryDelay(ctx context.Context) bool {
	timer := time.NewTimer(config.PaxosRetryDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// RELIABLY performs a call on a peer
// To ensure the message arrives even if the peer is temporarily down, it retries until the peer replies
func reliably[T any](ctx context.Context, server *ServerState, what string, peer string, call func(PaxosClient) (T, error)) (T, error) {
	var res T
	client, err := server.peerClient(peer)
	if err == nil {
		res, err = call(client)
	}
	for err != nil {
		if ctx.Err() != nil {
			// the scout or commander has finished already
			return res, ctx.Err()
		}
		slog.Error("Error sending "+what+" to peer, retrying:", slog.String("peer", peer), slog.String("error", err.Error()))
		if !retryDelay(ctx) {
			return res, ctx.Err()
		}
		client, err = server.peerClient(peer)
		if err == nil {
			res, err = call(client)
		}
	}
	return res, nil
}

// Prepare RELIABLY sends a PREPARE message to an acceptor
func (transport *peerTransport) Prepare(ctx context.Context, peer string, msg *paxos.PrepareMessage) (*paxos.PromiseMessage, error) {
	slog.Debug("Sending prepare", slog.String("peer", peer), slog.String("ballot", msg.Ballot.String()))
	res, err := reliably(ctx, transport.server, "prepare", peer, func(client PaxosClient) (*paxos.PromiseMessage, error) {
		return client.Prepare(ctx, msg)
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("Received prepare response", slog.String("peer", peer), slog.String("ballot", res.Ballot.String()), slog.Int("accepted", len(res.Accepted)))
	return res, nil
}

// Accept RELIABLY sends an ACCEPT message to an acceptor
func (transport *peerTransport) Accept(ctx context.Context, peer string, msg *paxos.AcceptMessage) (*paxos.AcceptedMessage, error) {
	slog.Debug("Sending accept", slog.String("peer", peer), slog.String("ballot", msg.Ballot.String()), slog.Int64("slot", msg.Slot))
	res, err := reliably(ctx, transport.server, "accept", peer, func(client PaxosClient) (*paxos.AcceptedMessage, error) {
		return client.Accept(ctx, msg)
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("Received accept response", slog.String("peer", peer), slog.String("ballot", res.Ballot.String()))
	return res, nil
}

// Decide RELIABLY announces a decision to a replica
func (transport *peerTransport) Decide(ctx context.Context, peer string, msg *paxos.DecideMessage) error {
	slog.Debug("Sending decide", slog.String("peer", peer), slog.Int64("slot", msg.Slot))
	_, err := reliably(ctx, transport.server, "decide", peer, func(client PaxosClient) (any, error) {
		return client.Decide(ctx, msg)
	})
	return err
}
