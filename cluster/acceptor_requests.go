package cluster

/*
* Implementation for the gRPC endpoints directed at the acceptor
 */

import (
	"context"
	"log/slog"

	"github.com/Kareem-F/500lines/paxos"
)

// Prepare is the gRPC endpoint for PREPARE messages
func (server *ServerState) Prepare(_ context.Context, msg *paxos.PrepareMessage) (*paxos.PromiseMessage, error) {
	slog.Debug("Received prepare", slog.String("ballot", msg.Ballot.String()))
	res := server.acceptor.Prepare(msg)
	slog.Debug("Responding", slog.String("promised", res.Ballot.String()))
	return res, nil
}

// Accept is the gRPC endpoint for ACCEPT messages
func (server *ServerState) Accept(_ context.Context, msg *paxos.AcceptMessage) (*paxos.AcceptedMessage, error) {
	slog.Debug("Received accept", slog.String("ballot", msg.Ballot.String()), slog.Int64("slot", msg.Slot))
	res := server.acceptor.Accept(msg)
	slog.Debug("Responding", slog.String("promised", res.Ballot.String()))
	return res, nil
}
