package paxos

import (
	"log/slog"
	"sync"
)

// Acceptor is the acceptor role of a member. It keeps its state in memory only.
type Acceptor struct {
	lock     sync.Mutex
	promised Ballot
	accepted PValues
}

// NewAcceptor returns an acceptor that has promised nothing and accepted nothing
func NewAcceptor() *Acceptor {
	return &Acceptor{promised: NoBallot, accepted: NewPValues()}
}

// Prepare promises ballot if it is fresher than any ballot promised before, and replies with the
// current promise and every accepted value.
func (acceptor *Acceptor) Prepare(msg *PrepareMessage) *PromiseMessage {
	acceptor.lock.Lock()
	defer acceptor.lock.Unlock()
	if acceptor.promised.Less(msg.Ballot) {
		slog.Debug("Promising ballot", slog.String("ballot", msg.Ballot.String()))
		acceptor.promised = msg.Ballot
	}
	return &PromiseMessage{Ballot: acceptor.promised, Accepted: acceptor.accepted.List()}
}

// Accept records the proposal unless a fresher ballot has been promised
func (acceptor *Acceptor) Accept(msg *AcceptMessage) *AcceptedMessage {
	acceptor.lock.Lock()
	defer acceptor.lock.Unlock()
	if !msg.Ballot.Less(acceptor.promised) {
		acceptor.promised = msg.Ballot
		acceptor.accepted.Add(PValue{Ballot: msg.Ballot, Slot: msg.Slot, Proposal: msg.Proposal})
	}
	return &AcceptedMessage{Ballot: acceptor.promised}
}

// Promised returns the freshest ballot promised so far
func (acceptor *Acceptor) Promised() Ballot {
	acceptor.lock.Lock()
	defer acceptor.lock.Unlock()
	return acceptor.promised
}
