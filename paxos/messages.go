package paxos

import "context"

// PrepareMessage asks an acceptor to promise a ballot (phase 1a).
type PrepareMessage struct {
	Ballot Ballot `json:"ballot"`
}

// PromiseMessage carries the acceptor's promised ballot and everything it has
// accepted so far (phase 1b).
type PromiseMessage struct {
	Ballot   Ballot   `json:"ballot"`
	Accepted []PValue `json:"accepted"`
}

// AcceptMessage asks an acceptor to accept a proposal for a slot (phase 2a).
type AcceptMessage struct {
	Ballot   Ballot   `json:"ballot"`
	Slot     int64    `json:"slot"`
	Proposal Proposal `json:"proposal"`
}

// AcceptedMessage carries the acceptor's promised ballot after an accept (phase 2b).
type AcceptedMessage struct {
	Ballot Ballot `json:"ballot"`
}

// DecideMessage tells a replica that a slot has been decided.
type DecideMessage struct {
	Slot     int64    `json:"slot"`
	Proposal Proposal `json:"proposal"`
}

// ProposeMessage asks a leader to place a proposal at a slot.
type ProposeMessage struct {
	Slot     int64    `json:"slot"`
	Proposal Proposal `json:"proposal"`
}

// Transport reliably delivers protocol messages to peers. Calls retry until
// they succeed or ctx is done, in which case ctx.Err() is returned.
type Transport interface {
	Prepare(ctx context.Context, peer string, msg *PrepareMessage) (*PromiseMessage, error)
	Accept(ctx context.Context, peer string, msg *AcceptMessage) (*AcceptedMessage, error)
	Decide(ctx context.Context, peer string, msg *DecideMessage) error
}
