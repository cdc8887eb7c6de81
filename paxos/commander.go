package paxos

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// how long a decision is retried towards a peer that does not answer
const decideTimeout = time.Minute

// CommanderListener receives the single outcome of a commander
type CommanderListener interface {
	CommanderFinished(commanderID CommanderID, ballot Ballot, preempted bool)
}

type commander struct {
	listener    CommanderListener
	transport   Transport
	ballot      Ballot
	slot        int64
	proposal    Proposal
	commanderID CommanderID
	peers       []string
	learners    []string
	ctx         context.Context
	cancel      context.CancelFunc
	once        sync.Once
}

// NewCommander creates a commander that gets proposal accepted for slot by a majority of peers
// and then announces the decision to all of them. Learners are told about the decision as well,
// without taking part in the vote.
func NewCommander(listener CommanderListener, transport Transport, ballot Ballot, slot int64, proposal Proposal, commanderID CommanderID, peers []string, learners []string) Commander {
	ctx, cancel := context.WithCancel(context.Background())
	return &commander{
		listener:    listener,
		transport:   transport,
		ballot:      ballot,
		slot:        slot,
		proposal:    proposal,
		commanderID: commanderID,
		peers:       peers,
		learners:    learners,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (c *commander) Start() {
	go c.run()
}

func (c *commander) finish(ballot Ballot, preempted bool) {
	c.once.Do(func() {
		c.cancel()
		go c.listener.CommanderFinished(c.commanderID, ballot, preempted)
	})
}

func (c *commander) run() {
	msg := &AcceptMessage{Ballot: c.ballot, Slot: c.slot, Proposal: c.proposal}
	responses := make(chan *AcceptedMessage, len(c.peers))
	for _, peer := range c.peers {
		go func() {
			res, err := c.transport.Accept(c.ctx, peer, msg)
			if err != nil {
				return
			}
			responses <- res
		}()
	}
	acks := 0
	for {
		select {
		case <-c.ctx.Done():
			return
		case res := <-responses:
			switch order := res.Ballot.Compare(c.ballot); {
			case order == 0:
				acks++
				if acks > len(c.peers)/2 {
					slog.Debug("Commander decided slot", slog.Int64("slot", c.slot), slog.String("ballot", c.ballot.String()))
					c.decide()
					c.finish(c.ballot, false)
					return
				}
			case order > 0:
				slog.Debug("Commander preempted", slog.Int64("slot", c.slot), slog.String("by", res.Ballot.String()))
				c.finish(res.Ballot, true)
				return
			}
		}
	}
}

// announce the decision to every peer, independently of the commander's own lifetime
func (c *commander) decide() {
	msg := &DecideMessage{Slot: c.slot, Proposal: c.proposal}
	replicas := slices.Compact(slices.Sorted(slices.Values(append(slices.Clone(c.peers), c.learners...))))
	for _, peer := range replicas {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), decideTimeout)
			defer cancel()
			err := c.transport.Decide(ctx, peer, msg)
			if err != nil {
				slog.Warn("Failed announcing decision", slog.String("peer", peer), slog.Int64("slot", c.slot), slog.String("error", err.Error()))
			}
		}()
	}
}
