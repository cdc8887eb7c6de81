package paxos

import (
	"context"
	"log/slog"
	"sync"
)

// ScoutListener receives the single outcome of a scout
type ScoutListener interface {
	ScoutFinished(adopted bool, ballot *Ballot, pvals PValues)
}

type scout struct {
	listener  ScoutListener
	transport Transport
	ballot    Ballot
	peers     []string
	ctx       context.Context
	cancel    context.CancelFunc
	once      sync.Once
}

// NewScout creates a scout that tries to get ballot adopted by a majority of peers
func NewScout(listener ScoutListener, transport Transport, ballot Ballot, peers []string) Scout {
	ctx, cancel := context.WithCancel(context.Background())
	return &scout{listener: listener, transport: transport, ballot: ballot, peers: peers, ctx: ctx, cancel: cancel}
}

func (s *scout) Start() {
	go s.run()
}

func (s *scout) Finish(adopted bool, ballot *Ballot) {
	s.finish(adopted, ballot, nil)
}

// the listener is always called from a fresh goroutine, callers of Finish may hold the leader lock
func (s *scout) finish(adopted bool, ballot *Ballot, pvals PValues) {
	s.once.Do(func() {
		s.cancel()
		go s.listener.ScoutFinished(adopted, ballot, pvals)
	})
}

func (s *scout) run() {
	msg := &PrepareMessage{Ballot: s.ballot}
	// buffered so that senders never block after the scout has finished
	responses := make(chan *PromiseMessage, len(s.peers))
	for _, peer := range s.peers {
		go func() {
			res, err := s.transport.Prepare(s.ctx, peer, msg)
			if err != nil {
				return
			}
			responses <- res
		}()
	}
	pvals := NewPValues()
	acks := 0
	for {
		select {
		case <-s.ctx.Done():
			return
		case res := <-responses:
			switch c := res.Ballot.Compare(s.ballot); {
			case c == 0:
				pvals.Add(res.Accepted...)
				acks++
				if acks > len(s.peers)/2 {
					slog.Debug("Scout adopted", slog.String("ballot", s.ballot.String()), slog.Int("pvals", len(pvals)))
					s.finish(true, &s.ballot, pvals)
					return
				}
			case c > 0:
				preemptedBy := res.Ballot
				slog.Debug("Scout preempted", slog.String("ballot", s.ballot.String()), slog.String("by", preemptedBy.String()))
				s.finish(false, &preemptedBy, nil)
				return
			}
		}
	}
}
