package paxos

import (
	"context"
	"sync"
	"testing"
	"time"
)

type scoutMock struct {
	ballot      Ballot
	peers       []string
	started     bool
	finishCalls []*Ballot
}

func (mock *scoutMock) Start() {
	mock.started = true
}

func (mock *scoutMock) Finish(adopted bool, ballot *Ballot) {
	mock.finishCalls = append(mock.finishCalls, ballot)
}

// exported fields so that deep.Equal compares them
type commanderMock struct {
	Ballot      Ballot
	Slot        int64
	Proposal    Proposal
	CommanderID CommanderID
	Peers       []string
	Started     bool
}

func (mock *commanderMock) Start() {
	mock.Started = true
}

// records every scout and commander a leader spawns, the leader calls it with its lock held
type spawnMock struct {
	scouts     []*scoutMock
	commanders []*commanderMock
}

func (mock *spawnMock) newScout(_ *Leader, ballot Ballot, peers []string) Scout {
	scout := &scoutMock{ballot: ballot, peers: peers}
	mock.scouts = append(mock.scouts, scout)
	return scout
}

func (mock *spawnMock) newCommander(_ *Leader, ballot Ballot, slot int64, proposal Proposal, id CommanderID, peers []string) Commander {
	commander := &commanderMock{Ballot: ballot, Slot: slot, Proposal: proposal, CommanderID: id, Peers: peers}
	mock.commanders = append(mock.commanders, commander)
	return commander
}

type transportMock struct {
	lock     sync.Mutex
	promises map[string]*PromiseMessage
	accepted map[string]*AcceptedMessage
	prepares []string
	accepts  []string
	decided  chan string
}

func (mock *transportMock) Prepare(ctx context.Context, peer string, msg *PrepareMessage) (*PromiseMessage, error) {
	mock.lock.Lock()
	mock.prepares = append(mock.prepares, peer)
	res, ok := mock.promises[peer]
	mock.lock.Unlock()
	if ok {
		return res, nil
	}
	// an unreachable peer, retried until the caller gives up
	<-ctx.Done()
	return nil, ctx.Err()
}

func (mock *transportMock) Accept(ctx context.Context, peer string, msg *AcceptMessage) (*AcceptedMessage, error) {
	mock.lock.Lock()
	mock.accepts = append(mock.accepts, peer)
	res, ok := mock.accepted[peer]
	mock.lock.Unlock()
	if ok {
		return res, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (mock *transportMock) Decide(_ context.Context, peer string, _ *DecideMessage) error {
	if mock.decided != nil {
		mock.decided <- peer
	}
	return nil
}

type scoutResult struct {
	adopted bool
	ballot  *Ballot
	pvals   PValues
}

type commanderResult struct {
	commanderID CommanderID
	ballot      Ballot
	preempted   bool
}

type listenerMock struct {
	scoutResults     chan scoutResult
	commanderResults chan commanderResult
}

func createListenerMock() *listenerMock {
	return &listenerMock{scoutResults: make(chan scoutResult, 4), commanderResults: make(chan commanderResult, 4)}
}

func (mock *listenerMock) ScoutFinished(adopted bool, ballot *Ballot, pvals PValues) {
	mock.scoutResults <- scoutResult{adopted: adopted, ballot: ballot, pvals: pvals}
}

func (mock *listenerMock) CommanderFinished(commanderID CommanderID, ballot Ballot, preempted bool) {
	mock.commanderResults <- commanderResult{commanderID: commanderID, ballot: ballot, preempted: preempted}
}

func awaitValue[T any](t *testing.T, channel <-chan T) T {
	t.Helper()
	var value T
	select {
	case value = <-channel:
	case <-time.After(time.Second):
		t.Fatalf("expected a value on the channel but got none")
	}
	return value
}

func assertNoValue[T any](t *testing.T, channel <-chan T) {
	t.Helper()
	select {
	case value := <-channel:
		t.Fatalf("expected no value on the channel, got %+v", value)
	case <-time.After(50 * time.Millisecond):
	}
}
