package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/Kareem-F/500lines/etcd"
	"github.com/Kareem-F/500lines/paxos"

	"github.com/go-test/deep"
)

// a member that is not the primary of view 1, so it never talks to its peers
func newIdleServer(t *testing.T) *ServerState {
	server := newServerState(context.Background(), "m0", etcd.View{ID: 1, Peers: testPeers}, noDial)
	server.applyView(etcd.View{ID: 1, Peers: testPeers})
	t.Cleanup(server.Close)
	return server
}

func decide(t *testing.T, server *ServerState, slot int64, proposal paxos.Proposal) {
	t.Helper()
	if _, err := server.Decide(context.Background(), &paxos.DecideMessage{Slot: slot, Proposal: proposal}); err != nil {
		t.Fatal(err)
	}
}

func TestDecide(t *testing.T) {
	first := paxos.Proposal{Caller: "m0", ClientID: 1, Input: "first"}
	second := paxos.Proposal{Caller: "m2", ClientID: 1, Input: "second"}

	t.Run("records decisions and peer history", func(t *testing.T) {
		server := newIdleServer(t)
		decide(t, server, 1, second)
		if server.FirstUndecided() != 0 {
			t.Errorf("first undecided %d, want 0", server.FirstUndecided())
		}
		decide(t, server, 0, first)
		if server.FirstUndecided() != 2 {
			t.Errorf("first undecided %d, want 2", server.FirstUndecided())
		}
		if proposal, ok := server.Decision(1); !ok || proposal != second {
			t.Errorf("decision of slot 1 is %v %v", proposal, ok)
		}
		if _, ok := server.Decision(2); ok {
			t.Error("slot 2 should be undecided")
		}
		// windows below firstUndecided-alpha are dropped
		want := paxos.PeerHistory{-1: testPeers, 0: testPeers, 1: testPeers}
		if diff := deep.Equal(server.peerHistory, want); diff != nil {
			t.Error(diff)
		}
	})

	t.Run("repeated decision is ignored", func(t *testing.T) {
		server := newIdleServer(t)
		decide(t, server, 0, first)
		decide(t, server, 0, first)
		if server.FirstUndecided() != 1 {
			t.Errorf("first undecided %d, want 1", server.FirstUndecided())
		}
	})

	t.Run("conflicting decision panics", func(t *testing.T) {
		server := newIdleServer(t)
		decide(t, server, 0, first)
		defer func() {
			if recover() == nil {
				t.Error("expected a panic")
			}
		}()
		_, _ = server.Decide(context.Background(), &paxos.DecideMessage{Slot: 0, Proposal: second})
	})
}

func TestDecideBeforeView(t *testing.T) {
	server := newServerState(context.Background(), "m0", etcd.View{ID: 1, Peers: testPeers}, noDial)
	t.Cleanup(server.Close)
	decide(t, server, 0, paxos.Proposal{Caller: "m1", ClientID: 1})
	if _, ok := server.Decision(0); !ok {
		t.Fatal("the decision was not recorded")
	}
	// a window without peers would give its commanders nobody to ask
	if _, ok := server.peerHistory[0]; ok {
		t.Errorf("opened a window with no view: %v", server.peerHistory)
	}
}

func TestStateTransfer(t *testing.T) {
	donor := newIdleServer(t)
	for slot, input := range []string{"a", "b", "c", "d", "e"} {
		decide(t, donor, int64(slot), paxos.Proposal{Caller: "m1", ClientID: uint64(slot), Input: input})
	}
	state, err := donor.RequestState(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Decisions) != 5 || state.Decisions[0].Slot != 0 || state.Decisions[4].Slot != 4 {
		t.Fatalf("unexpected decisions %v", state.Decisions)
	}

	joiner := newIdleServer(t)
	joiner.installState(state)
	if joiner.FirstUndecided() != 5 {
		t.Errorf("first undecided %d, want 5", joiner.FirstUndecided())
	}
	for slot := range int64(5) {
		want, _ := donor.Decision(slot)
		if got, ok := joiner.Decision(slot); !ok || got != want {
			t.Errorf("slot %d holds %v %v, want %v", slot, got, ok, want)
		}
	}
	// the windows of slots 5 to 7 came along
	want := paxos.PeerHistory{2: testPeers, 3: testPeers, 4: testPeers}
	if diff := deep.Equal(joiner.peerHistory, want); diff != nil {
		t.Error(diff)
	}
}

func TestRecoverWithoutPeers(t *testing.T) {
	server := newServerState(context.Background(), "m0", etcd.View{ID: 1, Peers: []string{"m0"}}, noDial)
	t.Cleanup(server.Close)
	server.Recover(etcd.View{ID: 1, Peers: []string{"m0"}})
	if server.FirstUndecided() != 0 {
		t.Errorf("first undecided %d, want 0", server.FirstUndecided())
	}
}

func TestReserveSlot(t *testing.T) {
	server := newIdleServer(t)
	decide(t, server, 0, paxos.Proposal{Caller: "m1", ClientID: 1})
	decide(t, server, 2, paxos.Proposal{Caller: "m1", ClientID: 2})
	server.replicaLock.Lock()
	defer server.replicaLock.Unlock()
	var slots []int64
	for range 3 {
		slots = append(slots, server.reserveSlot())
	}
	if diff := deep.Equal(slots, []int64{1, 3, 4}); diff != nil {
		t.Error(diff)
	}
}

func TestWaitForDecision(t *testing.T) {
	proposal := paxos.Proposal{Caller: "m1", ClientID: 1, Input: "x"}

	t.Run("times out", func(t *testing.T) {
		server := newIdleServer(t)
		if _, ok := server.waitForDecision(context.Background(), 0, 20*time.Millisecond); ok {
			t.Error("slot 0 was never decided")
		}
	})

	t.Run("wakes up on the decision", func(t *testing.T) {
		server := newIdleServer(t)
		go func() {
			time.Sleep(10 * time.Millisecond)
			_, _ = server.Decide(context.Background(), &paxos.DecideMessage{Slot: 1, Proposal: paxos.Proposal{Caller: "m2", ClientID: 1}})
			_, _ = server.Decide(context.Background(), &paxos.DecideMessage{Slot: 0, Proposal: proposal})
		}()
		decided, ok := server.waitForDecision(context.Background(), 0, 5*time.Second)
		if !ok || decided != proposal {
			t.Errorf("got %v %v", decided, ok)
		}
	})

	t.Run("stops with the context", func(t *testing.T) {
		server := newIdleServer(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, ok := server.waitForDecision(ctx, 0, 5*time.Second); ok {
			t.Error("slot 0 was never decided")
		}
	})
}

func TestSubmitWithoutView(t *testing.T) {
	server := newServerState(context.Background(), "m0", etcd.View{ID: 1}, noDial)
	t.Cleanup(server.Close)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := server.Submit(ctx, "x"); err == nil {
		t.Error("submitting without any member should fail")
	}
}
