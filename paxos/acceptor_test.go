package paxos

import (
	"testing"

	"github.com/go-test/deep"
)

func TestAcceptor(t *testing.T) {
	low := Ballot{View: 1, Round: 0, Leader: "A"}
	high := Ballot{View: 1, Round: 1, Leader: "B"}
	proposal := Proposal{Caller: "A", ClientID: 1, Input: "x"}

	t.Run("promises fresher ballots only", func(t *testing.T) {
		acceptor := NewAcceptor()
		if promise := acceptor.Prepare(&PrepareMessage{Ballot: high}); promise.Ballot != high {
			t.Fatalf("expected %s to be promised, got %s", high, promise.Ballot)
		}
		if promise := acceptor.Prepare(&PrepareMessage{Ballot: low}); promise.Ballot != high {
			t.Fatalf("expected %s to stay promised, got %s", high, promise.Ballot)
		}
	})

	t.Run("accepts unless a fresher ballot was promised", func(t *testing.T) {
		acceptor := NewAcceptor()
		acceptor.Prepare(&PrepareMessage{Ballot: high})
		if accepted := acceptor.Accept(&AcceptMessage{Ballot: low, Slot: 1, Proposal: proposal}); accepted.Ballot != high {
			t.Fatalf("expected the accept to be rejected with %s, got %s", high, accepted.Ballot)
		}
		if accepted := acceptor.Accept(&AcceptMessage{Ballot: high, Slot: 1, Proposal: proposal}); accepted.Ballot != high {
			t.Fatalf("expected the accept to succeed, got %s", accepted.Ballot)
		}
		promise := acceptor.Prepare(&PrepareMessage{Ballot: Ballot{View: 2, Round: 0, Leader: "C"}})
		expected := []PValue{{Ballot: high, Slot: 1, Proposal: proposal}}
		if diff := deep.Equal(promise.Accepted, expected); diff != nil {
			t.Fatalf("unexpected accepted values: %v", diff)
		}
	})

	t.Run("accept raises the promise", func(t *testing.T) {
		acceptor := NewAcceptor()
		acceptor.Accept(&AcceptMessage{Ballot: high, Slot: 3, Proposal: proposal})
		if acceptor.Promised() != high {
			t.Fatalf("expected %s to be promised, got %s", high, acceptor.Promised())
		}
	})
}
