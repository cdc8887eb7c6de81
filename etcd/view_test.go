package etcd

import (
	"testing"

	"github.com/go-test/deep"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

func aliveKV(address string, revision int64) *mvccpb.KeyValue {
	return &mvccpb.KeyValue{Key: []byte(aliveKeyPrefix + address), Value: []byte(address), ModRevision: revision}
}

func TestViewTracker(t *testing.T) {
	tracker, view := newViewTracker([]*mvccpb.KeyValue{aliveKV("b:1", 4), aliveKV("a:1", 7)}, 7)
	if diff := deep.Equal(view, View{ID: 7, Peers: []string{"a:1", "b:1"}}); diff != nil {
		t.Fatalf("unexpected initial view: %v", diff)
	}

	t.Run("join and leave change the view", func(t *testing.T) {
		view, changed := tracker.apply([]*clientv3.Event{
			{Type: clientv3.EventTypePut, Kv: aliveKV("c:1", 9)},
			{Type: clientv3.EventTypeDelete, Kv: aliveKV("a:1", 10)},
		})
		if !changed {
			t.Fatalf("expected the view to change")
		}
		if diff := deep.Equal(view, View{ID: 10, Peers: []string{"b:1", "c:1"}}); diff != nil {
			t.Fatalf("unexpected view: %v", diff)
		}
	})

	t.Run("rewriting a live key is not a view change", func(t *testing.T) {
		view, changed := tracker.apply([]*clientv3.Event{{Type: clientv3.EventTypePut, Kv: aliveKV("b:1", 12)}})
		if changed {
			t.Fatalf("expected no view change")
		}
		if view.ID != 10 {
			t.Fatalf("expected the view ID to stay 10, got %d", view.ID)
		}
	})
}

func TestViewTrackersAgree(t *testing.T) {
	// b:1 has been running since revision 4 when a:1 registers at 7, and c:1 leaves at 8
	running, _ := newViewTracker([]*mvccpb.KeyValue{aliveKV("b:1", 4), aliveKV("c:1", 3)}, 4)
	running.apply([]*clientv3.Event{{Type: clientv3.EventTypePut, Kv: aliveKV("a:1", 7)}})
	joining, joined := newViewTracker([]*mvccpb.KeyValue{aliveKV("a:1", 7), aliveKV("b:1", 4), aliveKV("c:1", 3)}, 7)
	if diff := deep.Equal(joined, running.view()); diff != nil {
		t.Fatalf("joining member disagrees on the view it joined: %v", diff)
	}

	leave := []*clientv3.Event{{Type: clientv3.EventTypeDelete, Kv: &mvccpb.KeyValue{Key: []byte(aliveKeyPrefix + "c:1"), ModRevision: 8}}}
	fromRunning, _ := running.apply(leave)
	fromJoining, _ := joining.apply(leave)
	if diff := deep.Equal(fromJoining, fromRunning); diff != nil {
		t.Fatalf("members disagree after a leave: %v", diff)
	}
	if diff := deep.Equal(fromJoining, View{ID: 8, Peers: []string{"a:1", "b:1"}}); diff != nil {
		t.Fatalf("unexpected view: %v", diff)
	}
}
