package etcd

import (
	"maps"
	"slices"
	"strings"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// View is the set of members alive since etcd revision ID, the revision of the put or delete
// that last changed the set. Members compute the same ID for the same change as long as they
// see it as a watch event, which WatchViews guarantees for every change after registration.
type View struct {
	ID    int64
	Peers []string
}

// keeps the alive set up to date as watch events arrive
type viewTracker struct {
	peers map[string]struct{}
	id    int64
}

// kvs are the alive keys as of revision, the registration of this member. That registration is
// the last change to the set at revision, so it is the ID of the first view.
func newViewTracker(kvs []*mvccpb.KeyValue, revision int64) (*viewTracker, View) {
	tracker := &viewTracker{peers: make(map[string]struct{}), id: revision}
	for _, kv := range kvs {
		tracker.peers[strings.TrimPrefix(string(kv.Key), aliveKeyPrefix)] = struct{}{}
	}
	return tracker, tracker.view()
}

func (tracker *viewTracker) apply(events []*clientv3.Event) (View, bool) {
	changed := false
	for _, e := range events {
		address := strings.TrimPrefix(string(e.Kv.Key), aliveKeyPrefix)
		_, present := tracker.peers[address]
		switch e.Type {
		case clientv3.EventTypePut:
			if present {
				continue
			}
			tracker.peers[address] = struct{}{}
		case clientv3.EventTypeDelete:
			if !present {
				continue
			}
			delete(tracker.peers, address)
		}
		tracker.id = e.Kv.ModRevision
		changed = true
	}
	return tracker.view(), changed
}

func (tracker *viewTracker) view() View {
	return View{ID: tracker.id, Peers: slices.Sorted(maps.Keys(tracker.peers))}
}
