/*
Package cluster is responsible for the state and communications of a member, using gRPC to pass messages between members.
*/
package cluster

/*
* The server state structure itself and common functions used by other files in the package
 */

import (
	context "context"
	"errors"
	"log/slog"
	"slices"
	sync "sync"
	"sync/atomic"

	"github.com/Kareem-F/500lines/config"
	"github.com/Kareem-F/500lines/etcd"
	"github.com/Kareem-F/500lines/paxos"

	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var errNoPrimary = errors.New("view has no members")

type ServerState struct {
	// general context that can be used by the server
	ctx context.Context
	// the gRPC address of this member, also its identity in ballots and views
	address string
	// the connection to the etcd server, used for views. nil when views are fed by hand
	etcdClient *etcd.EtcdClient
	grpcServer *grpc.Server
	// the leader role of this member
	leader *paxos.Leader
	// the acceptor role of this member
	acceptor *paxos.Acceptor
	// opens a connection to a peer
	dial func(address string) (*grpc.ClientConn, error)
	// lock used to synchronize access to the peer connections
	peersLock sync.Mutex
	// grpc connections to peers, by address
	connections map[string]*grpc.ClientConn
	// gRPC RPC endpoints to peers, by address
	peers map[string]PaxosClient

	// replica state

	// lock used to synchronize access to the replica state, when both are needed it is taken before the leader lock
	replicaLock sync.Mutex
	// every decided slot of the log
	decisions map[int64]paxos.Proposal
	// the lowest slot that has not been decided yet
	firstUndecided int64
	// slots this replica has proposed something for
	usedSlots map[int64]bool
	// closed and replaced every time a slot is decided
	decidedChannel chan struct{}
	peerHistory    paxos.PeerHistory
	viewID         int64
	viewPeers      []string
	nextClientID   uint64
	// the peers of the current view, readable while the leader lock is held
	learners atomic.Pointer[[]string]
}

func newServerState(ctx context.Context, address string, view etcd.View, dial func(string) (*grpc.ClientConn, error)) *ServerState {
	server := &ServerState{
		ctx:            ctx,
		address:        address,
		acceptor:       paxos.NewAcceptor(),
		dial:           dial,
		connections:    make(map[string]*grpc.ClientConn),
		peers:          make(map[string]PaxosClient),
		decisions:      make(map[int64]paxos.Proposal),
		usedSlots:      make(map[int64]bool),
		decidedChannel: make(chan struct{}),
		peerHistory:    paxos.InitialPeerHistory(config.PaxosAlpha, view.Peers),
		viewID:         -1,
	}
	transport := &peerTransport{server: server}
	server.leader = paxos.NewLeader(address, config.PaxosAlpha, server.peerHistory, transport.newScout, transport.newCommander)
	server.grpcServer = grpc.NewServer()
	RegisterPaxosServer(server.grpcServer, server)
	return server
}

func dialPeer(address string) (*grpc.ClientConn, error) {
	return grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// get the gRPC endpoint of a peer, connecting to it on first use
func (server *ServerState) peerClient(address string) (PaxosClient, error) {
	server.peersLock.Lock()
	defer server.peersLock.Unlock()
	if client, ok := server.peers[address]; ok {
		return client, nil
	}
	conn, err := server.dial(address)
	if err != nil {
		return nil, err
	}
	client := NewPaxosClient(conn)
	server.connections[address] = conn
	server.peers[address] = client
	return client, nil
}

// Close shuts down the server
func (server *ServerState) Close() {
	server.grpcServer.Stop()
	server.peersLock.Lock()
	defer server.peersLock.Unlock()
	for address, conn := range server.connections {
		err := conn.Close()
		if err != nil {
			slog.Error("Error disconnecting from peer", slog.String("peer", address))
		}
	}
	clear(server.connections)
	clear(server.peers)
}

// applyView hands a new view to the leader, starting from the first slot it may still affect
func (server *ServerState) applyView(view etcd.View) {
	server.replicaLock.Lock()
	defer server.replicaLock.Unlock()
	server.viewID = view.ID
	server.viewPeers = view.Peers
	learners := slices.Clone(view.Peers)
	server.learners.Store(&learners)
	slog.Info("View installed", slog.Int64("view", view.ID), slog.Any("peers", view.Peers), slog.String("primary", paxos.ViewPrimary(view.ID, view.Peers)))
	server.leader.ViewChange(server.firstUndecided, view.ID, view.Peers)
}

// follow views until the channel closes
func (server *ServerState) followViews(views <-chan etcd.View) {
	for view := range views {
		server.applyView(view)
	}
	if server.ctx.Err() == nil {
		slog.Error("Stopped receiving views")
	}
}

// the member this replica sends its proposals to
func (server *ServerState) primary() (string, error) {
	server.replicaLock.Lock()
	defer server.replicaLock.Unlock()
	primary := paxos.ViewPrimary(server.viewID, server.viewPeers)
	if primary == "" {
		return "", errNoPrimary
	}
	return primary, nil
}
