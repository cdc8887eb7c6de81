package cluster

/*
* Setup functions for the server state
 */

import (
	context "context"
	"log/slog"
	"net"
	"slices"

	"github.com/Kareem-F/500lines/config"
	"github.com/Kareem-F/500lines/etcd"
	"github.com/Kareem-F/500lines/util"

	emptypb "google.golang.org/protobuf/types/known/emptypb"
)

// Recover copies the decided log of a live member of view instead of starting from an empty one.
// A member that joins late needs the windows of every slot decided before it.
// The members of view are tried in turn until one of them replies.
func (server *ServerState) Recover(view etcd.View) {
	donors := slices.DeleteFunc(slices.Clone(view.Peers), func(peer string) bool { return peer == server.address })
	if len(donors) == 0 {
		slog.Warn("No live member to recover from, starting with an empty log")
		return
	}
	for {
		for _, peer := range donors {
			client, err := server.peerClient(peer)
			var state *StateMessage
			if err == nil {
				state, err = client.RequestState(server.ctx, &emptypb.Empty{})
			}
			if err != nil {
				slog.Warn("Failed to get state from peer", slog.String("peer", peer), slog.String("error", err.Error()))
				continue
			}
			server.installState(state)
			slog.Info("Recovered state", slog.String("peer", peer), slog.Int("decisions", len(state.Decisions)), slog.Int64("first undecided", server.FirstUndecided()))
			return
		}
		if !retryDelay(server.ctx) {
			slog.Error("Recovery interrupted, starting with the log recovered so far")
			return
		}
	}
}

// Start listening on the gRPC endpoints
func (server *ServerState) servegRPC(listen net.Listener) {
	err := server.grpcServer.Serve(listen)
	if err != nil {
		util.SlogPanic("error serving grpc server", slog.String("error", err.Error()))
	}
}

// SetupGRPC sets up the server, with views taken from etcd
func SetupGRPC(ctx context.Context, cli *etcd.EtcdClient) *ServerState {
	view, views := cli.WatchViews(ctx)
	server := newServerState(ctx, config.MyAddress, view, dialPeer)
	server.etcdClient = cli
	if config.Recover {
		server.Recover(view)
	}
	listen, err := net.Listen("tcp", config.MyAddress)
	if err != nil {
		util.SlogPanic("error listening", slog.String("address", config.MyAddress), slog.String("error", err.Error()))
	}
	// decisions and proposals only arrive once the view they belong to is known
	server.applyView(view)
	go server.servegRPC(listen)
	go server.followViews(views)
	return server
}
