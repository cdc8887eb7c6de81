package cluster

/*
* The leader side of the requests replicas pass to the primary
 */

import (
	context "context"

	"github.com/Kareem-F/500lines/paxos"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	emptypb "google.golang.org/protobuf/types/known/emptypb"
)

// Propose is the gRPC endpoint for PROPOSE messages. The leader may drop the proposal, the
// replica proposes again if the slot is not decided in time.
func (server *ServerState) Propose(_ context.Context, msg *paxos.ProposeMessage) (*emptypb.Empty, error) {
	if msg.Slot < 0 {
		return nil, status.Errorf(codes.InvalidArgument, "negative slot %d", msg.Slot)
	}
	server.leader.Propose(msg.Slot, msg.Proposal)
	return &emptypb.Empty{}, nil
}

// LeaderStatus returns a snapshot of the leader of this member
func (server *ServerState) LeaderStatus() paxos.Status {
	return server.leader.Status()
}
