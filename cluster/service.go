package cluster

/*
* The gRPC service members use to talk to each other, with its client stubs
 */

import (
	context "context"

	"github.com/Kareem-F/500lines/paxos"

	grpc "google.golang.org/grpc"
	emptypb "google.golang.org/protobuf/types/known/emptypb"
)

const (
	paxosServiceName   = "multipaxos.Paxos"
	paxosPrepareMethod = "/" + paxosServiceName + "/Prepare"
	paxosAcceptMethod  = "/" + paxosServiceName + "/Accept"
	paxosDecideMethod  = "/" + paxosServiceName + "/Decide"
	paxosProposeMethod = "/" + paxosServiceName + "/Propose"
	paxosStateMethod   = "/" + paxosServiceName + "/RequestState"
)

// PaxosServer is the server API of the multipaxos.Paxos service
type PaxosServer interface {
	Prepare(context.Context, *paxos.PrepareMessage) (*paxos.PromiseMessage, error)
	Accept(context.Context, *paxos.AcceptMessage) (*paxos.AcceptedMessage, error)
	Decide(context.Context, *paxos.DecideMessage) (*emptypb.Empty, error)
	Propose(context.Context, *paxos.ProposeMessage) (*emptypb.Empty, error)
	RequestState(context.Context, *emptypb.Empty) (*StateMessage, error)
}

// RegisterPaxosServer registers server as the implementation of the multipaxos.Paxos service
func RegisterPaxosServer(registrar grpc.ServiceRegistrar, server PaxosServer) {
	registrar.RegisterService(&paxosServiceDesc, server)
}

// builds the handler of a unary method, following what protoc-gen-go-grpc generates
func unaryHandler[Req any, Res any](fullMethod string, call func(PaxosServer, context.Context, *Req) (*Res, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PaxosServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PaxosServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var paxosServiceDesc = grpc.ServiceDesc{
	ServiceName: paxosServiceName,
	HandlerType: (*PaxosServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Prepare", Handler: unaryHandler(paxosPrepareMethod, PaxosServer.Prepare)},
		{MethodName: "Accept", Handler: unaryHandler(paxosAcceptMethod, PaxosServer.Accept)},
		{MethodName: "Decide", Handler: unaryHandler(paxosDecideMethod, PaxosServer.Decide)},
		{MethodName: "Propose", Handler: unaryHandler(paxosProposeMethod, PaxosServer.Propose)},
		{MethodName: "RequestState", Handler: unaryHandler(paxosStateMethod, PaxosServer.RequestState)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cluster/service.go",
}

// PaxosClient is the client API of the multipaxos.Paxos service
type PaxosClient interface {
	Prepare(ctx context.Context, in *paxos.PrepareMessage, opts ...grpc.CallOption) (*paxos.PromiseMessage, error)
	Accept(ctx context.Context, in *paxos.AcceptMessage, opts ...grpc.CallOption) (*paxos.AcceptedMessage, error)
	Decide(ctx context.Context, in *paxos.DecideMessage, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Propose(ctx context.Context, in *paxos.ProposeMessage, opts ...grpc.CallOption) (*emptypb.Empty, error)
	RequestState(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*StateMessage, error)
}

type paxosClient struct {
	cc grpc.ClientConnInterface
}

// NewPaxosClient returns client stubs calling over cc with the JSON codec
func NewPaxosClient(cc grpc.ClientConnInterface) PaxosClient {
	return &paxosClient{cc: cc}
}

func invoke[Res any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Res, error) {
	out := new(Res)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	err := cc.Invoke(ctx, method, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *paxosClient) Prepare(ctx context.Context, in *paxos.PrepareMessage, opts ...grpc.CallOption) (*paxos.PromiseMessage, error) {
	return invoke[paxos.PromiseMessage](ctx, c.cc, paxosPrepareMethod, in, opts)
}

func (c *paxosClient) Accept(ctx context.Context, in *paxos.AcceptMessage, opts ...grpc.CallOption) (*paxos.AcceptedMessage, error) {
	return invoke[paxos.AcceptedMessage](ctx, c.cc, paxosAcceptMethod, in, opts)
}

func (c *paxosClient) Decide(ctx context.Context, in *paxos.DecideMessage, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, paxosDecideMethod, in, opts)
}

func (c *paxosClient) Propose(ctx context.Context, in *paxos.ProposeMessage, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, paxosProposeMethod, in, opts)
}

func (c *paxosClient) RequestState(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*StateMessage, error) {
	return invoke[StateMessage](ctx, c.cc, paxosStateMethod, in, opts)
}
