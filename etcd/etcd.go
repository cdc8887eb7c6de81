/*
Package etcd is responsible for all communications with the etcd cluster for failure detection and view membership purposes
*/
package etcd

import (
	"context"
	"log/slog"

	"github.com/Kareem-F/500lines/config"
	"github.com/Kareem-F/500lines/util"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const aliveKeyPrefix = "alive/"

type EtcdClient struct {
	Client          *clientv3.Client
	leaseID         clientv3.LeaseID
	keepAliveCancel context.CancelFunc
	keepAliveDone   chan byte

	// the etcd revision at which this member registered itself
	registeredRevision int64
}

// Close revokes the lease, taking this member out of the view, and disconnects
func (client *EtcdClient) Close() {
	client.keepAliveCancel()
	<-client.keepAliveDone
	err := client.Client.Close()
	if err != nil {
		slog.Error("Error closing etcd client", slog.String("error", err.Error()))
	}
}

// hand written keep alive loop instead of session to allow revoking on manual disconnection
func keepAlive(ctx context.Context, cli *clientv3.Client, leaseID clientv3.LeaseID, doneChannel chan byte) {
	keepaliveCh, err := cli.KeepAlive(ctx, leaseID)
	if err != nil {
		util.SlogPanic("Failed to start KeepAlive")
	}
	for range keepaliveCh {
	}
	slog.Debug("Revoking lease")
	_, err = cli.Revoke(context.Background(), leaseID)
	if err != nil {
		slog.Error("Error revoking lease")
	}
	slog.Debug("Lease revoked")
	close(doneChannel)
}

// EtcdSetup connects to etcd and registers this member as alive for as long as its lease is kept
func EtcdSetup() EtcdClient {
	slog.Info("Starting etcd client", slog.Any("endpoints", config.EtcdEndpoints))
	cli, err := clientv3.New(clientv3.Config{Endpoints: config.EtcdEndpoints})
	if err != nil {
		util.SlogPanic("Failed to connect to etcd", slog.String("error", err.Error()))
	}
	lease, err := cli.Grant(context.Background(), config.EtcdLeaseTTL)
	if err != nil {
		util.SlogPanic("Failed to grant lease", slog.String("error", err.Error()))
	}
	kaCtx, kaCancel := context.WithCancel(context.Background())
	myAliveKey := aliveKeyPrefix + config.MyAddress
	cmp := clientv3.Compare(clientv3.CreateRevision(myAliveKey), "=", 0)
	put := clientv3.OpPut(myAliveKey, config.MyAddress, clientv3.WithLease(lease.ID))
	res, err := cli.Txn(context.Background()).If(cmp).Then(put).Commit()
	if err != nil {
		util.SlogPanic("Error registering self", slog.String("error", err.Error()))
	}
	if !res.Succeeded {
		util.SlogPanic("Error registering self, address already registered", slog.String("address", config.MyAddress))
	}
	keepAliveDone := make(chan byte)
	go keepAlive(kaCtx, cli, lease.ID, keepAliveDone)
	slog.Info("etcd client connected")
	return EtcdClient{Client: cli, leaseID: lease.ID, registeredRevision: res.Header.Revision, keepAliveCancel: kaCancel, keepAliveDone: keepAliveDone}
}

// WatchViews returns the view this member joined and a channel of the views that follow it.
// Both start at the registration revision, so every change after it arrives as a watch event.
// The channel is closed when ctx is done or the watch fails.
func (client *EtcdClient) WatchViews(ctx context.Context) (View, <-chan View) {
	res, err := client.Client.Get(ctx, aliveKeyPrefix, clientv3.WithPrefix(), clientv3.WithRev(client.registeredRevision))
	if err != nil {
		util.SlogPanic("Error reading alive members from etcd", slog.String("error", err.Error()))
	}
	tracker, current := newViewTracker(res.Kvs, client.registeredRevision)
	views := make(chan View)
	watchChannel := client.Client.Watch(ctx, aliveKeyPrefix, clientv3.WithPrefix(), clientv3.WithRev(client.registeredRevision+1))
	go func() {
		defer close(views)
		for update := range watchChannel {
			if err := update.Err(); err != nil {
				slog.Error("View watch failed", slog.String("error", err.Error()))
				return
			}
			view, changed := tracker.apply(update.Events)
			if !changed {
				continue
			}
			select {
			case views <- view:
			case <-ctx.Done():
				return
			}
		}
	}()
	return current, views
}
