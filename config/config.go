/*
Package config is responsible for parsing and storing command line derived configuration values
*/
package config

import (
	"flag"
	"strings"
	"time"

	"github.com/Kareem-F/500lines/util"
)

var (
	// gRPC listen address, also the identity of this member in ballots and views
	MyAddress         string        = ""
	HTTPListenAddress string        = ""
	EtcdEndpoints     []string      = nil
	EtcdLeaseTTL      int64         = 5
	PaxosAlpha        int64         = 10
	PaxosRetryDelay   time.Duration = 100 * time.Millisecond
	Recover           bool          = false
	Verbose           bool          = false
)

func SetupConf() {
	address := flag.String("address", "", "gRPC listen address of this member, must be unique across the cluster")
	flag.StringVar(&HTTPListenAddress, "http", ":8080", "HTTP listen address for clients")
	endpoints := flag.String("etcd", "127.0.0.1:2379", "comma separated etcd endpoints")
	flag.Int64Var(&EtcdLeaseTTL, "lease-ttl", EtcdLeaseTTL, "etcd lease TTL in seconds, a member is out of the view once it expires")
	flag.Int64Var(&PaxosAlpha, "alpha", PaxosAlpha, "pipelining window, how far past a known peer history slot a slot may be committed")
	flag.DurationVar(&PaxosRetryDelay, "retry", PaxosRetryDelay, "delay between retries of unanswered messages")
	flag.BoolVar(&Recover, "recover", false, "copy the decided log from a live member before joining, for members started after the cluster")
	flag.BoolVar(&Verbose, "v", false, "verbose output, activates debug level logging")
	flag.Parse()
	if *address == "" {
		util.SlogPanic("a non-empty --address <host:port> is required")
	}
	if PaxosAlpha < 1 {
		util.SlogPanic("--alpha must be positive")
	}
	MyAddress = *address
	EtcdEndpoints = strings.Split(*endpoints, ",")
}
