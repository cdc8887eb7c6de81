package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/Kareem-F/500lines/cluster"
	"github.com/Kareem-F/500lines/config"
	"github.com/Kareem-F/500lines/etcd"
)

func main() {
	config.SetupConf()
	if config.Verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	} else {
		slog.SetLogLoggerLevel(slog.LevelInfo)
	}
	slog.Info("Server starting", slog.String("address", config.MyAddress), slog.Int64("alpha", config.PaxosAlpha))
	ctx, cancel := context.WithCancel(context.Background())
	client := etcd.EtcdSetup()
	paxosServer := cluster.SetupGRPC(ctx, &client)
	httpServer := StartHTTPServer(paxosServer)
	awaitInterrupt()
	slog.Info("Shutting down")
	cancel()
	err := httpServer.Shutdown(context.Background())
	if err != nil {
		slog.Error("Error shutting down HTTP server", slog.String("error", err.Error()))
	}
	paxosServer.Close()
	client.Close()
	slog.Info("Shutdown complete")
}

func awaitInterrupt() {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	<-signalChan
}
