package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Kareem-F/500lines/cluster"
	"github.com/Kareem-F/500lines/config"
	"github.com/Kareem-F/500lines/paxos"
	"github.com/Kareem-F/500lines/util"
)

// the parts of the server state the HTTP endpoints use
type replicatedLog interface {
	Submit(ctx context.Context, input string) (int64, error)
	Decision(slot int64) (paxos.Proposal, bool)
	LeaderStatus() paxos.Status
}

var _ replicatedLog = (*cluster.ServerState)(nil)

// StartHTTPServer starts the http server
func StartHTTPServer(paxosServer *cluster.ServerState) *http.Server {
	server := &http.Server{Addr: config.HTTPListenAddress, Handler: newHandler(paxosServer)}
	go serveHTTP(server)
	return server
}

func newHandler(paxosServer replicatedLog) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /proposals", func(writer http.ResponseWriter, request *http.Request) { handlePropose(writer, request, paxosServer) })
	mux.HandleFunc("GET /decisions/{slot}", func(writer http.ResponseWriter, request *http.Request) { handleDecision(writer, request, paxosServer) })
	mux.HandleFunc("GET /leader", func(writer http.ResponseWriter, request *http.Request) { handleLeader(writer, request, paxosServer) })
	return mux
}

func serveHTTP(server *http.Server) {
	err := server.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		util.SlogPanic(err.Error())
	}
}

func writeJSON(writer http.ResponseWriter, value any) {
	writer.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(writer).Encode(value)
	if err != nil {
		slog.Error("Error writing HTTP response", slog.String("error", err.Error()))
	}
}

// HTTP POST /proposals endpoint, appends the request body to the log
// Replies with the slot it was decided at, once it is decided
func handlePropose(writer http.ResponseWriter, request *http.Request, paxosServer replicatedLog) {
	slog.Info("Received HTTP POST", slog.String("url", request.URL.String()))
	input, err := io.ReadAll(request.Body)
	if err != nil {
		writer.WriteHeader(400)
		return
	}
	slot, err := paxosServer.Submit(request.Context(), string(input))
	if err != nil {
		slog.Warn("Proposal not decided", slog.String("error", err.Error()))
		writer.WriteHeader(503)
		return
	}
	writeJSON(writer, map[string]int64{"slot": slot})
}

// HTTP GET /decisions/{slot} endpoint, returns the proposal decided for a slot
func handleDecision(writer http.ResponseWriter, request *http.Request, paxosServer replicatedLog) {
	slog.Info("Received HTTP GET", slog.String("url", request.URL.String()))
	slot, err := strconv.ParseInt(request.PathValue("slot"), 10, 64)
	if err != nil || slot < 0 {
		writer.WriteHeader(400)
		return
	}
	proposal, ok := paxosServer.Decision(slot)
	if !ok {
		writer.WriteHeader(404)
		return
	}
	writeJSON(writer, proposal)
}

// HTTP GET /leader endpoint, returns the state of the leader of this member
func handleLeader(writer http.ResponseWriter, request *http.Request, paxosServer replicatedLog) {
	slog.Debug("Received HTTP GET", slog.String("url", request.URL.String()))
	writeJSON(writer, paxosServer.LeaderStatus())
}
