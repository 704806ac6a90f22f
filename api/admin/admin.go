// Package admin exposes the service over HTTP (JSON) and gRPC,
// adapted from the teacher's api/grpcserver.Server: the same
// construction shape (wrap one service struct, register it with a
// transport) but with no generated pb package to implement — the
// teacher's api/pb is transitive source the retrieval pack never
// included. Admin fills that absence with grpc_health_v1 and
// reflection, the two services any grpc.Server can register without
// a schema, and carries the real request/response surface over a
// plain JSON HTTP API instead.
package admin

import (
	"encoding/json"
	"log"
	"net"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/neunhoef/resource-manager/internal/apilog"
	"github.com/neunhoef/resource-manager/internal/confighub"
	"github.com/neunhoef/resource-manager/internal/metrics"
)

// Server is the admin surface over one apilogd instance: recent call
// history, the live routing table, and Prometheus metrics.
type Server struct {
	log *apilog.Log
	hub *confighub.Hub
	met *metrics.Registry
}

// New constructs a Server fronting log, hub, and met.
func New(log *apilog.Log, hub *confighub.Hub, met *metrics.Registry) *Server {
	return &Server{log: log, hub: hub, met: met}
}

// HTTPHandler builds the admin HTTP mux: GET /recent, GET /config,
// POST /config, GET /metrics.
func (s *Server) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/recent", s.handleRecent)
	mux.HandleFunc("/config", s.handleConfig)
	mux.Handle("/metrics", s.met.Handler())
	return mux
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.log.Recent()); err != nil {
		log.Printf("[admin] failed to encode recent calls: %v", err)
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.hub.Current()); err != nil {
			log.Printf("[admin] failed to encode routing table: %v", err)
		}
	case http.MethodPost:
		var next confighub.Table
		if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.hub.Update(next)
		w.WriteHeader(http.StatusAccepted)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ServeGRPC starts a gRPC server on lis carrying only health and
// reflection services, blocking until lis is closed or the server
// stops.
func ServeGRPC(lis net.Listener) error {
	srv := grpc.NewServer()

	hs := health.NewServer()
	hs.SetServingStatus("apilogd", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	reflection.Register(srv)

	return srv.Serve(lis)
}
