// Package httpserver exposes a read-only control surface over a
// running party: session status and the log of opened values. It never
// exposes shares or keys; everything served here is public to the
// session anyway.
package httpserver

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/mindhaven/mpcnet/party"
	"github.com/mindhaven/mpcnet/storage"
	"github.com/mindhaven/mpcnet/types"
	"github.com/rs/zerolog/log"
)

// Server serves the status endpoints of one party.
type Server struct {
	mpc     party.MPC
	results storage.ResultLog
}

// NewServer creates a server over the given party and its result log.
func NewServer(mpc party.MPC, results storage.ResultLog) *Server {
	return &Server{mpc: mpc, results: results}
}

// Status is the payload of GET /status.
type Status struct {
	Party   int    `json:"party"`
	Session string `json:"session"`
	Results int    `json:"results"`
	Digest  string `json:"digest"`
}

// Result is one entry of GET /results.
type Result struct {
	ReqID string `json:"reqId"`
	Value string `json:"value"`
	Proof string `json:"proof"`
}

// ListenAndServe blocks serving the endpoints on addr.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/results", s.resultsHandler)

	log.Info().Msgf("status server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := Status{
		Party:   s.mpc.SelfID(),
		Session: s.mpc.SessionID(),
		Results: s.results.Len(),
		Digest:  hex.EncodeToString(s.results.Digest()),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Warn().Msgf("status encode: %v", err)
	}
}

func (s *Server) resultsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	out := []Result{}
	_ = s.results.For(func(reqID string, res types.Result) error {
		entry := Result{ReqID: reqID, Proof: hex.EncodeToString(res.Proof)}
		if res.Value != nil {
			entry.Value = res.Value.String()
		}
		out = append(out, entry)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ReqID < out[j].ReqID })

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		log.Warn().Msgf("results encode: %v", err)
	}
}
