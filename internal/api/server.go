// Package api serves the live simulation and its recorded runs over HTTP.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/banshee-data/roadagent/internal/db"
	"github.com/banshee-data/roadagent/internal/driver"
	"github.com/banshee-data/roadagent/internal/httputil"
	"github.com/banshee-data/roadagent/internal/monitoring"
	"github.com/banshee-data/roadagent/internal/sim"
	"github.com/banshee-data/roadagent/internal/units"
)

var logf = monitoring.Prefixed("api")

// Server exposes one simulation. The database is optional; run endpoints
// answer 503 without it.
type Server struct {
	sim      *sim.Sim
	db       *db.DB
	hub      *Hub
	units    string
	upgrader websocket.Upgrader
}

// NewServer wires a server to s. Speeds are reported in defaultUnits unless
// a request asks otherwise.
func NewServer(s *sim.Sim, database *db.DB, hub *Hub, defaultUnits string) (*Server, error) {
	if !units.IsValid(defaultUnits) {
		return nil, fmt.Errorf("invalid units %q, want one of: %s", defaultUnits, units.ValidUnitsString())
	}
	if hub == nil {
		hub = NewHub(1)
	}
	return &Server{
		sim:   s,
		db:    database,
		hub:   hub,
		units: defaultUnits,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}, nil
}

// Hub returns the frame fan-out; register it as a sim observer.
func (s *Server) Hub() *Hub { return s.hub }

// ServeMux returns the routes. Database admin pages are mounted under
// /debug/ when a database is attached.
func (s *Server) ServeMux() (*http.ServeMux, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/config", s.showConfig)
	mux.HandleFunc("GET /api/agents", s.listAgents)
	mux.HandleFunc("GET /api/agents/{agent}", s.showAgent)
	mux.HandleFunc("POST /api/agents/{agent}/tunables", s.setTunables)
	mux.HandleFunc("GET /api/summary", s.showSummary)
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.showRun)
	mux.HandleFunc("GET /api/runs/{id}/samples", s.listSamples)
	mux.HandleFunc("GET /api/runs/{id}/chart", s.runChart)
	mux.HandleFunc("GET /api/runs/{id}/plot.png", s.runPlot)
	mux.HandleFunc("GET /ws", s.serveFrames)
	if s.db != nil {
		if err := s.db.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

// requestUnits picks ?units= or the server default.
func (s *Server) requestUnits(r *http.Request) (string, error) {
	u := r.URL.Query().Get("units")
	if u == "" {
		return s.units, nil
	}
	if !units.IsValid(u) {
		return "", fmt.Errorf("invalid 'units' parameter, want one of: %s", units.ValidUnitsString())
	}
	return u, nil
}

// convertSnapshot reports speeds in u. Snapshots carry sim speed.
func convertSnapshot(snap driver.Snapshot, u string) driver.Snapshot {
	snap.Speed = units.FromSim(snap.Speed, u)
	snap.TargetSpeed = units.FromSim(snap.TargetSpeed, u)
	snap.FollowCap = units.FromSim(snap.FollowCap, u)
	return snap
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"scenario": s.sim.Name(),
		"dt":       s.sim.DT(),
		"units":    s.units,
		"agents":   s.sim.AgentNames(),
		"database": s.db != nil,
	})
}

// AgentsResponse is the body of GET /api/agents.
type AgentsResponse struct {
	Tick   uint64            `json:"tick"`
	Time   float64           `json:"time"`
	Units  string            `json:"units"`
	Agents []driver.Snapshot `json:"agents"`
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	u, err := s.requestUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	f := s.sim.Frame()
	resp := AgentsResponse{Tick: f.Tick, Time: f.Time, Units: u, Agents: make([]driver.Snapshot, len(f.Agents))}
	for i, snap := range f.Agents {
		resp.Agents[i] = convertSnapshot(snap, u)
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showAgent(w http.ResponseWriter, r *http.Request) {
	u, err := s.requestUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	snap, err := s.sim.Snapshot(r.PathValue("agent"))
	if err != nil {
		s.writeSimError(w, err)
		return
	}
	httputil.WriteJSONOK(w, convertSnapshot(snap, u))
}

func (s *Server) setTunables(w http.ResponseWriter, r *http.Request) {
	var req TunablesRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	name := r.PathValue("agent")
	err := s.sim.Submit(name, func(a *driver.Agent) {
		if err := req.Apply(a); err != nil {
			logf("tunables rejected: %v", err)
		}
	})
	if err != nil {
		s.writeSimError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "agent": name})
}

func (s *Server) writeSimError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sim.ErrUnknownAgent):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, sim.ErrQueueFull):
		httputil.ServiceUnavailable(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.sim.Summary())
}

// requireDB answers 503 when no database is attached.
func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.db == nil {
		httputil.ServiceUnavailable(w, "no database attached")
		return false
	}
	return true
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = n
	}
	runs, err := s.db.Runs(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	httputil.WriteJSONOK(w, runs)
}

// lookupRun resolves {id}, writing the error response itself on failure.
func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (db.Run, bool) {
	if !s.requireDB(w) {
		return db.Run{}, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httputil.BadRequest(w, "invalid run id")
		return db.Run{}, false
	}
	run, err := s.db.GetRun(r.Context(), id)
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return db.Run{}, false
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load run: %v", err))
		return db.Run{}, false
	}
	return run, true
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, run)
}

// runSamples loads samples for a run with speeds in the requested units.
func (s *Server) runSamples(w http.ResponseWriter, r *http.Request) (db.Run, []db.Sample, string, bool) {
	u, err := s.requestUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return db.Run{}, nil, "", false
	}
	run, ok := s.lookupRun(w, r)
	if !ok {
		return db.Run{}, nil, "", false
	}
	samples, err := s.db.RunSamples(r.Context(), run.ID, r.URL.Query().Get("agent"))
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load samples: %v", err))
		return db.Run{}, nil, "", false
	}
	for i := range samples {
		samples[i].Speed = units.FromSim(samples[i].Speed, u)
		samples[i].TargetSpeed = units.FromSim(samples[i].TargetSpeed, u)
	}
	return run, samples, u, true
}

func (s *Server) listSamples(w http.ResponseWriter, r *http.Request) {
	_, samples, _, ok := s.runSamples(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, samples)
}
