// Package server answers cluster and sort requests from in-store scanners
// over a plain TCP text protocol.
//
// A request is a single message of the form action|payload:
//
//	cluster|<strategy>^<data dir>
//	sort|start^<customer>/<item>,<item>,...
//	sort|mid^<picked item>/<item>,<item>,...
//	sort|end^<item>,<item>,...
//	notsort|<same payloads as sort>
//
// The reply is DONE. for a finished compile, NO DATA. when there was nothing
// to compile, the ordered items joined by ", " for sorts, or ERROR: <reason>.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/pickpath/internal/cluster"
	"github.com/Veraticus/pickpath/internal/engine"
	"github.com/Veraticus/pickpath/internal/export"
	"github.com/Veraticus/pickpath/internal/recordings"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Replies with fixed text.
const (
	ReplyDone   = "DONE."
	ReplyNoData = "NO DATA."

	maxRequestBytes = 64 * 1024
)

// ErrMalformedRequest indicates a request that does not follow the protocol.
var ErrMalformedRequest = errors.New("malformed request")

// Server dispatches requests to the engine.
type Server struct {
	engine  *engine.Engine
	limiter *rate.Limiter
	config  Config
}

// New creates a server around e.
func New(e *engine.Engine, config Config) *Server {
	limit := rate.Limit(config.AcceptRate)
	if config.AcceptRate <= 0 {
		limit = rate.Inf
	}
	burst := config.AcceptBurst
	if burst <= 0 {
		burst = 1
	}
	return &Server{
		engine:  e,
		config:  config,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is done, then waits for the
// in-flight requests to finish. At most Workers connections are handled at
// once; further connections wait in the accept loop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	slog.Info("Server listening", "addr", ln.Addr().String(), "workers", s.config.Workers)

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var workers errgroup.Group
	workers.SetLimit(s.config.Workers)

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			slog.Warn("Accept failed", "error", err)
			continue
		}
		workers.Go(func() error {
			s.handleConn(ctx, conn)
			return nil
		})
	}

	_ = workers.Wait()
	slog.Info("Server stopped")
	return nil
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	if err := conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout)); err != nil {
		slog.Warn("Failed to set read deadline", "error", err)
	}

	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil {
		slog.Debug("Connection closed before a request arrived", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}

	request := string(buf[:n])
	reply := s.Handle(ctx, request)
	if _, err := conn.Write([]byte(reply)); err != nil {
		slog.Warn("Failed to write reply", "remote", conn.RemoteAddr().String(), "error", err)
	}
}

// Handle answers one request.
func (s *Server) Handle(ctx context.Context, request string) string {
	action, payload, ok := strings.Cut(strings.TrimSpace(request), "|")
	if !ok {
		return errorReply(fmt.Errorf("%w: missing action separator", ErrMalformedRequest))
	}

	action = strings.ToLower(strings.TrimSpace(action))
	slog.Debug("Handling request", "action", action)

	switch action {
	case "cluster":
		return s.handleCluster(ctx, payload)
	case "sort":
		return s.handleSort(ctx, payload, true)
	case "notsort":
		return s.handleSort(ctx, payload, false)
	default:
		return errorReply(fmt.Errorf("%w: unknown action %q", ErrMalformedRequest, action))
	}
}

func (s *Server) handleCluster(ctx context.Context, payload string) string {
	code, dir, _ := strings.Cut(payload, "^")
	strategy, err := s.strategyFor(code)
	if err != nil {
		return errorReply(err)
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = s.config.DataDir
	}

	err = s.Cluster(ctx, strategy, dir)
	switch {
	case errors.Is(err, engine.ErrNoData):
		return ReplyNoData
	case err != nil:
		return errorReply(err)
	default:
		return ReplyDone
	}
}

// strategyFor maps the client's strategy code. Numeric codes other than 0
// and 1 select affinity propagation.
func (s *Server) strategyFor(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return s.config.Strategy, nil
	}
	if n, err := strconv.Atoi(code); err == nil {
		if n == 0 || n == 1 {
			return cluster.StrategyHierarchical, nil
		}
		return cluster.StrategyAffinity, nil
	}
	return cluster.ParseName(code)
}

// Cluster compiles the recordings under dir, publishes the new snapshot and
// writes its artifacts next to the recordings. It returns engine.ErrNoData
// when there is nothing to learn from.
func (s *Server) Cluster(ctx context.Context, strategy, dir string) error {
	records, err := recordings.Compile(ctx, filepath.Join(dir, recordings.RecordingsDir), recordings.Options{
		Pattern: s.config.Pattern,
	})
	if errors.Is(err, recordings.ErrNoRecordings) || errors.Is(err, os.ErrNotExist) {
		slog.Info("No recordings collected yet", "dir", dir)
		return fmt.Errorf("%w: %w", engine.ErrNoData, err)
	}
	if err != nil {
		return err
	}

	if _, err := export.WriteCompiledLog(dir, time.Now(), records); err != nil {
		slog.Warn("Failed to write compiled log", "error", err)
	}

	snap, err := s.engine.Compile(ctx, records, strategy)
	if err != nil {
		return err
	}

	art, err := export.WriteArtifacts(dir, snap)
	if err != nil {
		return fmt.Errorf("failed to export artifacts: %w", err)
	}
	slog.Info("Exported artifacts", "clusters_csv", art.ClustersCSV, "clusters_json", art.ClustersJSON)
	return nil
}

func (s *Server) handleSort(ctx context.Context, payload string, sorted bool) string {
	req, err := parseSortPayload(payload)
	if err != nil {
		return errorReply(err)
	}
	if !sorted || req.stage == engine.StageEnd {
		return joinItems(req.items)
	}

	started := time.Now()
	out, err := s.engine.Sort(ctx, req.stage, req.anchor, req.items)
	elapsed := time.Since(started)

	if errors.Is(err, engine.ErrNoData) {
		slog.Warn("No compiled snapshot yet, returning the list unsorted", "stage", req.stage)
		return joinItems(req.items)
	}
	if err != nil {
		return errorReply(err)
	}

	if req.stage == engine.StageStart {
		if err := s.engine.RecordSortTiming(ctx, req.customer, len(req.items), elapsed); err != nil {
			slog.Warn("Failed to record sort timing", "error", err)
		}
	}
	return joinItems(out)
}

type sortRequest struct {
	stage    engine.Stage
	anchor   string
	items    []string
	customer int
}

func parseSortPayload(payload string) (sortRequest, error) {
	rawStage, data, ok := strings.Cut(payload, "^")
	if !ok {
		return sortRequest{}, fmt.Errorf("%w: missing stage separator", ErrMalformedRequest)
	}
	stage, err := engine.ParseStage(rawStage)
	if err != nil {
		return sortRequest{}, err
	}
	data = strings.TrimSpace(data)

	req := sortRequest{stage: stage}
	switch stage {
	case engine.StageStart:
		count, items, ok := strings.Cut(data, "/")
		if !ok {
			return sortRequest{}, fmt.Errorf("%w: start stage needs <customer>/<items>", ErrMalformedRequest)
		}
		customer, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil {
			return sortRequest{}, fmt.Errorf("%w: invalid customer number %q", ErrMalformedRequest, count)
		}
		req.customer = customer
		req.items = splitItems(items)
	case engine.StageMid:
		anchor, items, ok := strings.Cut(data, "/")
		if !ok {
			return sortRequest{}, fmt.Errorf("%w: mid stage needs <item>/<items>", ErrMalformedRequest)
		}
		req.anchor = strings.TrimSpace(anchor)
		req.items = splitItems(items)
	default:
		req.items = splitItems(data)
	}
	return req, nil
}

func splitItems(s string) []string {
	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}

func joinItems(items []string) string {
	return strings.Join(items, ", ")
}

func errorReply(err error) string {
	slog.Warn("Request failed", "error", err)
	return "ERROR: " + err.Error()
}
