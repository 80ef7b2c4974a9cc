// Package ingress is the external interface of the engine (§6): a
// plain TCP listener speaking one JSON-encoded domain.Command per
// line, replacing the teacher's generated gRPC service (DESIGN.md:
// regenerating .pb.go bindings needs protoc, which this exercise
// cannot run). Every connection's commands funnel through one bounded
// queue into a single pump goroutine that is the only caller of
// Engine.Submit, preserving the single-writer contract no matter how
// many connections are open concurrently.
package ingress

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"

	"galois/internal/domain"
	"galois/internal/sequencer"
	"galois/internal/store"

	"github.com/cockroachdb/errors"
)

// maxLineBytes bounds one command line — generous for a ~20-field
// envelope, small enough that a malformed/huge line can't pin memory.
const maxLineBytes = 64 * 1024

type job struct {
	cmd  domain.Command
	resp chan sequencer.Result
}

// Server owns the listener, the bounded command queue, and the single
// pump goroutine that drains it into the engine.
type Server struct {
	addr   string
	engine *sequencer.Engine
	store  *store.Store
	log    *slog.Logger

	queue chan job
	ln    net.Listener

	// OnFatal is invoked (once) if a durable write to the log fails —
	// a PersistenceError per DESIGN.md, which halts the engine rather
	// than silently diverging from what was acknowledged to a client.
	OnFatal func(error)

	// OnCommitted, if set, is invoked synchronously from the pump
	// after a mutating command has been accepted and durably logged —
	// main wires the committer and the broadcaster in here, so this
	// package never needs to import either.
	OnCommitted func(res sequencer.Result)

	// OnSubmitted, if set, is invoked synchronously from the pump
	// after every Engine.Submit call, accepted or rejected, with the
	// wall time the call took — main wires the metrics registry's
	// command-latency histogram in here.
	OnSubmitted func(cmd domain.Command, elapsed time.Duration)

	fatalOnce sync.Once
}

// New constructs a Server bound to addr, pumping accepted commands into
// engine and persisting each accepted one to s's seq family.
func New(addr string, engine *sequencer.Engine, s *store.Store, queueDepth int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:   addr,
		engine: engine,
		store:  s,
		log:    logger,
		queue:  make(chan job, queueDepth),
	}
}

// Listen binds the TCP socket without yet serving connections — split
// from Serve so a caller (or a test) can discover the bound address
// when addr requests an ephemeral port (":0").
func (s *Server) Listen() (net.Addr, error) {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, errors.Wrapf(err, "ingress: listen %s", s.addr)
	}
	s.ln = lis
	return lis.Addr(), nil
}

// Serve accepts connections until ctx is canceled, routing every
// command through the single pump goroutine. Listen must have been
// called first.
func (s *Server) Serve(ctx context.Context) error {
	go s.pump(ctx)

	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	s.log.Info("ingress listening", "addr", s.ln.Addr().String())
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return errors.Wrap(err, "ingress: accept")
			}
		}
		go s.handleConn(ctx, conn)
	}
}

// Run is the Listen-then-Serve convenience a process's main uses.
func (s *Server) Run(ctx context.Context) error {
	if _, err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// SubmitInternal enqueues a command from a non-TCP source — the chain
// scanner, and main's periodic DUMP — through the same pump and
// persistence path a network client's command takes, so the
// single-writer contract holds no matter where a command originates.
// Unlike handleConn it blocks on a full queue rather than answering
// Backpressure: the scanner has nowhere else to put a deposit it has
// already observed finalized on chain.
func (s *Server) SubmitInternal(ctx context.Context, cmd domain.Command) (sequencer.Result, error) {
	resp := make(chan sequencer.Result, 1)
	select {
	case s.queue <- job{cmd: cmd, resp: resp}:
	case <-ctx.Done():
		return sequencer.Result{}, ctx.Err()
	}

	select {
	case res := <-resp:
		return res, nil
	case <-ctx.Done():
		return sequencer.Result{}, ctx.Err()
	}
}

// pump is the single caller of Engine.Submit — every command, from
// every connection, crosses this one goroutine in arrival order.
func (s *Server) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			start := time.Now()
			res := s.engine.Submit(j.cmd)
			if s.OnSubmitted != nil {
				s.OnSubmitted(j.cmd, time.Since(start))
			}
			if res.Status == sequencer.Accepted && res.EventID != 0 {
				s.persist(res.EventID, j.cmd)
				if s.OnCommitted != nil {
					s.OnCommitted(res)
				}
			}
			j.resp <- res
		}
	}
}

// persist durably logs an accepted command so snapshot.Recover can
// replay it after a restart. A failure here is a PersistenceError
// (DESIGN.md): the command was already applied in memory, so silently
// continuing would mean acknowledging state recovery could never
// reproduce.
func (s *Server) persist(eventID uint64, cmd domain.Command) {
	blob, err := json.Marshal(cmd)
	if err != nil {
		s.fatal(errors.Wrapf(err, "ingress: marshal command for event %d", eventID))
		return
	}
	if err := s.store.Put(store.FamilySeq, eventID, blob); err != nil {
		s.fatal(domain.NewPersistenceError(errors.Wrapf(err, "ingress: persist event %d", eventID)))
	}
}

func (s *Server) fatal(err error) {
	s.log.Error("ingress: fatal persistence failure", "err", err)
	if s.OnFatal != nil {
		s.fatalOnce.Do(func() { s.OnFatal(err) })
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), maxLineBytes)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var cmd domain.Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			_ = enc.Encode(errorEnvelope("BadRequest", err.Error()))
			continue
		}

		resp := make(chan sequencer.Result, 1)
		select {
		case s.queue <- job{cmd: cmd, resp: resp}:
		default:
			_ = enc.Encode(errorEnvelope("Backpressure", domain.ErrBackpressure.Error()))
			continue
		}

		select {
		case res := <-resp:
			if err := enc.Encode(res); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

type errorResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

func errorEnvelope(reason, detail string) errorResponse {
	return errorResponse{Status: "Rejected", Reason: reason, Detail: detail}
}
