// Command galois runs the matching/clearing/proving engine as one
// process: ingress accepts commands over TCP, the sequencer applies
// them in arrival order, the committer commits every accepted event
// into the state-commitment tree, the chain scanner injects external
// deposit/withdraw/listing events, and the broadcaster republishes
// every committed event's proof bundle downstream — the same
// WAL-load/replay-then-serve shape as the teacher's cmd/server/main.go,
// generalized from one hardwired order book to the full engine.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"galois/internal/broadcaster"
	"galois/internal/committer"
	"galois/internal/config"
	"galois/internal/domain"
	"galois/internal/ingress"
	"galois/internal/logging"
	"galois/internal/metrics"
	"galois/internal/scanner"
	"galois/internal/sequencer"
	"galois/internal/snapshot"
	"galois/internal/store"
)

func main() {
	configPath := flag.String("config", "galois.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger := logging.New(logging.Options{Level: cfg.Logging.Level, JSON: true})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Store.Dir)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	engine, commit, err := snapshot.Recover(st)
	if err != nil {
		logger.Error("recover from store", "err", err)
		os.Exit(1)
	}
	logger.Info("recovered engine state", "event_id", engine.EventCounter())

	metricsReg, promReg := metrics.NewRegistry()
	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, metrics.Handler(promReg), logger)
	}

	engine.OnRejected = func(cmd domain.Command, reason domain.Reason) {
		metricsReg.CommandsRejected.WithLabelValues(string(reason)).Inc()
	}

	bootstrapSymbols(engine, commit, st, cfg.Symbols, metricsReg, logger)

	var bc *broadcaster.Broadcaster
	if cfg.Kafka.Broadcaster.Topic != "" && len(cfg.Kafka.Brokers) > 0 {
		bc, err = broadcaster.New(cfg.Kafka.Brokers, cfg.Kafka.Broadcaster.Topic)
		if err != nil {
			logger.Error("start broadcaster", "err", err)
			os.Exit(1)
		}
		defer bc.Close()
	}

	engine.OnDump = func(eventID uint64) {
		d := snapshot.Build(eventID, commit, engine)
		size, err := snapshot.Persist(st, d)
		if err != nil {
			logger.Error("persist snapshot", "event_id", eventID, "err", err)
			return
		}
		metricsReg.SnapshotsTaken.Inc()
		metricsReg.SnapshotBytes.Observe(float64(size))
	}

	srv := ingress.New(cfg.Ingress.Addr, engine, st, cfg.Ingress.QueueDepth, logger)
	srv.OnFatal = func(err error) {
		logger.Error("fatal persistence failure, halting", "err", err)
		stop()
	}
	srv.OnSubmitted = func(cmd domain.Command, elapsed time.Duration) {
		metricsReg.CommandLatency.WithLabelValues(cmd.Kind.String()).Observe(elapsed.Seconds())
	}

	eventsSinceSnapshot := uint64(0)
	srv.OnCommitted = func(res sequencer.Result) {
		metricsReg.CommandsAccepted.WithLabelValues(res.Command.Kind.String()).Inc()

		proof, err := commit.Commit(res.EventID, engine.Ledger(),
			snapshot.AccountKeysTouched(res), snapshot.BooksTouched(engine, res), snapshot.SymbolsTouched(res))
		if err != nil {
			logger.Error("commit event", "event_id", res.EventID, "err", err)
			stop()
			return
		}

		if blob, err := committer.EncodeBundle(proof); err != nil {
			logger.Error("encode proof bundle", "event_id", res.EventID, "err", err)
		} else if err := st.Put(store.FamilyProof, res.EventID, blob); err != nil {
			logger.Error("persist proof bundle", "event_id", res.EventID, "err", err)
		}
		if err := st.Put(store.FamilyStatus, res.EventID, []byte(res.Status.String())); err != nil {
			logger.Error("persist status", "event_id", res.EventID, "err", err)
		}

		if bc != nil {
			if err := bc.Publish(ctx, broadcaster.Message{EventID: res.EventID, Rows: res.Rows, Proof: proof}); err != nil {
				logger.Error("broadcast event", "event_id", res.EventID, "err", err)
			}
		}

		// Skip DUMP itself — it already triggered engine.OnDump, and
		// counting it would make every periodic dump count toward the
		// next interval.
		if res.Command.Kind == domain.Dump {
			return
		}
		eventsSinceSnapshot++
		if eventsSinceSnapshot >= cfg.Snapshot.IntervalEvents {
			eventsSinceSnapshot = 0
			// OnCommitted runs on the ingress pump, the goroutine that
			// answers SubmitInternal, so the DUMP is submitted from its
			// own goroutine and applied after this event.
			go func() {
				if _, err := srv.SubmitInternal(ctx, domain.Command{Kind: domain.Dump}); err != nil {
					logger.Error("submit periodic dump", "err", err)
				}
			}()
		}
	}

	addr, err := srv.Listen()
	if err != nil {
		logger.Error("listen", "err", err)
		os.Exit(1)
	}
	logger.Info("galois listening", "addr", addr.String())

	if cfg.Kafka.Scanner.Topic != "" && len(cfg.Kafka.Brokers) > 0 {
		sc := scanner.New(scanner.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Scanner.Topic,
			GroupID: cfg.Kafka.Scanner.GroupID,
		}, srv, logger)
		go func() {
			if err := sc.Run(ctx); err != nil {
				logger.Error("scanner exited", "err", err)
			}
		}()
		defer sc.Close()
	}

	if err := srv.Serve(ctx); err != nil {
		logger.Error("ingress serve exited", "err", err)
	}
	logger.Info("galois shut down")
}

func mustMarshalJSON(v any) []byte {
	blob, err := json.Marshal(v)
	if err != nil {
		// Every type passed here is plain committed data; a marshal
		// failure would mean a programming error, not an operational
		// condition to recover from.
		panic(err)
	}
	return blob
}

// bootstrapSymbols registers every configured symbol on a fresh store
// (one with no recovered symbols) by submitting NEW_SYMBOL commands
// directly — this runs once, before ingress starts, so there is no
// concurrent writer to race with.
func bootstrapSymbols(engine *sequencer.Engine, commit *committer.Committer, st *store.Store, symbols []config.SymbolConfig, m *metrics.Registry, logger *slog.Logger) {
	if len(engine.Symbols()) > 0 || len(symbols) == 0 {
		return
	}
	for _, sc := range symbols {
		cmd, err := sc.ToCommand()
		if err != nil {
			logger.Error("build bootstrap symbol command", "base", sc.Base, "quote", sc.Quote, "err", err)
			continue
		}
		res := engine.Submit(cmd)
		if res.Status != sequencer.Accepted {
			logger.Error("bootstrap symbol rejected", "base", sc.Base, "quote", sc.Quote, "reason", res.Reason)
			continue
		}
		if err := st.Put(store.FamilySeq, res.EventID, mustMarshalJSON(cmd)); err != nil {
			logger.Error("persist bootstrap symbol command", "err", err)
			continue
		}
		if _, err := commit.Commit(res.EventID, engine.Ledger(), nil, snapshot.BooksTouched(engine, res), snapshot.SymbolsTouched(res)); err != nil {
			logger.Error("commit bootstrap symbol", "err", err)
			continue
		}
		m.CommandsAccepted.WithLabelValues(res.Command.Kind.String()).Inc()
	}
}

func serveMetrics(addr string, reg http.Handler, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg)
	logger.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server exited", "err", err)
	}
}
