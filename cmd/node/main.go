package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jwhyun/limitbook/params"
	"github.com/jwhyun/limitbook/pkg/api"
	"github.com/jwhyun/limitbook/pkg/crypto"
	"github.com/jwhyun/limitbook/pkg/engine"
	"github.com/jwhyun/limitbook/pkg/engine/vault"
	"github.com/jwhyun/limitbook/pkg/events"
	"github.com/jwhyun/limitbook/pkg/faucet"
	"github.com/jwhyun/limitbook/pkg/p2p"
	"github.com/jwhyun/limitbook/pkg/storage"
	"github.com/jwhyun/limitbook/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logPath := cfg.Node.LogFile
	if logPath == "" {
		logPath = filepath.Join(cfg.Node.DataDir, "node.log")
	}
	logger, err := util.NewLoggerWithFile(logPath)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Storage ----
	v, err := vault.Open(filepath.Join(cfg.Node.DataDir, "vault"))
	if err != nil {
		sugar.Fatalw("vault_open_failed", "err", err)
	}
	defer v.Close()

	journal, err := storage.OpenEventLog(filepath.Join(cfg.Node.DataDir, "events"))
	if err != nil {
		sugar.Fatalw("event_log_open_failed", "err", err)
	}
	defer journal.Close()

	// ---- Event sinks ----
	signer := crypto.NewTypedSigner(crypto.Domain{
		Name:    "LimitBook",
		Version: "1",
		ChainID: cfg.Signing.ChainID,
	})

	sinks := events.Fanout{journal}

	if cfg.P2P.Enabled {
		feed, err := p2p.NewFeed(ctx, p2p.Config{
			ListenAddr: cfg.P2P.ListenAddr,
			Bootstrap:  cfg.P2P.Bootstrap,
			Logger:     sugar,
		})
		if err != nil {
			sugar.Fatalw("p2p_init_failed", "err", err)
		}
		defer feed.Close()
		sinks = append(sinks, feed)
	}

	// ---- Engine ----
	// The journal is first in the fanout so an event is durable before any
	// live subscriber sees it. Extra sinks appended after construction see
	// only post-restore events, which is what they want.
	eng, err := engine.New(engine.Config{
		Admin:    cfg.Node.Admin,
		MakerBps: cfg.Fees.MakerBps,
		TakerBps: cfg.Fees.TakerBps,
	}, v, &sinks, journal.LastSeq(), sugar, util.RealClock{})
	if err != nil {
		sugar.Fatalw("engine_init_failed", "err", err)
	}
	if err := eng.Restore(journal); err != nil {
		sugar.Fatalw("restore_failed", "err", err)
	}

	// ---- Faucet ----
	var f *faucet.Faucet
	if cfg.Faucet.Enabled {
		f = faucet.New(eng, cfg.Faucet.Cooldown, cfg.Faucet.MaxDrip, util.RealClock{})
	}

	// ---- API ----
	// Joins the fanout late: the engine holds a pointer to sinks, so the
	// server sees only events emitted after this point.
	apiServer := api.NewServer(eng, signer, f, cfg.API.AllowedOrigins, sugar)
	sinks = append(sinks, apiServer)

	sugar.Infow("node_starting",
		"data_dir", cfg.Node.DataDir,
		"admin", cfg.Node.Admin.Hex(),
		"maker_bps", cfg.Fees.MakerBps,
		"taker_bps", cfg.Fees.TakerBps,
		"last_seq", journal.LastSeq(),
		"p2p", cfg.P2P.Enabled)

	go func() {
		if err := apiServer.Start(cfg.API.ListenAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("node_shutting_down")
}
