package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"go.uber.org/zap"

	"github.com/criticalpoint/syncbridge/internal/config"
	"github.com/criticalpoint/syncbridge/internal/core/event"
	"github.com/criticalpoint/syncbridge/internal/dispatch"
	"github.com/criticalpoint/syncbridge/internal/driver"
	"github.com/criticalpoint/syncbridge/internal/id"
	"github.com/criticalpoint/syncbridge/internal/journal"
	"github.com/criticalpoint/syncbridge/internal/layout"
	"github.com/criticalpoint/syncbridge/internal/model"
	"github.com/criticalpoint/syncbridge/internal/monitor"
	"github.com/criticalpoint/syncbridge/internal/registry"
	"github.com/criticalpoint/syncbridge/internal/scene"
	"github.com/criticalpoint/syncbridge/internal/scripting"
)

var runFlags struct {
	ticks   uint64
	profile string
	monitor string
	watch   []uint
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a session until interrupted or the tick limit is reached.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("ticks") {
			cfg.Session.MaxTicks = runFlags.ticks
		}
		if cmd.Flags().Changed("monitor") {
			cfg.Monitor.BindAddress = runFlags.monitor
		}

		switch runFlags.profile {
		case "":
		case "cpu":
			defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
		case "mem":
			defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
		default:
			return fmt.Errorf("unknown profile %q, want cpu or mem", runFlags.profile)
		}
		return run(cfg)
	},
}

func init() {
	f := runCmd.Flags()
	f.Uint64Var(&runFlags.ticks, "ticks", 0, "stop after this many ticks (0 = until interrupted)")
	f.StringVar(&runFlags.profile, "profile", "", "write a cpu or mem profile to the working directory")
	f.StringVar(&runFlags.monitor, "monitor", "", "serve the monitor on this address")
	f.UintSliceVar(&runFlags.watch, "watch", nil, "ObjectIDs of characters to trace every tick")
}

func run(cfg *config.Config) error {
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	l, err := hostLayout(cfg.Native.PointerSize)
	if err != nil {
		return err
	}

	// 1. Factories: scripts first, built-ins fill the rest
	d := dispatch.New[model.Actor](log)
	if cfg.Scripting.ScriptsDir != "" {
		lua, err := scripting.NewEngine(cfg.Scripting.ScriptsDir, log)
		if err != nil {
			return err
		}
		defer lua.Close()
		if err := lua.RegisterFactories(d); err != nil {
			return err
		}
	}
	if err := model.RegisterFactories(d); err != nil {
		return err
	}
	log.Info("factories registered", zap.Stringers("classes", d.Classes()))

	// 2. Journal
	var opts []driver.Option[model.Actor]
	opts = append(opts, driver.WithLayout[model.Actor](l))
	if cfg.Journal.Enabled() {
		jr, closeJournal, err := openJournal(cfg, log)
		if err != nil {
			return err
		}
		defer closeJournal()
		opts = append(opts, driver.WithRecorder[model.Actor](jr))
	}

	// 3. Agent
	eng := scene.NewEngine(l, log)
	reg := registry.New(log)
	agent, err := driver.New(eng, d, reg, log, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := agent.Close(); err != nil {
			log.Error("agent close", zap.Error(err))
		}
	}()

	event.Subscribe(agent.Bus(), func(e event.Expired) {
		log.Info("object expired", zap.Uint64("generation", e.Seq), zap.Stringer("object", e.ObjectID))
	})
	event.Subscribe(agent.Bus(), func(e event.Advanced) {
		log.Debug("advanced",
			zap.Uint64("generation", e.Seq),
			zap.Int("materialized", e.Materialized),
			zap.Int("bound", e.Bound),
			zap.Int("collected", e.Collected))
	})

	if err := agent.Load(driver.Resources{
		LogPath:          cfg.Native.LogPath,
		Root:             cfg.Native.ResourceRoot,
		ResourceManifest: cfg.Native.ResourceManifest,
		IDManifest:       cfg.Native.IDManifest,
	}); err != nil {
		return err
	}
	if err := agent.Initialize(driver.Session{
		TicksPerSecond: cfg.Session.TicksPerSecond,
		InitialScene:   cfg.Session.InitialScene,
	}); err != nil {
		return err
	}

	watched := make([]*registry.Handle[model.HumanState], 0, len(runFlags.watch))
	for _, obj := range runFlags.watch {
		h, err := registry.NewHandle[model.HumanState](reg, id.ObjectID(obj))
		if err != nil {
			return err
		}
		defer h.Release()
		watched = append(watched, h)
	}

	// 4. Monitor
	if cfg.Monitor.BindAddress != "" {
		mon := monitor.New(agent, log)
		if err := mon.Start(cfg.Monitor.BindAddress); err != nil {
			return fmt.Errorf("monitor: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mon.Shutdown(ctx)
		}()
	}

	// 5. Tick loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	ticker := time.NewTicker(cfg.Session.TickInterval())
	defer ticker.Stop()

	log.Info("session running",
		zap.String("scene", cfg.Session.InitialScene),
		zap.Duration("tick", cfg.Session.TickInterval()),
		zap.Uint64("max_ticks", cfg.Session.MaxTicks))

	for {
		select {
		case <-ticker.C:
			actors, err := agent.Advance()
			for _, a := range actors {
				log.Info("materialized",
					zap.Stringer("object", a.ObjectID),
					zap.Stringer("class", a.Class),
					zap.String("name", a.Name))
			}
			if err != nil {
				return err
			}
			trace(log, watched)
			if cfg.Session.MaxTicks > 0 && agent.Advanced() >= cfg.Session.MaxTicks {
				log.Info("tick limit reached", zap.Uint64("advanced", agent.Advanced()))
				return nil
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			return nil
		}
	}
}

func hostLayout(pointerSize int) (layout.Layout, error) {
	if pointerSize == 0 {
		return layout.Host()
	}
	return layout.New(pointerSize)
}

func openJournal(cfg *config.Config, log *zap.Logger) (*journal.Journal, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := journal.Open(ctx, cfg.Journal, log)
	if err != nil {
		return nil, nil, fmt.Errorf("journal: %w", err)
	}
	if err := journal.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("journal migrations: %w", err)
	}
	jr := journal.New(db, cfg.Journal.BatchSize, log)
	if err := jr.Begin(ctx, cfg.Session.InitialScene, cfg.Session.TicksPerSecond); err != nil {
		db.Close()
		return nil, nil, err
	}

	end := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := jr.End(ctx); err != nil {
			log.Error("journal end", zap.Error(err))
		}
	}
	// fatal exits skip deferred calls
	atexit.Register(end)

	return jr, func() {
		end()
		db.Close()
	}, nil
}

func trace(log *zap.Logger, watched []*registry.Handle[model.HumanState]) {
	for _, h := range watched {
		if !h.IsBound() {
			continue
		}
		st, err := h.State()
		if err != nil {
			log.Warn("watch", zap.Stringer("handle", h), zap.Error(err))
			continue
		}
		lc, _ := h.Lifecycle()
		log.Info("watch",
			zap.Stringer("object", h.ObjectID()),
			zap.Stringer("lifecycle", lc),
			zap.Float32s("position", st.Position[:]),
			zap.Int32("hp", st.HP))
	}
}
