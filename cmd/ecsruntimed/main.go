package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ashgrove/ecsruntime/internal/corelog"
	"github.com/ashgrove/ecsruntime/internal/ecs"
	"github.com/ashgrove/ecsruntime/internal/runtimeconfig"
	"github.com/ashgrove/ecsruntime/internal/snapshotstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(worldID uuid.UUID) {
	fmt.Println()
	fmt.Println("  ┌───────────────────────────────────────────┐")
	fmt.Println("  │             ecsruntimed  v0.1.0            │")
	fmt.Println("  └───────────────────────────────────────────┘")
	fmt.Println()
	fmt.Printf("  world: %s\n\n", worldID)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  ── %s %s\n", title, strings.Repeat("─", lineLen))
}

func printOK(msg string) {
	fmt.Printf("  [ok] %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  [>] %s\n", msg)
}

// ── Demo component/system registration ─────────────────────────────
//
// These are the runtime's own smoke-test fixtures, not gameplay: a Position
// component advanced each tick by Velocity, snapshotted to Postgres on a
// fixed interval.

var (
	positionSchema *ecs.Schema
	velocitySchema *ecs.Schema
	moveQuery      = ecs.DefineQuery("Position", "Velocity")
)

type movementSystem struct{}

func (movementSystem) Depth() int { return 0 }

func (movementSystem) Run(w *ecs.World, eid ecs.Entity) {
	pos := w.View(positionSchema, eid)
	vel := w.View(velocitySchema, eid)
	x, _ := pos.Get("x")
	y, _ := pos.Get("y")
	vx, _ := vel.Get("x")
	vy, _ := vel.Get("y")
	pos.Set("x", x.(float64)+vx.(float64))
	pos.Set("y", y.(float64)+vy.(float64))
}

// registerDemoComponents builds and registers the Position/Velocity
// schemas and the movement system ahead of the first NewWorld call.
func registerDemoComponents() error {
	var err error
	positionSchema, err = ecs.NewComponentBuilder("Position").
		Field("x", ecs.ElemF64, 0.0).
		Field("y", ecs.ElemF64, 0.0).
		Build()
	if err != nil {
		return fmt.Errorf("register Position: %w", err)
	}
	velocitySchema, err = ecs.NewComponentBuilder("Velocity").
		Field("x", ecs.ElemF64, 0.0).
		Field("y", ecs.ElemF64, 0.0).
		Build()
	if err != nil {
		return fmt.Errorf("register Velocity: %w", err)
	}
	ecs.DefineSystem([]string{"Position", "Velocity"}, 0, func() ecs.System {
		return movementSystem{}
	})
	return nil
}

// ── Main daemon logic ───────────────────────────────────────────────

func run() error {
	cfgPath := "config/ecsruntimed.toml"
	if p := os.Getenv("ECSRUNTIMED_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := runtimeconfig.Load(cfgPath)
	if err != nil {
		cfg = runtimeconfig.Defaults()
	}

	log := corelog.New(corelog.Level(cfg.Logging.Level))
	defer log.Sync()

	if err := registerDemoComponents(); err != nil {
		return err
	}

	printSection("world")
	w := ecs.NewWorld(cfg.World.DefaultSize, log)
	printBanner(w.ID)
	printOK(fmt.Sprintf("allocated %d entity slots", cfg.World.DefaultSize))

	for i := 0; i < 4; i++ {
		eid, err := w.AddEntity()
		if err != nil {
			return fmt.Errorf("seed entity: %w", err)
		}
		if err := w.AddComponent(positionSchema, eid, map[string]any{"x": float64(i), "y": 0.0}, true); err != nil {
			return fmt.Errorf("seed position: %w", err)
		}
		if err := w.AddComponent(velocitySchema, eid, map[string]any{"x": 1.0, "y": 0.5}, true); err != nil {
			return fmt.Errorf("seed velocity: %w", err)
		}
	}
	printOK(fmt.Sprintf("seeded %d moving entities", len(moveQuery.Entities(w))))
	fmt.Println()

	var repo *snapshotstore.Repo
	if dsn := os.Getenv("ECSRUNTIMED_DSN"); dsn != "" {
		printSection("snapshot store")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := snapshotstore.NewDB(ctx, snapshotstore.DBConfig{DSN: dsn}, log)
		cancel()
		if err != nil {
			return fmt.Errorf("snapshot db: %w", err)
		}
		defer db.Close()
		printOK("connected")

		ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
		err = snapshotstore.RunMigrations(ctx, db.Pool)
		cancel()
		if err != nil {
			return fmt.Errorf("snapshot migrations: %w", err)
		}
		printOK("migrations applied")
		repo = snapshotstore.NewRepo(db)
		fmt.Println()
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("stepping at %s", 200*time.Millisecond))
	fmt.Println()

	const snapshotEvery = 25 // 25 ticks * 200ms = 5s
	sinceSnapshot := 0

	for {
		select {
		case <-ticker.C:
			w.StepWorld()
			sinceSnapshot++
			if repo != nil && sinceSnapshot >= snapshotEvery {
				sinceSnapshot = 0
				saveSnapshot(w, repo, log)
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			if repo != nil {
				saveSnapshot(w, repo, log)
			}
			w.FreeWorld()
			log.Info("world stopped")
			return nil
		}
	}
}

func saveSnapshot(w *ecs.World, repo *snapshotstore.Repo, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	buf := ecs.SerializeFull(w)
	if err := repo.Save(ctx, w.ID, w.Frame(), uint8(0), buf); err != nil {
		log.Error("snapshot save failed", zap.Error(err))
	}
}
