package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"time"

	"github.com/nekogravitycat/seat-booking-backend/internal/config"
	"github.com/nekogravitycat/seat-booking-backend/internal/db"
	"github.com/nekogravitycat/seat-booking-backend/internal/pkg/logger"
	"github.com/nekogravitycat/seat-booking-backend/internal/resource"
	"github.com/nekogravitycat/seat-booking-backend/internal/slot"
)

func main() {
	seed := flag.Bool("seed", false, "insert sample resources with slots for the next day")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	lg := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "seat-booking-migrate"})
	slog.SetDefault(lg.Logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		lg.Fatal("failed to connect to db", "error", err)
	}
	defer pool.Close()

	if err := db.ApplySchema(ctx, pool); err != nil {
		lg.Fatal("failed to apply schema", "error", err)
	}
	lg.Info("schema applied")

	if *seed {
		resources := resource.NewService(resource.NewPgxRepository(pool))
		slots := slot.NewService(slot.NewPgxRepository(pool), resources)
		if err := seedCatalog(ctx, resources, slots); err != nil {
			lg.Fatal("failed to seed catalog", "error", err)
		}
	}
}

type sample struct {
	name     string
	kind     string
	capacity int
	metadata map[string]any
}

var samples = []sample{
	{name: "Main Hall", kind: "room", capacity: 40, metadata: map[string]any{"floor": 1}},
	{name: "Court A", kind: "court", capacity: 4, metadata: map[string]any{"surface": "hard"}},
	{name: "Lane Pool", kind: "pool", capacity: 8, metadata: map[string]any{"lanes": 8}},
}

// slotCreator is the part of slot.Service the seed needs.
type slotCreator interface {
	Create(ctx context.Context, req slot.CreateRequest) (*slot.SlotWithSeats, error)
}

// seedCatalog creates the sample resources and four one-hour slots for each, starting tomorrow at 09:00 UTC.
// Resources whose name already exists for their type are left alone, so seeding twice is a no-op.
func seedCatalog(ctx context.Context, resources resource.Service, slots slotCreator) error {
	day := time.Now().UTC().Truncate(24 * time.Hour).Add(24*time.Hour + 9*time.Hour)

	for _, s := range samples {
		exists, err := resourceExists(ctx, resources, s.kind, s.name)
		if err != nil {
			return err
		}
		if exists {
			slog.Info("sample resource already present", "name", s.name)
			continue
		}

		res, err := resources.Create(ctx, resource.CreateRequest{Name: s.name, Type: s.kind, Metadata: s.metadata})
		if err != nil {
			return err
		}
		for i := 0; i < 4; i++ {
			start := day.Add(time.Duration(i) * time.Hour)
			if _, err := slots.Create(ctx, slot.CreateRequest{
				ResourceID: res.ID,
				StartTime:  start,
				EndTime:    start.Add(time.Hour),
				Capacity:   s.capacity,
			}); err != nil {
				return err
			}
		}
		slog.Info("seeded resource", "resource_id", res.ID, "name", res.Name)
	}
	return nil
}

// resourceExists pages through resources of kind looking for name.
func resourceExists(ctx context.Context, resources resource.Service, kind, name string) (bool, error) {
	const pageSize = 100
	for page := 1; ; page++ {
		items, total, err := resources.List(ctx, resource.Filter{Type: kind, Page: page, PageSize: pageSize})
		if err != nil {
			return false, err
		}
		for _, r := range items {
			if r.Name == name {
				return true, nil
			}
		}
		if len(items) == 0 || page*pageSize >= total {
			return false, nil
		}
	}
}
