// Command seed-db loads the service catalog, brand list, reward catalog, and
// a staff API key into the database. Safe to re-run: everything is upserted.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optiontech/servicedesk/internal/repository"
)

type brandSeed struct {
	id         string
	name       string
	difficulty string
}

type serviceSeed struct {
	id           string
	name         string
	slug         string
	category     string
	description  string
	priceMin     string
	priceMax     string
	difficulty   string
	duration     time.Duration
	warrantyDays int
}

type rewardSeed struct {
	id             string
	name           string
	description    string
	kind           string
	value          string
	pointsRequired int
	minTier        string
	minOrderValue  string
	maxRedemptions int
}

var brands = []brandSeed{
	{"asus", "ASUS", "easy"},
	{"acer", "Acer", "easy"},
	{"lenovo", "Lenovo", "easy"},
	{"hp", "HP", "medium"},
	{"dell", "Dell", "medium"},
	{"msi", "MSI", "hard"},
	{"microsoft", "Microsoft Surface", "expert"},
	{"apple", "Apple MacBook", "expert"},
}

var services = []serviceSeed{
	{
		id: "screen-replacement", name: "Screen Replacement", slug: "screen-replacement",
		category: "hardware", description: "Replace a cracked or dead LCD/OLED panel",
		priceMin: "650000", priceMax: "2500000", difficulty: "medium",
		duration: 24 * time.Hour, warrantyDays: 90,
	},
	{
		id: "keyboard-replacement", name: "Keyboard Replacement", slug: "keyboard-replacement",
		category: "hardware", description: "Replace a worn or liquid-damaged keyboard",
		priceMin: "250000", priceMax: "850000", difficulty: "easy",
		duration: 4 * time.Hour, warrantyDays: 90,
	},
	{
		id: "battery-replacement", name: "Battery Replacement", slug: "battery-replacement",
		category: "hardware", description: "Replace a swollen or degraded battery",
		priceMin: "350000", priceMax: "1200000", difficulty: "easy",
		duration: 3 * time.Hour, warrantyDays: 180,
	},
	{
		id: "motherboard-repair", name: "Motherboard Repair", slug: "motherboard-repair",
		category: "hardware", description: "Component-level logic board diagnosis and repair",
		priceMin: "500000", priceMax: "3500000", difficulty: "expert",
		duration: 72 * time.Hour, warrantyDays: 30,
	},
	{
		id: "data-recovery", name: "Data Recovery", slug: "data-recovery",
		category: "software", description: "Recover files from a failing drive or deleted partition",
		priceMin: "400000", priceMax: "5000000", difficulty: "hard",
		duration: 48 * time.Hour, warrantyDays: 0,
	},
	{
		id: "os-reinstall", name: "OS Installation", slug: "os-reinstall",
		category: "software", description: "Fresh operating system install with drivers",
		priceMin: "150000", priceMax: "300000", difficulty: "easy",
		duration: 2 * time.Hour, warrantyDays: 14,
	},
	{
		id: "thermal-service", name: "Thermal Service", slug: "thermal-service",
		category: "maintenance", description: "Full teardown, fan cleaning, and thermal paste renewal",
		priceMin: "200000", priceMax: "450000", difficulty: "medium",
		duration: 4 * time.Hour, warrantyDays: 30,
	},
}

var rewards = []rewardSeed{
	{
		id: "discount-5", name: "5% Service Discount", description: "5% off your next repair",
		kind: "percentage", value: "5", pointsRequired: 500, minTier: "bronze",
		minOrderValue: "0", maxRedemptions: 0,
	},
	{
		id: "discount-50k", name: "Rp 50.000 Off", description: "Rp 50.000 off a repair above Rp 500.000",
		kind: "fixed", value: "50000", pointsRequired: 800, minTier: "bronze",
		minOrderValue: "500000", maxRedemptions: 0,
	},
	{
		id: "free-thermal", name: "Free Thermal Service", description: "One free thermal service",
		kind: "free_service", value: "0", pointsRequired: 2500, minTier: "silver",
		minOrderValue: "0", maxRedemptions: 100,
	},
	{
		id: "laptop-sleeve", name: "Laptop Sleeve", description: "Branded 14-inch laptop sleeve",
		kind: "gift", value: "0", pointsRequired: 4000, minTier: "gold",
		minOrderValue: "0", maxRedemptions: 50,
	},
}

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "staff API key to seed (or OPTECH_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or OPTECH_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPTECH_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or OPTECH_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("OPTECH_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedBrands(ctx, pool); err != nil {
		return errors.Wrap(err, "seed brands")
	}
	if err := seedServices(ctx, pool); err != nil {
		return errors.Wrap(err, "seed services")
	}
	if err := seedRewards(ctx, pool); err != nil {
		return errors.Wrap(err, "seed rewards")
	}
	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

const upsertBrandSQL = `INSERT INTO brands (id, name, service_difficulty)
	VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name,
		service_difficulty = EXCLUDED.service_difficulty`

func seedBrands(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("upserting brands", slog.Int("count", len(brands)))

	for _, b := range brands {
		if _, err := pool.Exec(ctx, upsertBrandSQL, b.id, b.name, b.difficulty); err != nil {
			return errors.Wrapf(err, "upsert brand %s", b.id)
		}
		slog.Info("upserted brand", slog.String("id", b.id), slog.String("difficulty", b.difficulty))
	}
	return nil
}

const upsertServiceSQL = `INSERT INTO services (id, name, slug, category, short_description,
	base_price_min, base_price_max, difficulty, estimated_duration, warranty_days, active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, slug = EXCLUDED.slug,
		category = EXCLUDED.category, short_description = EXCLUDED.short_description,
		base_price_min = EXCLUDED.base_price_min, base_price_max = EXCLUDED.base_price_max,
		difficulty = EXCLUDED.difficulty, estimated_duration = EXCLUDED.estimated_duration,
		warranty_days = EXCLUDED.warranty_days, active = TRUE`

func seedServices(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("upserting services", slog.Int("count", len(services)))

	for _, s := range services {
		if _, err := pool.Exec(ctx, upsertServiceSQL,
			s.id, s.name, s.slug, s.category, s.description,
			s.priceMin, s.priceMax, s.difficulty, int64(s.duration), s.warrantyDays,
		); err != nil {
			return errors.Wrapf(err, "upsert service %s", s.id)
		}
		slog.Info("upserted service", slog.String("id", s.id), slog.String("name", s.name))
	}
	return nil
}

const upsertRewardSQL = `INSERT INTO rewards (id, name, description, kind, value,
	points_required, min_tier, min_order_value, max_redemptions, active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
		kind = EXCLUDED.kind, value = EXCLUDED.value,
		points_required = EXCLUDED.points_required, min_tier = EXCLUDED.min_tier,
		min_order_value = EXCLUDED.min_order_value,
		max_redemptions = EXCLUDED.max_redemptions, active = TRUE`

func seedRewards(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("upserting rewards", slog.Int("count", len(rewards)))

	for _, r := range rewards {
		if _, err := pool.Exec(ctx, upsertRewardSQL,
			r.id, r.name, r.description, r.kind, r.value,
			r.pointsRequired, r.minTier, r.minOrderValue, r.maxRedemptions,
		); err != nil {
			return errors.Wrapf(err, "upsert reward %s", r.id)
		}
		slog.Info("upserted reward", slog.String("id", r.id), slog.Int("points", r.pointsRequired))
	}
	return nil
}

const upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, scopes, active)
	VALUES ($1, $2, $3, $4, TRUE)
	ON CONFLICT (id) DO UPDATE SET key_hash = EXCLUDED.key_hash,
		name = EXCLUDED.name, scopes = EXCLUDED.scopes, active = TRUE`

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding default staff API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	scopes := []string{"manage_orders", "manage_ledger"}
	if _, err := pool.Exec(ctx, upsertAPIKeySQL, "workshop", keyHash, "Workshop staff key", scopes); err != nil {
		return errors.Wrap(err, "upsert staff API key")
	}

	slog.Info("upserted API key", slog.String("id", "workshop"))
	return nil
}
