// Package main seeds pieces and transformations.
//
// Usage: seed [recipes.yaml]. Without an argument the built-in factory recipe
// is loaded. Seeding is idempotent: existing pieces are reused and an edge
// with the same (from, to, tool) is left untouched.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"shopfloor.io/mes/internal/config"
	"shopfloor.io/mes/internal/domain"
	"shopfloor.io/mes/internal/infrastructure"
	"shopfloor.io/mes/internal/pkg/logger"
	"shopfloor.io/mes/internal/repository"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	seed := builtInRecipe()
	if len(args) > 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read seed file: %w", err)
		}
		if seed, err = parseSeedFile(data); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}
	}
	if err := validateSeed(seed); err != nil {
		return err
	}

	ctx := context.Background()

	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	logger.Info("Starting recipe seeding...",
		zap.Int("pieces", len(seed.Pieces)),
		zap.Int("transformations", len(seed.Transformations)),
	)
	if err := seedRecipe(ctx, repository.NewStore(db.Pool), seed); err != nil {
		return err
	}
	logger.Info("Recipe seeding completed successfully")
	return nil
}

// seedFile is the YAML layout of a recipe file.
type seedFile struct {
	Pieces          []string        `yaml:"pieces" validate:"dive,required"`
	Transformations []transformSeed `yaml:"transformations" validate:"dive"`
}

type transformSeed struct {
	From     string `yaml:"from" validate:"required"`
	To       string `yaml:"to" validate:"required,nefield=From"`
	Tool     string `yaml:"tool" validate:"oneof=T1 T2 T3 T4 T5 T6"`
	Quantity int32  `yaml:"quantity" validate:"gte=0"`
	Cost     string `yaml:"cost" validate:"required"`
}

func parseSeedFile(data []byte) (seedFile, error) {
	var s seedFile
	if err := yaml.Unmarshal(data, &s); err != nil {
		return seedFile{}, err
	}
	return s, nil
}

func validateSeed(s seedFile) error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid seed: %w", err)
	}
	for _, t := range s.Transformations {
		if _, err := domain.ParseMoney(t.Cost); err != nil {
			return fmt.Errorf("invalid seed: transformation %s->%s: %w", t.From, t.To, err)
		}
	}
	return nil
}

// builtInRecipe is the factory's default piece graph. P1 and P2 are raw
// material; P5, P6, P7 and P9 are what clients order.
func builtInRecipe() seedFile {
	return seedFile{
		Pieces: []string{"P1", "P2", "P3", "P4", "P5", "P6", "P7", "P8", "P9"},
		Transformations: []transformSeed{
			{From: "P1", To: "P3", Tool: "T1", Quantity: 1, Cost: "$1.00"},
			{From: "P3", To: "P4", Tool: "T2", Quantity: 1, Cost: "$1.50"},
			{From: "P3", To: "P5", Tool: "T3", Quantity: 1, Cost: "$2.00"},
			{From: "P4", To: "P5", Tool: "T4", Quantity: 1, Cost: "$0.50"},
			{From: "P4", To: "P6", Tool: "T2", Quantity: 1, Cost: "$2.50"},
			{From: "P2", To: "P8", Tool: "T1", Quantity: 1, Cost: "$1.00"},
			{From: "P8", To: "P7", Tool: "T6", Quantity: 1, Cost: "$1.50"},
			{From: "P8", To: "P9", Tool: "T5", Quantity: 1, Cost: "$2.25"},
		},
	}
}

// seedRecipe writes the whole recipe in one transaction.
func seedRecipe(ctx context.Context, store *repository.Store, s seedFile) error {
	return store.InTx(ctx, func(ctx context.Context, _ pgx.Tx, q *repository.Queries) error {
		ids := make(map[string]int64, len(s.Pieces))
		pieceID := func(name string) (int64, error) {
			if id, ok := ids[name]; ok {
				return id, nil
			}
			id, err := q.UpsertPiece(ctx, name)
			if err != nil {
				return 0, err
			}
			ids[name] = id
			return id, nil
		}

		for _, name := range s.Pieces {
			if _, err := pieceID(name); err != nil {
				return err
			}
		}

		for _, t := range s.Transformations {
			from, err := pieceID(t.From)
			if err != nil {
				return err
			}
			to, err := pieceID(t.To)
			if err != nil {
				return err
			}
			cost, err := domain.ParseMoney(t.Cost)
			if err != nil {
				return err
			}
			quantity := t.Quantity
			if quantity == 0 {
				quantity = 1
			}

			inserted, err := q.InsertTransformation(ctx, repository.InsertTransformationParams{
				FromPiece: from,
				ToPiece:   to,
				Tool:      domain.ParseTool(t.Tool),
				Quantity:  quantity,
				Cost:      cost,
			})
			if err != nil {
				return err
			}
			if inserted == 0 {
				logger.Info("Transformation already exists, skipping",
					zap.String("from", t.From), zap.String("to", t.To), zap.String("tool", t.Tool))
				continue
			}
			logger.Info("Seeded transformation",
				zap.String("from", t.From), zap.String("to", t.To),
				zap.String("tool", t.Tool), zap.Int64("cost", cost))
		}
		return nil
	})
}
