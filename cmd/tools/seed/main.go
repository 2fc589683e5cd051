// Command seed fills a development database with synthetic voting traffic.
// Each item gets a hidden quality; pairwise winners, slider scores and
// favorites are drawn from it, so the published ranking should converge
// toward the hidden order.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openmuse/aesthete/internal/core/domain"
	"github.com/openmuse/aesthete/internal/ingest"
	db "github.com/openmuse/aesthete/internal/storage"
)

const (
	defaultRaters = 20
	defaultItems  = 100
	defaultVotes  = 2000

	pairwiseShare = 0.7
	ratingShare   = 0.9
	boostedShare  = 0.1

	localRatingStep = 16.0
	errFmt          = "%v\n"
)

var (
	errDSNRequired   = errors.New("POSTGRES_DSN is required (or provide -dsn)")
	errCountsMustPos = errors.New("raters and votes must be positive, items at least 2")
)

type seedConfig struct {
	dsn    string
	raters int
	items  int
	votes  int
}

// item is one synthetic item: a hidden quality driving vote outcomes and a
// local rating tracker standing in for the matchmaker's served snapshots.
type item struct {
	id      string
	quality float64
	rating  float64
}

func main() {
	cfg := parseFlags()

	if err := validateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, errFmt, err)
		os.Exit(1)
	}

	if err := runSeed(cfg); err != nil {
		fmt.Fprintf(os.Stderr, errFmt, err)
		os.Exit(1)
	}
}

func parseFlags() seedConfig {
	cfg := seedConfig{}

	flag.StringVar(&cfg.dsn, "dsn", os.Getenv("POSTGRES_DSN"), "Postgres DSN")
	flag.IntVar(&cfg.raters, "raters", defaultRaters, "Number of synthetic raters")
	flag.IntVar(&cfg.items, "items", defaultItems, "Number of synthetic items")
	flag.IntVar(&cfg.votes, "votes", defaultVotes, "Number of votes to submit")

	flag.Parse()

	return cfg
}

func validateConfig(cfg seedConfig) error {
	if cfg.dsn == "" {
		return errDSNRequired
	}

	if cfg.raters <= 0 || cfg.items < 2 || cfg.votes <= 0 {
		return errCountsMustPos
	}

	return nil
}

func runSeed(cfg seedConfig) error {
	ctx := context.Background()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	database, err := db.New(ctx, cfg.dsn, &logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	recorder := ingest.NewRecorder(database, &logger)

	raters := make([]string, cfg.raters)
	for i := range raters {
		raters[i] = uuid.NewString()
	}

	items := make([]*item, cfg.items)
	for i := range items {
		items[i] = &item{
			id:      uuid.NewString(),
			quality: rand.Float64() * 100,
			rating:  1200,
		}
	}

	counts := map[string]int{}

	for i := 0; i < cfg.votes; i++ {
		raterID := raters[rand.IntN(len(raters))]

		switch roll := rand.Float64(); {
		case roll < pairwiseShare:
			if err := submitPairwise(ctx, recorder, raterID, items); err != nil {
				return err
			}

			counts["pairwise"]++
		case roll < ratingShare:
			if err := submitRating(ctx, recorder, raterID, items); err != nil {
				return err
			}

			counts["rating"]++
		default:
			if err := submitFavorite(ctx, recorder, raterID, items); err != nil {
				return err
			}

			counts["favorite"]++
		}
	}

	logger.Info().
		Int("pairwise", counts["pairwise"]).
		Int("rating", counts["rating"]).
		Int("favorite", counts["favorite"]).
		Msg("Seeded synthetic votes")

	return nil
}

func submitPairwise(ctx context.Context, recorder *ingest.Recorder, raterID string, items []*item) error {
	a, b := pickPair(items)

	winner := a
	if rand.Float64() >= winProbability(a.quality, b.quality) {
		winner = b
	}

	class := domain.WeightClassNormal
	if rand.Float64() < boostedShare {
		class = domain.WeightClassBoosted
	}

	vote := ingest.PairwiseVote{
		RaterID:     raterID,
		ItemA:       a.id,
		ItemB:       b.id,
		Winner:      winner.id,
		ItemARating: a.rating,
		ItemBRating: b.rating,
		Class:       class,
	}

	if _, err := recorder.RecordPairwise(ctx, vote); err != nil {
		return fmt.Errorf("record pairwise: %w", err)
	}

	// Track served ratings locally so later snapshots look like a live arena.
	if winner == a {
		a.rating += localRatingStep
		b.rating -= localRatingStep
	} else {
		b.rating += localRatingStep
		a.rating -= localRatingStep
	}

	return nil
}

func submitRating(ctx context.Context, recorder *ingest.Recorder, raterID string, items []*item) error {
	it := items[rand.IntN(len(items))]
	raw := clampScore(it.quality + rand.NormFloat64()*15)

	vote := ingest.RatingVote{RaterID: raterID, ItemID: it.id, RawScore: raw}

	if _, err := recorder.RecordRating(ctx, vote); err != nil {
		return fmt.Errorf("record rating: %w", err)
	}

	return nil
}

func submitFavorite(ctx context.Context, recorder *ingest.Recorder, raterID string, items []*item) error {
	// Favorites skew toward high-quality items.
	it := items[rand.IntN(len(items))]
	other := items[rand.IntN(len(items))]

	if other.quality > it.quality {
		it = other
	}

	vote := ingest.FavoriteVote{RaterID: raterID, ItemID: it.id}

	if _, err := recorder.RecordFavorite(ctx, vote); err != nil {
		return fmt.Errorf("record favorite: %w", err)
	}

	return nil
}

func pickPair(items []*item) (*item, *item) {
	a := items[rand.IntN(len(items))]

	b := items[rand.IntN(len(items))]
	for b == a {
		b = items[rand.IntN(len(items))]
	}

	return a, b
}

// winProbability maps a quality gap onto a win chance through a logistic
// curve; a 20-point gap gives roughly a 75% chance.
func winProbability(qualityA, qualityB float64) float64 {
	return 1 / (1 + math.Pow(10, (qualityB-qualityA)/40))
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 100 {
		return 100
	}

	return v
}
