package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/ristretto"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/adalundhe/roomrank/core/dataset"
	"github.com/adalundhe/roomrank/core/domain"
	"github.com/adalundhe/roomrank/core/model"
	"github.com/adalundhe/roomrank/core/synth"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNoModel indicates no trained model has been installed yet.
	ErrNoModel = errors.New("recommend: no model installed")
)

// =============================================================================
// Configuration
// =============================================================================

const (
	// DefaultTopN is the recommendation count when the caller does not ask
	// for a specific number.
	DefaultTopN = 5

	// DefaultWorkers bounds concurrent per-hotel scoring.
	DefaultWorkers = 4

	defaultResponseCacheSize  = 256
	defaultScoreCacheCounters = 1e5
	defaultScoreCacheMaxCost  = 1e6
)

// Config tunes the engine's inference path.
type Config struct {
	Workers           int
	ResponseCacheSize int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Workers:           DefaultWorkers,
		ResponseCacheSize: defaultResponseCacheSize,
	}
}

// =============================================================================
// Engine
// =============================================================================

// installedModel pairs a model with the version it was installed under.
// Score-cache keys derive from the pair, so a request that captured the
// pair at its start keeps writing entries under the version that actually
// produced them, even if a retrain swaps the model mid-request.
type installedModel struct {
	m       *model.RatingModel
	version uint64
}

// Engine is the inference front of the recommendation system. The model is
// held behind an atomic pointer so a freshly trained checkpoint can replace
// the old parameters without in-flight requests observing a partial update;
// dataset snapshots come from the store under the same discipline.
type Engine struct {
	store  *dataset.Store
	cfg    Config
	logger *slog.Logger

	current  atomic.Pointer[installedModel]
	installs atomic.Uint64

	// scoreCache holds raw model outputs per (user, hotel) pair across
	// requests; keys carry snapshot and model versions so stale entries
	// simply stop being addressed.
	scoreCache *ristretto.Cache

	// responses caches full ranked responses per request shape.
	responses *lru.Cache[string, []domain.Recommendation]
}

// New builds an engine over the dataset store. No model is installed yet;
// Recommend fails with ErrNoModel until SetModel or Retrain runs.
func New(store *dataset.Store, cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.ResponseCacheSize <= 0 {
		cfg.ResponseCacheSize = defaultResponseCacheSize
	}

	scoreCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: defaultScoreCacheCounters,
		MaxCost:     defaultScoreCacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("recommend: score cache: %w", err)
	}

	responses, err := lru.New[string, []domain.Recommendation](cfg.ResponseCacheSize)
	if err != nil {
		return nil, fmt.Errorf("recommend: response cache: %w", err)
	}

	return &Engine{
		store:      store,
		cfg:        cfg,
		logger:     logger,
		scoreCache: scoreCache,
		responses:  responses,
	}, nil
}

// SetModel atomically installs a model and invalidates cached responses.
func (e *Engine) SetModel(m *model.RatingModel) {
	e.current.Store(&installedModel{m: m, version: e.installs.Add(1)})
	e.responses.Purge()
}

// Model returns the installed model, or nil.
func (e *Engine) Model() *model.RatingModel {
	if cur := e.current.Load(); cur != nil {
		return cur.m
	}
	return nil
}

// =============================================================================
// Inference
// =============================================================================

// Recommend returns the top-N rooms for a user, sorted descending by
// adjusted rating. An unknown user yields an empty list, not an error.
// With debug set, each recommendation carries its adjustment trace.
func (e *Engine) Recommend(ctx context.Context, userID, topN int, debug bool) ([]domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	snap, err := e.store.Snapshot()
	if err != nil {
		return nil, err
	}
	cur := e.current.Load()
	if cur == nil {
		return nil, ErrNoModel
	}

	user, ok := snap.UserByID(userID)
	if !ok {
		return []domain.Recommendation{}, nil
	}
	userIdx, _ := snap.UserIndex(userID)

	key := fmt.Sprintf("u%d:n%d:d%t:s%d:m%d", userID, topN, debug, snap.Version, cur.version)
	if cached, hit := e.responses.Get(key); hit {
		return cloneRecommendations(cached), nil
	}

	baseScores := e.hotelBaseScores(snap, cur, userIdx)

	var candidates []domain.Recommendation
	for hi := range snap.Hotels {
		hotel := &snap.Hotels[hi]
		if len(hotel.Rooms) == 0 {
			continue
		}
		base := baseScores[hi]

		for ri := range hotel.Rooms {
			room := &hotel.Rooms[ri]

			// Hard filters: capacity and availability are constraints,
			// never soft penalties.
			if room.Capacity < user.RequiredCapacity {
				continue
			}
			if !room.Available() {
				continue
			}

			var trace []string
			score := base

			factor, line := budgetMultiplier(room.PricePerNight, user.PreferredBudget)
			score *= factor
			trace = append(trace, line)

			factor, line = typeMultiplier(room.Type, user.PreferredRoomType)
			score *= factor
			trace = append(trace, line)

			if factor, line, applies := amenityMultiplier(room, user.PreferredAmenities); applies {
				score *= factor
				trace = append(trace, line)
			}

			rec := domain.Recommendation{
				HotelID:         hotel.ID,
				HotelName:       hotel.Name,
				RoomID:          room.ID,
				RoomName:        room.Name,
				RoomType:        room.Type,
				Price:           room.PricePerNight,
				City:            hotel.City,
				Address:         hotel.Address,
				Capacity:        room.Capacity,
				PredictedRating: clampRating(score),
				BaseScore:       base,
				Amenities: domain.AmenityFlags{
					Wifi:    room.HasWifi,
					TV:      room.HasTV,
					Balcony: room.HasBalcony,
					Minibar: room.HasMinibar,
				},
			}
			if debug {
				rec.Adjustments = trace
			}
			candidates = append(candidates, rec)
		}
	}

	// Stable sort keeps insertion order for equal scores, so repeated calls
	// against the same snapshot produce identical output.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].PredictedRating > candidates[j].PredictedRating
	})
	if len(candidates) > topN {
		candidates = candidates[:topN]
	}

	for i := range candidates {
		candidates[i].Reason = matchReason(&candidates[i], user)
	}

	e.responses.Add(key, candidates)
	return cloneRecommendations(candidates), nil
}

// cloneRecommendations copies the ranked slice so callers can reorder or
// rewrite their result without corrupting the cached entry behind it.
func cloneRecommendations(recs []domain.Recommendation) []domain.Recommendation {
	out := make([]domain.Recommendation, len(recs))
	copy(out, recs)
	return out
}

// BaseScore exposes the raw model output for one (user, hotel) pair. Used
// by the explanation subsystem for transparency; unknown ids report false.
func (e *Engine) BaseScore(userID, hotelID int) (float64, bool) {
	snap, err := e.store.Snapshot()
	if err != nil {
		return 0, false
	}
	cur := e.current.Load()
	if cur == nil {
		return 0, false
	}
	userIdx, ok := snap.UserIndex(userID)
	if !ok {
		return 0, false
	}
	hotelIdx, ok := snap.HotelIndex(hotelID)
	if !ok {
		return 0, false
	}
	return e.cachedScore(snap, cur, userIdx, hotelIdx), true
}

// hotelBaseScores computes the model score per hotel, shared across that
// hotel's rooms. Hotels are scored concurrently; results land in a slice
// indexed by hotel position, so the ranking pass stays deterministic.
func (e *Engine) hotelBaseScores(snap *dataset.Snapshot, cur *installedModel, userIdx int) []float64 {
	scores := make([]float64, len(snap.Hotels))

	sem := make(chan struct{}, e.cfg.Workers)
	var wg sync.WaitGroup

	for hi := range snap.Hotels {
		if len(snap.Hotels[hi].Rooms) == 0 {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(hi int) {
			defer wg.Done()
			defer func() { <-sem }()
			scores[hi] = e.cachedScore(snap, cur, userIdx, hi)
		}(hi)
	}
	wg.Wait()

	return scores
}

// cachedScore consults the cross-request score cache before running the
// model. The cache is advisory; a miss after Set is only a cold entry.
// The key uses the version captured alongside the model, never the live
// one, so a swap landing mid-request cannot file old-model scores under
// the new model's version.
func (e *Engine) cachedScore(snap *dataset.Snapshot, cur *installedModel, userIdx, hotelIdx int) float64 {
	key := fmt.Sprintf("s%d:m%d:u%d:h%d", snap.Version, cur.version, userIdx, hotelIdx)
	if v, hit := e.scoreCache.Get(key); hit {
		if score, isFloat := v.(float64); isFloat {
			return score
		}
	}

	score := cur.m.Score(userIdx, hotelIdx, snap.UserFeatures[userIdx], snap.HotelFeatures[hotelIdx])
	e.scoreCache.Set(key, score, 1)
	return score
}

// matchReason assembles the one-line justification attached to a ranked
// recommendation. The full room-by-room breakdown lives in the explain
// package.
func matchReason(rec *domain.Recommendation, user *domain.User) string {
	var reasons []string

	if user.PreferredBudget.Contains(rec.Price) {
		reasons = append(reasons, "within budget")
	}
	if rec.RoomType == user.PreferredRoomType {
		reasons = append(reasons, "preferred room type")
	}

	var wanted []string
	for _, a := range user.PreferredAmenities {
		has := false
		switch a {
		case domain.AmenityWiFi:
			has = rec.Amenities.Wifi
		case domain.AmenityTV:
			has = rec.Amenities.TV
		case domain.AmenityBalcony:
			has = rec.Amenities.Balcony
		case domain.AmenityMinibar:
			has = rec.Amenities.Minibar
		}
		if has {
			wanted = append(wanted, string(a))
		}
	}
	if len(wanted) > 0 {
		reasons = append(reasons, "wanted amenities: "+strings.Join(wanted, ", "))
	}

	if len(reasons) == 0 {
		return "Alternative option"
	}
	return "This room suits you because: " + strings.Join(reasons, ", ")
}

// =============================================================================
// Training pipeline
// =============================================================================

// RetrainConfig bundles everything a full retrain needs.
type RetrainConfig struct {
	Synth        synth.Config
	Trainer      model.TrainerConfig
	Model        model.Options
	Recorder     model.RunRecorder
	EmbeddingDim int
	HiddenWidths []int
	TestFraction float64
	ValFraction  float64
}

// Retrain synthesizes interactions against the current snapshot, trains a
// fresh model, and atomically installs the best checkpoint. The previous
// model keeps serving until the swap.
func (e *Engine) Retrain(ctx context.Context, cfg RetrainConfig) (*model.Result, error) {
	snap, err := e.store.Snapshot()
	if err != nil {
		return nil, err
	}
	if snap.NumUsers() == 0 || snap.NumHotels() == 0 {
		return nil, fmt.Errorf("recommend: cannot train on empty dataset (%d users, %d hotels)", snap.NumUsers(), snap.NumHotels())
	}

	interactions := synth.New(cfg.Synth).Synthesize(snap)
	samples := BuildSamples(interactions, snap)

	dims := model.Dims{
		NumUsers:        snap.NumUsers(),
		NumHotels:       snap.NumHotels(),
		UserFeatureDim:  len(snap.UserFeatures[0]),
		HotelFeatureDim: len(snap.HotelFeatures[0]),
		EmbeddingDim:    cfg.EmbeddingDim,
		HiddenWidths:    cfg.HiddenWidths,
	}

	fresh, err := model.New(dims, cfg.Model, cfg.Trainer.Seed)
	if err != nil {
		return nil, err
	}

	testFrac := cfg.TestFraction
	if testFrac <= 0 {
		testFrac = 0.2
	}
	valFrac := cfg.ValFraction
	if valFrac <= 0 {
		valFrac = 0.1
	}
	train, val, test := model.Split(samples, testFrac, valFrac, cfg.Trainer.Seed)
	ds := &model.Dataset{
		Train:         train,
		Val:           val,
		Test:          test,
		UserFeatures:  snap.UserFeatures,
		HotelFeatures: snap.HotelFeatures,
	}

	result, err := model.NewTrainer(fresh, cfg.Trainer, e.logger, cfg.Recorder).Train(ctx, ds)
	if err != nil {
		return nil, err
	}

	e.SetModel(fresh)
	e.logger.Info("model swapped", "run_id", result.RunID, "best_val_mse", result.BestValMSE)
	return result, nil
}

// EvaluateHoldout rebuilds the seeded synthetic split and scores the
// installed model against the held-out test portion. The split is a pure
// function of the snapshot and seed, so it matches the one used in
// training.
func (e *Engine) EvaluateHoldout(ctx context.Context, cfg RetrainConfig, tolerance float64) (model.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return model.Metrics{}, err
	}

	snap, err := e.store.Snapshot()
	if err != nil {
		return model.Metrics{}, err
	}
	m := e.Model()
	if m == nil {
		return model.Metrics{}, ErrNoModel
	}

	interactions := synth.New(cfg.Synth).Synthesize(snap)
	samples := BuildSamples(interactions, snap)

	testFrac := cfg.TestFraction
	if testFrac <= 0 {
		testFrac = 0.2
	}
	valFrac := cfg.ValFraction
	if valFrac <= 0 {
		valFrac = 0.1
	}
	_, _, test := model.Split(samples, testFrac, valFrac, cfg.Trainer.Seed)

	ds := &model.Dataset{
		UserFeatures:  snap.UserFeatures,
		HotelFeatures: snap.HotelFeatures,
	}
	return model.Evaluate(m, test, ds, tolerance), nil
}

// BuildSamples resolves interaction ids to feature positions. Interactions
// referencing unknown ids are dropped rather than failing the run.
func BuildSamples(interactions []domain.Interaction, snap *dataset.Snapshot) []model.Sample {
	samples := make([]model.Sample, 0, len(interactions))
	for _, it := range interactions {
		userIdx, ok := snap.UserIndex(it.UserID)
		if !ok {
			continue
		}
		hotelIdx, ok := snap.HotelIndex(it.HotelID)
		if !ok {
			continue
		}
		samples = append(samples, model.Sample{
			UserIdx:  userIdx,
			HotelIdx: hotelIdx,
			Rating:   it.Rating,
		})
	}
	return samples
}
