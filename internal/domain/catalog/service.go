// Package catalog holds the canonical vocabulary of the system: brand/model
// aliases, fuel/gearbox/body enums, regions and daily FX rates.
package catalog

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/catalog/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/catalog/seed"
	pipelineent "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

// fuzzyMinLen guards the edit-distance matcher against short tokens where
// two edits can rewrite half the word
const fuzzyMinLen = 4

var fuelMap = map[string]string{
	"petrol": pipelineent.FuelPetrol, "gasoline": pipelineent.FuelPetrol, "benzin": pipelineent.FuelPetrol,
	"бензин": pipelineent.FuelPetrol, "бензинов": pipelineent.FuelPetrol,
	"diesel": pipelineent.FuelDiesel, "дизел": pipelineent.FuelDiesel, "дизелов": pipelineent.FuelDiesel,
	"hybrid": pipelineent.FuelHybrid, "хибрид": pipelineent.FuelHybrid, "хибриден": pipelineent.FuelHybrid,
	"electric": pipelineent.FuelElectric, "електро": pipelineent.FuelElectric, "електрически": pipelineent.FuelElectric, "ev": pipelineent.FuelElectric,
	"lpg": pipelineent.FuelLPG, "газ": pipelineent.FuelLPG, "газ/бензин": pipelineent.FuelLPG,
	"cng": pipelineent.FuelCNG, "метан": pipelineent.FuelCNG,
}

var gearboxMap = map[string]string{
	"manual": pipelineent.GearboxManual, "ръчна": pipelineent.GearboxManual, "ръчни": pipelineent.GearboxManual,
	"automatic": pipelineent.GearboxAuto, "auto": pipelineent.GearboxAuto, "автоматична": pipelineent.GearboxAuto,
	"автоматик": pipelineent.GearboxAuto, "автомат": pipelineent.GearboxAuto,
	"semi-automatic": pipelineent.GearboxSemiAuto, "semi_auto": pipelineent.GearboxSemiAuto,
	"полуавтоматична": pipelineent.GearboxSemiAuto, "типтроник": pipelineent.GearboxSemiAuto,
}

var bodyMap = map[string]string{
	"sedan": "sedan", "седан": "sedan",
	"hatchback": "hatchback", "хечбек": "hatchback", "хечбэк": "hatchback",
	"estate": "estate", "wagon": "estate", "комби": "estate",
	"suv": "suv", "джип": "suv", "4x4": "suv",
	"coupe": "coupe", "купе": "coupe", "коупе": "coupe",
	"convertible": "convertible", "кабрио": "convertible", "кабриолет": "convertible",
	"van": "van", "ван": "van", "бус": "van",
	"pickup": "pickup", "пикап": "pickup",
}

// Pair is a resolved canonical brand/model
type Pair struct {
	BrandID string
	ModelID string
}

type brandIndex struct {
	brandID string
	// folded model spelling -> model id
	models map[string]string
	// folded display names, used by the fuzzy pass
	modelNames map[string]string
}

// Service resolves raw marketplace vocabulary to canonical form
type Service struct {
	brandRepo deps.BrandModelRepository
	fxRepo    deps.FxRepository
	logger    zerolog.Logger

	mu sync.RWMutex
	// folded brand spelling (name or alias) -> brand id
	brandAliases map[string]string
	brands       map[string]*brandIndex
}

// NewService creates the catalog service; call Load before first use
func NewService(brandRepo deps.BrandModelRepository, fxRepo deps.FxRepository, logger zerolog.Logger) *Service {
	return &Service{
		brandRepo:    brandRepo,
		fxRepo:       fxRepo,
		logger:       logger,
		brandAliases: make(map[string]string),
		brands:       make(map[string]*brandIndex),
	}
}

// Seed populates the alias table on first start
func (s *Service) Seed(ctx context.Context) error {
	rows, err := seed.BrandModels()
	if err != nil {
		return err
	}
	return s.brandRepo.SeedIfEmpty(ctx, rows)
}

// Load builds the in-memory match indexes from the alias table
func (s *Service) Load(ctx context.Context) error {
	rows, err := s.brandRepo.ListActive(ctx)
	if err != nil {
		return err
	}
	brandLevel, err := seed.BrandAliases()
	if err != nil {
		return err
	}

	brandAliases := make(map[string]string)
	brands := make(map[string]*brandIndex)

	for _, row := range rows {
		idx, ok := brands[row.BrandID]
		if !ok {
			idx = &brandIndex{
				brandID:    row.BrandID,
				models:     make(map[string]string),
				modelNames: make(map[string]string),
			}
			brands[row.BrandID] = idx
			for _, spelling := range brandLevel[row.BrandID] {
				brandAliases[Fold(spelling)] = row.BrandID
			}
			brandAliases[Fold(row.Brand)] = row.BrandID
			brandAliases[row.BrandID] = row.BrandID
		}

		idx.models[Fold(row.Model)] = row.ModelID
		idx.models[Fold(row.ModelID)] = row.ModelID
		idx.modelNames[Fold(row.Model)] = row.ModelID

		var aliases []string
		if row.Aliases != "" {
			if err := json.Unmarshal([]byte(row.Aliases), &aliases); err != nil {
				s.logger.Warn().Str("brand", row.Brand).Str("model", row.Model).Msg("Malformed alias list")
			}
		}
		for _, a := range aliases {
			idx.models[Fold(a)] = row.ModelID
		}
	}

	s.mu.Lock()
	s.brandAliases = brandAliases
	s.brands = brands
	s.mu.Unlock()

	s.logger.Info().Int("brands", len(brands)).Msg("Catalog loaded")
	return nil
}

// Fold lowercases and collapses the separators marketplaces disagree on
func Fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

// MatchBrand resolves a single brand spelling
func (s *Service) MatchBrand(raw string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matchBrandLocked(Fold(raw))
}

func (s *Service) matchBrandLocked(folded string) (string, bool) {
	if folded == "" {
		return "", false
	}
	if id, ok := s.brandAliases[folded]; ok {
		return id, true
	}
	// fuzzy pass
	if len(folded) >= fuzzyMinLen {
		for spelling, id := range s.brandAliases {
			if len(spelling) >= fuzzyMinLen && levenshtein(folded, spelling) <= 2 {
				return id, true
			}
		}
	}
	return "", false
}

// MatchBrandModel resolves raw brand and model spellings to canonical ids.
// Tries exact, then alias, then fuzzy per the matcher contract.
func (s *Service) MatchBrandModel(brandRaw, modelRaw string) (Pair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	brandID, ok := s.matchBrandLocked(Fold(brandRaw))
	if !ok {
		return Pair{}, false
	}
	idx := s.brands[brandID]
	if idx == nil {
		return Pair{}, false
	}

	modelFolded := Fold(modelRaw)
	if modelID, ok := idx.models[modelFolded]; ok {
		return Pair{BrandID: brandID, ModelID: modelID}, true
	}

	// fuzzy over model display names only; aliases are often short codes
	if len(modelFolded) >= fuzzyMinLen {
		for name, modelID := range idx.modelNames {
			if len(name) >= fuzzyMinLen && levenshtein(modelFolded, name) <= 2 {
				return Pair{BrandID: brandID, ModelID: modelID}, true
			}
		}
	}

	return Pair{}, false
}

// MatchModelForBrand resolves one token as a model of the given brand
func (s *Service) MatchModelForBrand(brandID, token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.brands[brandID]
	if idx == nil {
		return "", false
	}
	id, ok := idx.models[Fold(token)]
	return id, ok
}

// NormalizeFuel maps a raw fuel spelling to the canonical enum
func NormalizeFuel(raw string) string {
	if raw == "" {
		return ""
	}
	if v, ok := fuelMap[Fold(raw)]; ok {
		return v
	}
	return pipelineent.FuelOther
}

// NormalizeGearbox maps a raw gearbox spelling to the canonical enum
func NormalizeGearbox(raw string) string {
	if raw == "" {
		return ""
	}
	if v, ok := gearboxMap[Fold(raw)]; ok {
		return v
	}
	return pipelineent.GearboxOther
}

// NormalizeBody maps a raw body spelling to the canonical enum
func NormalizeBody(raw string) string {
	if raw == "" {
		return ""
	}
	if v, ok := bodyMap[Fold(raw)]; ok {
		return v
	}
	return "other"
}

// LookupFuel reports whether the token names a fuel, without the "other"
// fallback; the DSL parser uses this to leave unknown tokens as warnings
func LookupFuel(token string) (string, bool) {
	v, ok := fuelMap[Fold(token)]
	return v, ok
}

// LookupGearbox reports whether the token names a gearbox
func LookupGearbox(token string) (string, bool) {
	v, ok := gearboxMap[Fold(token)]
	return v, ok
}

// LookupBody reports whether the token names a body style
func LookupBody(token string) (string, bool) {
	v, ok := bodyMap[Fold(token)]
	return v, ok
}

// CanonicalRegion maps a city or region spelling to its canonical region
func CanonicalRegion(raw string) (string, bool) {
	v, ok := cityToRegion[Fold(raw)]
	return v, ok
}

// RegionMatches checks a listing region against an alert region, tolerating
// one level of administrative containment (city within region)
func RegionMatches(listingRegion, filterRegion string) bool {
	if listingRegion == "" || filterRegion == "" {
		return false
	}
	a, okA := CanonicalRegion(listingRegion)
	b, okB := CanonicalRegion(filterRegion)
	if !okA || !okB {
		return Fold(listingRegion) == Fold(filterRegion)
	}
	return a == b
}

// Convert converts an amount into BGN using the daily rate, rounded to two
// decimals. BGN passes through; EUR falls back to the currency-board peg
// when no daily row exists.
func (s *Service) Convert(ctx context.Context, amount float64, currency string, day time.Time) (float64, error) {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if cur == "" || cur == "BGN" || cur == "ЛВ" || cur == "ЛВ." {
		return Round2(amount), nil
	}

	rate, err := s.fxRepo.Rate(ctx, cur, day.UTC().Format("2006-01-02"))
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			if fallback, ok := staticRates[cur]; ok {
				return Round2(amount * fallback), nil
			}
			return 0, pkgerrors.NewValidationError("unknown currency " + cur)
		}
		return 0, err
	}
	return Round2(amount * rate), nil
}

// staticRates are last-resort conversion rates; EUR is the fixed peg
var staticRates = map[string]float64{
	"EUR": 1.95583,
	"USD": 1.79,
	"GBP": 2.29,
}

// Round2 rounds to two decimals, half away from zero
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// levenshtein computes edit distance; both inputs are short folded tokens
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
