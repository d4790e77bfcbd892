// Package dsl parses the human-written alert query language.
//
// Example queries:
//
//	BMW X5 diesel <25000 2018+ automatic
//	Audi A4 бензин София 2015-2020 <150000км
//	Mercedes C-Class >180hp sedan
package dsl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/catalog"
)

// Filters is the normalized form of a query: a fixed record of optional
// fields. Empty string / nil means "no constraint".
type Filters struct {
	BrandID    string `json:"brand_id,omitempty"`
	ModelID    string `json:"model_id,omitempty"`
	Fuel       string `json:"fuel,omitempty"`
	Gearbox    string `json:"gearbox,omitempty"`
	Body       string `json:"body,omitempty"`
	Region     string `json:"region,omitempty"`
	MinYear    *int   `json:"min_year,omitempty"`
	MaxYear    *int   `json:"max_year,omitempty"`
	MinPrice   *int   `json:"min_price,omitempty"`
	MaxPrice   *int   `json:"max_price,omitempty"`
	MinMileage *int   `json:"min_mileage,omitempty"`
	MaxMileage *int   `json:"max_mileage,omitempty"`
	MinPower   *int   `json:"min_power,omitempty"`
	MaxPower   *int   `json:"max_power,omitempty"`
}

// Result carries the filters plus warnings for tokens nothing recognized
type Result struct {
	Filters  Filters
	Warnings []string
}

var (
	priceToken   = regexp.MustCompile(`^(<=|>=|<|>)(\d+)$`)
	yearUpToken  = regexp.MustCompile(`^(\d{4})\+$`)
	yearRngToken = regexp.MustCompile(`^(\d{4})-(\d{4})$`)
	mileageToken = regexp.MustCompile(`^(<|>)(\d+)(?:km|км|к\.м)$`)
	powerToken   = regexp.MustCompile(`^(<|>)(\d+)(?:hp|кс|к\.с\.?)$`)
)

// Parser resolves brand/model tokens against the catalog
type Parser struct {
	catalog *catalog.Service
}

// NewParser creates a DSL parser
func NewParser(catalogSvc *catalog.Service) *Parser {
	return &Parser{catalog: catalogSvc}
}

// Parse tokenizes the query and fills the filter record. Tokens may appear
// in any order; unknown tokens become warnings, never errors.
func (p *Parser) Parse(query string) Result {
	var res Result
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(query)))

	var leftover []string
	for _, token := range tokens {
		if p.parseRange(token, &res.Filters) {
			continue
		}
		if fuel, ok := catalog.LookupFuel(token); ok && res.Filters.Fuel == "" {
			res.Filters.Fuel = fuel
			continue
		}
		if gearbox, ok := catalog.LookupGearbox(token); ok && res.Filters.Gearbox == "" {
			res.Filters.Gearbox = gearbox
			continue
		}
		if body, ok := catalog.LookupBody(token); ok && res.Filters.Body == "" {
			res.Filters.Body = body
			continue
		}
		if region, ok := catalog.CanonicalRegion(token); ok && res.Filters.Region == "" {
			res.Filters.Region = region
			continue
		}
		leftover = append(leftover, token)
	}

	// brand anywhere in the query, then models greedily within that brand
	for i, token := range leftover {
		if brandID, ok := p.catalog.MatchBrand(token); ok {
			res.Filters.BrandID = brandID
			leftover[i] = ""
			break
		}
	}
	if res.Filters.BrandID != "" {
		for i, token := range leftover {
			if token == "" || res.Filters.ModelID != "" {
				continue
			}
			// try two-token model names before single tokens
			if i+1 < len(leftover) && leftover[i+1] != "" {
				if modelID, ok := p.catalog.MatchModelForBrand(res.Filters.BrandID, token+" "+leftover[i+1]); ok {
					res.Filters.ModelID = modelID
					leftover[i] = ""
					leftover[i+1] = ""
					continue
				}
			}
			if modelID, ok := p.catalog.MatchModelForBrand(res.Filters.BrandID, token); ok {
				res.Filters.ModelID = modelID
				leftover[i] = ""
			}
		}
	}
	for _, token := range leftover {
		if token != "" {
			res.Warnings = append(res.Warnings, "unrecognized token: "+token)
		}
	}

	return res
}

// parseRange recognizes price/year/mileage/power range tokens
func (p *Parser) parseRange(token string, f *Filters) bool {
	if m := mileageToken.FindStringSubmatch(token); m != nil {
		v, _ := strconv.Atoi(m[2])
		if m[1] == "<" {
			f.MaxMileage = &v
		} else {
			f.MinMileage = &v
		}
		return true
	}
	if m := powerToken.FindStringSubmatch(token); m != nil {
		v, _ := strconv.Atoi(m[2])
		if m[1] == "<" {
			f.MaxPower = &v
		} else {
			f.MinPower = &v
		}
		return true
	}
	if m := yearRngToken.FindStringSubmatch(token); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		f.MinYear = &lo
		f.MaxYear = &hi
		return true
	}
	if m := yearUpToken.FindStringSubmatch(token); m != nil {
		v, _ := strconv.Atoi(m[1])
		f.MinYear = &v
		return true
	}
	if m := priceToken.FindStringSubmatch(token); m != nil {
		v, _ := strconv.Atoi(m[2])
		switch m[1] {
		case "<", "<=":
			f.MaxPrice = &v
		case ">", ">=":
			f.MinPrice = &v
		}
		return true
	}
	return false
}

// Render writes the filters back as a canonical query. Parsing the rendered
// form reproduces the same filters, so canonicalization is a fixed point.
func Render(f Filters) string {
	var parts []string
	if f.BrandID != "" {
		parts = append(parts, f.BrandID)
	}
	if f.ModelID != "" {
		parts = append(parts, f.ModelID)
	}
	if f.Fuel != "" {
		parts = append(parts, f.Fuel)
	}
	if f.Gearbox != "" {
		parts = append(parts, f.Gearbox)
	}
	if f.Body != "" {
		parts = append(parts, f.Body)
	}
	if f.Region != "" {
		// multi-word regions render hyphenated so they stay one token
		parts = append(parts, strings.ReplaceAll(f.Region, " ", "-"))
	}
	switch {
	case f.MinYear != nil && f.MaxYear != nil:
		parts = append(parts, fmt.Sprintf("%d-%d", *f.MinYear, *f.MaxYear))
	case f.MinYear != nil:
		parts = append(parts, fmt.Sprintf("%d+", *f.MinYear))
	}
	if f.MinPrice != nil {
		parts = append(parts, fmt.Sprintf(">%d", *f.MinPrice))
	}
	if f.MaxPrice != nil {
		parts = append(parts, fmt.Sprintf("<%d", *f.MaxPrice))
	}
	if f.MinMileage != nil {
		parts = append(parts, fmt.Sprintf(">%dkm", *f.MinMileage))
	}
	if f.MaxMileage != nil {
		parts = append(parts, fmt.Sprintf("<%dkm", *f.MaxMileage))
	}
	if f.MinPower != nil {
		parts = append(parts, fmt.Sprintf(">%dhp", *f.MinPower))
	}
	if f.MaxPower != nil {
		parts = append(parts, fmt.Sprintf("<%dhp", *f.MaxPower))
	}
	return strings.Join(parts, " ")
}
