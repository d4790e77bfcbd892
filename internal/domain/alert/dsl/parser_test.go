package dsl

import (
	"context"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/catalog"
	catalogent "github.com/TheAVengineer/CarScout-AI/internal/domain/catalog/entities"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/catalog/seed"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

type fakeBrandRepo struct {
	rows []catalogent.BrandModel
}

func (f *fakeBrandRepo) ListActive(_ context.Context) ([]catalogent.BrandModel, error) {
	return f.rows, nil
}

func (f *fakeBrandRepo) SeedIfEmpty(_ context.Context, _ []catalogent.BrandModel) error {
	return nil
}

type fakeFxRepo struct{}

func (f *fakeFxRepo) Rate(_ context.Context, _, _ string) (float64, error) {
	return 0, pkgerrors.NewNotFoundError("fx rate not found")
}

func (f *fakeFxRepo) Upsert(_ context.Context, _, _ string, _ float64) error {
	return nil
}

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	rows, err := seed.BrandModels()
	if err != nil {
		t.Fatalf("failed to load seed: %v", err)
	}
	svc := catalog.NewService(&fakeBrandRepo{rows: rows}, &fakeFxRepo{}, zerolog.Nop())
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	return NewParser(svc)
}

func intPtr(v int) *int { return &v }

func TestParse(t *testing.T) {
	p := newTestParser(t)

	tests := []struct {
		name  string
		query string
		want  Filters
	}{
		{
			name:  "full query",
			query: "BMW X5 diesel <25000 2018+ automatic",
			want: Filters{
				BrandID:  "bmw",
				ModelID:  "x5",
				Fuel:     "diesel",
				Gearbox:  "automatic",
				MinYear:  intPtr(2018),
				MaxPrice: intPtr(25000),
			},
		},
		{
			name:  "bulgarian query",
			query: "Ауди А4 бензин София 2015-2020 <150000км",
			want: Filters{
				BrandID:    "audi",
				ModelID:    "a4",
				Fuel:       "petrol",
				Region:     "sofia",
				MinYear:    intPtr(2015),
				MaxYear:    intPtr(2020),
				MaxMileage: intPtr(150000),
			},
		},
		{
			name:  "power and body",
			query: "Mercedes C-Class >180hp sedan",
			want: Filters{
				BrandID:  "mercedes",
				ModelID:  "c-class",
				Body:     "sedan",
				MinPower: intPtr(180),
			},
		},
		{
			name:  "price range both ends",
			query: "vw golf >5000 <12000",
			want: Filters{
				BrandID:  "vw",
				ModelID:  "golf",
				MinPrice: intPtr(5000),
				MaxPrice: intPtr(12000),
			},
		},
		{
			name:  "tokens in any order",
			query: "diesel <25000 x5 bmw automatic",
			want: Filters{
				BrandID:  "bmw",
				ModelID:  "x5",
				Fuel:     "diesel",
				Gearbox:  "automatic",
				MaxPrice: intPtr(25000),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse(tt.query)
			if !reflect.DeepEqual(got.Filters, tt.want) {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.query, got.Filters, tt.want)
			}
		})
	}
}

func TestParseUnknownTokensAreWarnings(t *testing.T) {
	p := newTestParser(t)

	res := p.Parse("BMW X5 котка <25000")
	if res.Filters.BrandID != "bmw" || res.Filters.ModelID != "x5" {
		t.Fatalf("known tokens should still parse: %+v", res.Filters)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("want 1 warning, got %v", res.Warnings)
	}
}

func TestRenderFixedPoint(t *testing.T) {
	p := newTestParser(t)

	queries := []string{
		"BMW X5 diesel <25000 2018+ automatic",
		"Ауди А4 бензин София 2015-2020 <150000км",
		"Mercedes C-Class >180hp sedan",
		"skoda octavia комби >2010 ruse",
	}

	for _, q := range queries {
		first := p.Parse(q).Filters
		rendered := Render(first)
		second := p.Parse(rendered).Filters
		if !reflect.DeepEqual(first, second) {
			t.Errorf("canonical form is not a fixed point:\n  query:    %q\n  rendered: %q\n  first:  %+v\n  second: %+v",
				q, rendered, first, second)
		}
	}
}
