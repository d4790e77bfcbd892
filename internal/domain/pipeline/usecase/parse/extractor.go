package parse

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

// Registry maps source names to field extractors. Site-specific extractors
// register themselves here; everything else gets the generic one.
type Registry struct {
	extractors map[string]deps.FieldExtractor
	generic    deps.FieldExtractor
}

// NewRegistry creates the extractor registry with the generic fallback
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[string]deps.FieldExtractor),
		generic:    &GenericExtractor{},
	}
}

// Register installs a site-specific extractor
func (r *Registry) Register(sourceName string, e deps.FieldExtractor) {
	r.extractors[sourceName] = e
}

// Extractor returns the extractor for a source
func (r *Registry) Extractor(sourceName string) deps.FieldExtractor {
	if e, ok := r.extractors[sourceName]; ok {
		return e
	}
	return r.generic
}

var (
	priceRegex   = regexp.MustCompile(`(\d[\d\s.,]{2,12})\s*(лв|lv|bgn|eur|€|usd|\$)`)
	yearRegex    = regexp.MustCompile(`\b(19[89]\d|20[0-4]\d)\b`)
	mileageRegex = regexp.MustCompile(`(\d[\d\s.,]{0,9})\s*(?:км|km)(?:[^\p{L}\p{N}_]|$)`)
	powerRegex   = regexp.MustCompile(`(\d{2,4})\s*(?:к\.с\.|кс|hp|к\.с)(?:[^\p{L}\p{N}_]|$)`)
	phoneRegex   = regexp.MustCompile(`(?:\+359|0)[\s-]?8[789](?:[\s-]?\d){7}`)
	digitsOnly   = regexp.MustCompile(`\D`)
)

// GenericExtractor pulls fields out of structured ad markup. Real sources
// ship dedicated extractors; this one covers the shared schema.org/OpenGraph
// surface most Bulgarian marketplaces expose.
type GenericExtractor struct{}

// Extract parses the raw HTML snapshot into a draft record
func (e *GenericExtractor) Extract(blob []byte) (*dto.Draft, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(blob))
	if err != nil {
		return nil, pkgerrors.NewValidationError("unparseable html: " + err.Error())
	}

	draft := &dto.Draft{}

	draft.Title = firstNonEmpty(
		attrOf(doc, `meta[property="og:title"]`, "content"),
		strings.TrimSpace(doc.Find("h1").First().Text()),
		strings.TrimSpace(doc.Find("title").First().Text()),
	)

	draft.Description = firstNonEmpty(
		strings.TrimSpace(doc.Find(`[itemprop="description"]`).First().Text()),
		attrOf(doc, `meta[property="og:description"]`, "content"),
	)

	if brand := attrOf(doc, `[itemprop="brand"]`, "content"); brand != "" {
		draft.Brand = brand
	} else {
		draft.Brand = strings.TrimSpace(doc.Find(`[itemprop="brand"]`).First().Text())
	}
	draft.Model = firstNonEmpty(
		attrOf(doc, `[itemprop="model"]`, "content"),
		strings.TrimSpace(doc.Find(`[itemprop="model"]`).First().Text()),
	)

	// brand/model often only live in the title
	if draft.Brand == "" && draft.Title != "" {
		fields := strings.Fields(draft.Title)
		if len(fields) > 0 {
			draft.Brand = fields[0]
		}
		if len(fields) > 1 {
			draft.Model = fields[1]
		}
	}

	bodyText := doc.Find("body").Text()

	if price, currency, ok := extractPrice(firstNonEmpty(
		attrOf(doc, `[itemprop="price"]`, "content"),
		doc.Find(".price").First().Text(),
		bodyText,
	)); ok {
		draft.Price = &price
		draft.Currency = currency
	}
	if cur := attrOf(doc, `[itemprop="priceCurrency"]`, "content"); cur != "" {
		draft.Currency = cur
	}

	if m := yearRegex.FindString(draft.Title + " " + bodyText); m != "" {
		if y, err := strconv.Atoi(m); err == nil {
			draft.Year = &y
		}
	}
	if m := mileageRegex.FindStringSubmatch(bodyText); m != nil {
		if km, err := strconv.Atoi(digitsOnly.ReplaceAllString(m[1], "")); err == nil {
			draft.MileageKm = &km
		}
	}
	if m := powerRegex.FindStringSubmatch(bodyText); m != nil {
		if hp, err := strconv.Atoi(m[1]); err == nil {
			draft.PowerHP = &hp
		}
	}

	draft.Fuel = textOf(doc, `[data-field="fuel"]`, `[itemprop="fuelType"]`)
	draft.Gearbox = textOf(doc, `[data-field="gearbox"]`, `[itemprop="vehicleTransmission"]`)
	draft.Body = textOf(doc, `[data-field="body"]`, `[itemprop="bodyType"]`)
	draft.Region = textOf(doc, `[data-field="region"]`, `[itemprop="addressRegion"]`)

	doc.Find(`img[data-role="gallery"], .gallery img, [itemprop="image"]`).
		EachWithBreak(func(_ int, s *goquery.Selection) bool {
			src := firstNonEmpty(s.AttrOr("data-src", ""), s.AttrOr("src", ""), s.AttrOr("content", ""))
			if src != "" {
				draft.ImageURLs = append(draft.ImageURLs, src)
			}
			return len(draft.ImageURLs) < 5
		})

	doc.Find(`.features li, [data-role="feature"]`).Each(func(_ int, s *goquery.Selection) {
		if f := strings.TrimSpace(s.Text()); f != "" {
			draft.Features = append(draft.Features, f)
		}
	})

	if m := phoneRegex.FindString(bodyText); m != "" {
		draft.SellerPhone = m
	}
	draft.SellerURL = attrOf(doc, `a[data-role="seller"]`, "href")

	if draft.Title == "" {
		return nil, pkgerrors.NewValidationError("no extractable fields")
	}
	return draft, nil
}

// extractPrice parses an amount and currency out of price text
func extractPrice(text string) (float64, string, bool) {
	m := priceRegex.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0, "", false
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(digitsAndDot(m[1]), ",", "."), 64)
	if err != nil {
		return 0, "", false
	}

	currency := "BGN"
	switch m[2] {
	case "eur", "€":
		currency = "EUR"
	case "usd", "$":
		currency = "USD"
	}
	return amount, currency, true
}

// digitsAndDot strips grouping separators but keeps a decimal comma/point
func digitsAndDot(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	// "28.500" and "28 500" are groupings; "28500.50" is a decimal
	if dot := strings.LastIndexAny(s, ".,"); dot >= 0 && len(s)-dot-1 == 3 {
		s = strings.Replace(s, s[dot:dot+1], "", 1)
	}
	return s
}

func attrOf(doc *goquery.Document, selector, attr string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr(attr, ""))
}

func textOf(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v := strings.TrimSpace(doc.Find(sel).First().Text()); v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// NormalizePhone reduces a phone spelling to bare digits with the country
// prefix folded away, the form that gets HMAC'd
func NormalizePhone(raw string) string {
	digits := digitsOnly.ReplaceAllString(raw, "")
	digits = strings.TrimPrefix(digits, "359")
	digits = strings.TrimPrefix(digits, "0")
	return digits
}
