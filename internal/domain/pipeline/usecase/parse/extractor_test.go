package parse

import (
	"testing"
)

const sampleAd = `<!DOCTYPE html>
<html>
<head>
<title>BMW X5 3.0d - Обява</title>
<meta property="og:title" content="BMW X5 3.0d xDrive">
<meta property="og:description" content="Перфектно състояние, първи собственик.">
</head>
<body>
<h1>BMW X5 3.0d xDrive</h1>
<div class="price">28 500 лв</div>
<div itemprop="brand" content="BMW"></div>
<div itemprop="model" content="X5"></div>
<span data-field="fuel">Дизел</span>
<span data-field="gearbox">Автоматик</span>
<span data-field="region">София</span>
<div itemprop="description">Година 2019, реални 45000 км, 265 к.с., сервизна история.</div>
<div class="gallery">
<img src="https://img.example/1.jpg">
<img src="https://img.example/2.jpg">
<img src="https://img.example/3.jpg">
<img src="https://img.example/4.jpg">
<img src="https://img.example/5.jpg">
<img src="https://img.example/6.jpg">
</div>
<div class="contact">Тел: 088 123 4567</div>
</body>
</html>`

func TestGenericExtractor(t *testing.T) {
	draft, err := (&GenericExtractor{}).Extract([]byte(sampleAd))
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	if draft.Title != "BMW X5 3.0d xDrive" {
		t.Errorf("title = %q", draft.Title)
	}
	if draft.Brand != "BMW" || draft.Model != "X5" {
		t.Errorf("brand/model = %q/%q, want BMW/X5", draft.Brand, draft.Model)
	}
	if draft.Price == nil || *draft.Price != 28500 {
		t.Errorf("price = %v, want 28500", draft.Price)
	}
	if draft.Currency != "BGN" {
		t.Errorf("currency = %q, want BGN", draft.Currency)
	}
	if draft.Year == nil || *draft.Year != 2019 {
		t.Errorf("year = %v, want 2019", draft.Year)
	}
	if draft.MileageKm == nil || *draft.MileageKm != 45000 {
		t.Errorf("mileage = %v, want 45000", draft.MileageKm)
	}
	if draft.PowerHP == nil || *draft.PowerHP != 265 {
		t.Errorf("power = %v, want 265", draft.PowerHP)
	}
	if draft.Fuel != "Дизел" {
		t.Errorf("fuel = %q (raw value, normalize maps it)", draft.Fuel)
	}
	if len(draft.ImageURLs) != 5 {
		t.Errorf("images = %d, want capped at 5", len(draft.ImageURLs))
	}
	if draft.SellerPhone == "" {
		t.Error("seller phone not extracted")
	}
}

func TestGenericExtractorMissingFieldsStayEmpty(t *testing.T) {
	minimal := `<html><head><title>Some ad</title></head><body><h1>Some ad</h1></body></html>`
	draft, err := (&GenericExtractor{}).Extract([]byte(minimal))
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	if draft.Price != nil || draft.Year != nil || draft.MileageKm != nil {
		t.Error("missing fields must stay nil, never guessed")
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+359 88 123 4567", "881234567"},
		{"0881234567", "881234567"},
		{"088-123-4567", "881234567"},
	}

	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHashPhoneStableAndSalted(t *testing.T) {
	a := HashPhone("+359 88 123 4567", "salt-1")
	b := HashPhone("0881234567", "salt-1")
	c := HashPhone("0881234567", "salt-2")

	if a != b {
		t.Error("equivalent spellings must hash identically")
	}
	if a == c {
		t.Error("different salts must produce different hashes")
	}
	if HashPhone("", "salt") != "" {
		t.Error("empty phone must hash to empty")
	}
}
