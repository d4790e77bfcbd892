package textsig

import "testing"

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		min  float64
		max  float64
	}{
		{
			name: "identical titles",
			a:    "BMW X5 3.0d xDrive",
			b:    "BMW X5 3.0d xDrive",
			min:  1.0,
			max:  1.0,
		},
		{
			name: "near-identical titles",
			a:    "BMW X5 3.0d xDrive 2019",
			b:    "BMW X5 3.0d xDrive 2019!",
			min:  0.8,
			max:  1.0,
		},
		{
			name: "different cars",
			a:    "BMW X5 3.0d",
			b:    "Opel Corsa 1.2 benzin",
			min:  0.0,
			max:  0.3,
		},
		{
			name: "empty input",
			a:    "",
			b:    "BMW X5",
			min:  0.0,
			max:  0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := Similarity(TrigramString(tt.a), TrigramString(tt.b))
			if sim < tt.min || sim > tt.max {
				t.Errorf("Similarity(%q, %q) = %.3f, want within [%.2f, %.2f]", tt.a, tt.b, sim, tt.min, tt.max)
			}
		})
	}
}

func TestSimilaritySymmetry(t *testing.T) {
	a := TrigramString("Mercedes C220 CDI автоматик")
	b := TrigramString("Mercedes C220 автоматик кожа")

	if Similarity(a, b) != Similarity(b, a) {
		t.Error("similarity is not symmetric")
	}
}

func TestMinhash(t *testing.T) {
	a := Minhash("продавам бмв х5 в отлично състояние първи собственик сервизна история")
	b := Minhash("продавам бмв х5 в отлично състояние първи собственик сервизна история")
	c := Minhash("опел корса бензин климатик нови гуми зимни")

	if got := MinhashSimilarity(a, b); got != 1.0 {
		t.Errorf("identical descriptions: similarity = %.3f, want 1.0", got)
	}
	if got := MinhashSimilarity(a, c); got > 0.5 {
		t.Errorf("unrelated descriptions: similarity = %.3f, want <= 0.5", got)
	}
}

func TestTrigramsCyrillic(t *testing.T) {
	trgms := Trigrams("дизел")
	if len(trgms) == 0 {
		t.Fatal("expected trigrams for cyrillic input")
	}
}
