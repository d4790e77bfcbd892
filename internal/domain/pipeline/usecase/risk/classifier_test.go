package risk

import "testing"

func TestClassifierDecisionTable(t *testing.T) {
	c, err := NewClassifier()
	if err != nil {
		t.Fatalf("failed to load classifier: %v", err)
	}

	tests := []struct {
		name         string
		title        string
		description  string
		wantLevel    string
		wantNeedsLLM bool
		wantHard     bool
		minConf      float64
	}{
		{
			name:        "salvage keyword forces red",
			title:       "BMW X5 на части",
			description: "Колата е бракувана, продава се на части.",
			wantLevel:   "red",
			wantHard:    true,
			minConf:     0.8,
		},
		{
			name:        "accident keyword forces red",
			title:       "Opel Astra",
			description: "Лека катастрофа в предницата, ударен калник.",
			wantLevel:   "red",
			wantHard:    true,
			minConf:     0.8,
		},
		{
			name:        "clean listing is green without escalation",
			title:       "Toyota Corolla 2019",
			description: "Кола в добро състояние, редовно обслужвана.",
			wantLevel:   "green",
			minConf:     0.7,
		},
		{
			name:  "three soft flags escalate as yellow",
			title: "VW Golf нов внос",
			description: "Спешно! Реални километри, има драскотини по вратата. " +
				"Бърза продажба, заминавам в чужбина.",
			wantLevel:    "yellow",
			wantNeedsLLM: true,
			minConf:      0.6,
		},
		{
			name:         "single soft flag is uncertain",
			title:        "Audi A4",
			description:  "Пресен внос от Германия, обслужена.",
			wantLevel:    "yellow",
			wantNeedsLLM: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Classify(tt.title, tt.description)
			if v.RiskLevel != tt.wantLevel {
				t.Errorf("risk level = %s, want %s (flags: %v)", v.RiskLevel, tt.wantLevel, v.Flags)
			}
			if v.NeedsLLM != tt.wantNeedsLLM {
				t.Errorf("needs llm = %v, want %v", v.NeedsLLM, tt.wantNeedsLLM)
			}
			if v.HardFlag != tt.wantHard {
				t.Errorf("hard flag = %v, want %v", v.HardFlag, tt.wantHard)
			}
			if v.RuleConfidence < tt.minConf {
				t.Errorf("rule confidence = %.2f, want >= %.2f", v.RuleConfidence, tt.minConf)
			}
		})
	}
}

func TestClassifierPositiveFlags(t *testing.T) {
	c, err := NewClassifier()
	if err != nil {
		t.Fatalf("failed to load classifier: %v", err)
	}

	v := c.Classify("Honda Civic", "Първи собственик, пълна сервизна история, перфектно състояние.")
	if v.RiskLevel != "green" {
		t.Fatalf("risk level = %s, want green", v.RiskLevel)
	}
	if v.RuleConfidence < 0.75 {
		t.Errorf("positive flags should raise green confidence, got %.2f", v.RuleConfidence)
	}
	if len(v.PositiveFlags) < 2 {
		t.Errorf("positive flags = %v, want at least 2 categories", v.PositiveFlags)
	}
}
