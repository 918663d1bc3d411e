package intent

import "testing"

func TestExtractNumber(t *testing.T) {
	spec := ParameterSpec{Name: "amount", Kind: KindNumber, Min: floatPtr(1), Max: floatPtr(1000)}

	value, ok := Extract("I'd like to pay 250.50 today", spec)
	if !ok {
		t.Fatal("expected a number")
	}
	if value != 250.50 {
		t.Fatalf("expected 250.50, got %v", value)
	}

	if _, ok := Extract("pay 5000 please", spec); ok {
		t.Fatal("value above max must be rejected")
	}
	if _, ok := Extract("pay 0 please", spec); ok {
		t.Fatal("value below min must be rejected")
	}
	if _, ok := Extract("no digits here", spec); ok {
		t.Fatal("expected absence without digits")
	}
}

func TestExtractEmail(t *testing.T) {
	spec := ParameterSpec{Name: "email", Kind: KindEmail}

	value, ok := Extract("reach me at jane.doe+test@example.co.uk thanks", spec)
	if !ok || value != "jane.doe+test@example.co.uk" {
		t.Fatalf("expected email, got %v (ok=%v)", value, ok)
	}

	if _, ok := Extract("jane.doe at example dot com", spec); ok {
		t.Fatal("expected absence for spelled-out address")
	}
}

func TestExtractPhone(t *testing.T) {
	spec := ParameterSpec{Name: "phone", Kind: KindPhone}

	value, ok := Extract("call me on 555-867-5309 after lunch", spec)
	if !ok || value != "555-867-5309" {
		t.Fatalf("expected phone, got %v (ok=%v)", value, ok)
	}

	// First match wins deterministically.
	value, _ = Extract("either 111-222-3333 or 444-555-6666", spec)
	if value != "111-222-3333" {
		t.Fatalf("expected first phone to win, got %v", value)
	}
}

func TestExtractDate(t *testing.T) {
	spec := ParameterSpec{Name: "date", Kind: KindDate}

	for _, tt := range []struct {
		text string
		want string
	}{
		{"see you on 12/06/2026", "12/06/2026"},
		{"maybe 3-14-26 works", "3-14-26"},
	} {
		value, ok := Extract(tt.text, spec)
		if !ok || value != tt.want {
			t.Fatalf("Extract(%q) = %v (ok=%v), want %q", tt.text, value, ok, tt.want)
		}
	}

	if _, ok := Extract("sometime next week", spec); ok {
		t.Fatal("expected absence without a numeric date")
	}
}

func TestExtractBoolean(t *testing.T) {
	spec := ParameterSpec{Name: "confirmed", Kind: KindBoolean}

	value, ok := Extract("yes that's right", spec)
	if !ok || value != true {
		t.Fatalf("expected true, got %v (ok=%v)", value, ok)
	}

	value, ok = Extract("no, that's wrong", spec)
	if !ok || value != false {
		t.Fatalf("expected false, got %v (ok=%v)", value, ok)
	}

	// Positive list is checked first when both appear.
	value, _ = Extract("no wait, yes", spec)
	if value != true {
		t.Fatalf("positive list should win, got %v", value)
	}

	if _, ok := Extract("maybe later", spec); ok {
		t.Fatal("expected absence without a boolean word")
	}
}

func TestExtractString(t *testing.T) {
	spec := ParameterSpec{Name: "plan", Kind: KindString, Examples: []string{"Basic", "Premium", "Enterprise"}}

	value, ok := Extract("upgrade me to the premium plan", spec)
	if !ok || value != "Premium" {
		t.Fatalf("expected canonical Premium, got %v (ok=%v)", value, ok)
	}

	// No fuzzy matching for strings.
	if _, ok := Extract("upgrade me to premum", spec); ok {
		t.Fatal("expected absence for a typo")
	}
}

func TestExtractPatternOverridesKind(t *testing.T) {
	c, err := Build([]IntentDefinition{{
		ID:       "lookup",
		Topic:    "misc",
		Keywords: []string{"lookup"},
		Parameters: []ParameterSpec{
			{Name: "accountId", Kind: KindString, Pattern: `\bACC\d{4,}\b`},
		},
	}}, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	spec := c.Intents()[0].Parameters[0]

	value, ok := Extract("my account is ACC987654", spec)
	if !ok || value != "ACC987654" {
		t.Fatalf("expected pattern capture, got %v (ok=%v)", value, ok)
	}
	if _, ok := Extract("my account is acc987654", spec); ok {
		t.Fatal("pattern is case-sensitive by declaration; lowercase must not match")
	}
}

func TestExtractDeterministic(t *testing.T) {
	spec := ParameterSpec{Name: "email", Kind: KindEmail}
	text := "a@b.io then c@d.io"
	first, _ := Extract(text, spec)
	for i := 0; i < 3; i++ {
		again, _ := Extract(text, spec)
		if again != first {
			t.Fatalf("extraction not deterministic: %v vs %v", first, again)
		}
	}
}
