package languages

import "testing"

func TestLoadBundled(t *testing.T) {
	tables, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if n := len(tables.Recognition); n < 90 {
		t.Errorf("recognition entries = %d, want about 100", n)
	}
	if n := len(tables.Translation); n < 90 {
		t.Errorf("translation entries = %d, want about 100", n)
	}
}

func TestValidation(t *testing.T) {
	tables, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	recognition := []struct {
		code string
		want bool
	}{
		{"eng", true},
		{"chi_sim", true},
		{"eng+fra", true},
		{"ENG", true},
		{"en", false},
		{"eng+", false},
		{"", false},
	}
	for _, tt := range recognition {
		if got := tables.ValidRecognition(tt.code); got != tt.want {
			t.Errorf("ValidRecognition(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}

	translation := []struct {
		code string
		want bool
	}{
		{"en", true},
		{"zh-cn", true},
		{"zh-CN", true},
		{"haw", true},
		{"no", true},
		{"eng", false},
		{"", false},
	}
	for _, tt := range translation {
		if got := tables.ValidTranslation(tt.code); got != tt.want {
			t.Errorf("ValidTranslation(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestNames(t *testing.T) {
	tables, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if got := tables.RecognitionName("fra"); got != "French" {
		t.Errorf("RecognitionName(fra) = %q, want French", got)
	}
	if got := tables.TranslationName("zh-tw"); got != "Chinese (Traditional)" {
		t.Errorf("TranslationName(zh-tw) = %q, want Chinese (Traditional)", got)
	}
	if got := tables.TranslationName("xx"); got != "" {
		t.Errorf("TranslationName(xx) = %q, want empty", got)
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	if _, err := Parse([]byte("recognition: []\ntranslation: []\n")); err == nil {
		t.Error("Parse of empty tables should fail")
	}
	if _, err := Parse([]byte("recognition: [")); err == nil {
		t.Error("Parse of malformed YAML should fail")
	}
}
