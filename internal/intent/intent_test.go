package intent

import "testing"

// TestGreetingRecognition covers the "ciao adam" scenario: greeting category,
// 0.9 confidence, and the salutation stripped down to the default greeting.
func TestGreetingRecognition(t *testing.T) {
	m := Analyze("ciao adam")

	if !m.Addressed {
		t.Fatal("Expected 'ciao adam' to be recognized as an address")
	}
	if m.Category != CategoryGreeting {
		t.Errorf("Expected category %q, got %q", CategoryGreeting, m.Category)
	}
	if m.Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %v", m.Confidence)
	}
	if m.CleanedText != DefaultGreeting {
		t.Errorf("Expected cleaned text %q, got %q", DefaultGreeting, m.CleanedText)
	}
	if ResponseStyle(m) != StyleGreeting {
		t.Errorf("Expected style %q, got %q", StyleGreeting, ResponseStyle(m))
	}
}

// TestCategoryPrecedence verifies that earlier pattern groups always win.
// "ciao adam" at the start of a message matches both the greeting group and
// the context-call group; greeting is checked first so greeting wins.
func TestCategoryPrecedence(t *testing.T) {
	m := Analyze("ciao adam come va?")
	if m.Category != CategoryGreeting {
		t.Errorf("Expected greeting to win over context_call, got %q", m.Category)
	}

	// A bare "adam ..." matches direct-call and the question pattern;
	// direct-call is checked first.
	m = Analyze("adam cosa ne pensi?")
	if m.Category != CategoryDirectCall {
		t.Errorf("Expected direct_call to win, got %q", m.Category)
	}
	if m.Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0 for direct_call, got %v", m.Confidence)
	}
}

// TestDeterminism checks that Analyze is a pure function of its input.
func TestDeterminism(t *testing.T) {
	inputs := []string{
		"adam", "ciao adam", "senti adam, che facciamo?",
		"adam puoi aiutarmi?", "che ne pensi adam?", "niente di che",
	}
	for _, in := range inputs {
		first := Analyze(in)
		for i := 0; i < 5; i++ {
			again := Analyze(in)
			if again != first {
				t.Errorf("Analyze(%q) not deterministic: %+v vs %+v", in, first, again)
			}
		}
	}
}

func TestCleanedTextNeverEmpty(t *testing.T) {
	inputs := []string{
		"adam", "Adam", "ciao adam", "hey adam", "ADAM!",
		"adam, puoi spiegarmi la ricorsione?", "senti adam",
	}
	for _, in := range inputs {
		m := Analyze(in)
		if !m.Addressed {
			t.Fatalf("Expected %q to be an address", in)
		}
		if m.CleanedText == "" {
			t.Errorf("Analyze(%q) returned empty cleaned text", in)
		}
	}

	// Bare address token maps to the fixed default, not "".
	if got := Analyze("adam").CleanedText; got != DefaultGreeting {
		t.Errorf("Expected bare address to clean to %q, got %q", DefaultGreeting, got)
	}
}

func TestCategories(t *testing.T) {
	cases := []struct {
		text     string
		category Category
		style    Style
	}{
		{"adam, dimmi una cosa", CategoryDirectCall, StyleStandard},
		{"buongiorno adam", CategoryGreeting, StyleGreeting},
		{"che ne pensi adam?", CategoryQuestion, StyleQuestion},
		{"ehi adam puoi darmi una mano", CategoryRequest, StyleHelpful},
		{"oggi ho visto, senti adam, una cosa strana", CategoryContextCall, StyleStandard},
	}
	for _, tc := range cases {
		m := Analyze(tc.text)
		if m.Category != tc.category {
			t.Errorf("Analyze(%q): expected category %q, got %q", tc.text, tc.category, m.Category)
		}
		if ResponseStyle(m) != tc.style {
			t.Errorf("Analyze(%q): expected style %q, got %q", tc.text, tc.style, ResponseStyle(m))
		}
	}
}

// TestCleanStripsOnlyFirstMention verifies that each strip rule removes just
// one occurrence: when the message names the bot several times, later mentions
// stay part of the cleaned text.
func TestCleanStripsOnlyFirstMention(t *testing.T) {
	m := Analyze("adam, di' a adam che adam scherza")
	if !m.Addressed {
		t.Fatal("Expected the message to be recognized as an address")
	}
	want := "di' a che adam scherza"
	if m.CleanedText != want {
		t.Errorf("Expected cleaned text %q, got %q", want, m.CleanedText)
	}
}

func TestNotAddressed(t *testing.T) {
	for _, in := range []string{"", "   ", "ciao a tutti", "madame bovary", "domani piove"} {
		m := Analyze(in)
		if m.Addressed {
			t.Errorf("Expected %q not to be an address, got category %q", in, m.Category)
		}
		if m.Category != CategoryNone || m.Confidence != 0 {
			t.Errorf("Expected none/0 for %q, got %q/%v", in, m.Category, m.Confidence)
		}
		if ResponseStyle(m) != StyleNone {
			t.Errorf("Expected style none for %q", in)
		}
	}
}
