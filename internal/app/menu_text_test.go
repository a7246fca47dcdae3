package app

import "testing"

func TestMenuTextLanguages(t *testing.T) {
	en, err := NewMenuText("en")
	if err != nil {
		t.Fatal(err)
	}
	sw, err := NewMenuText("sw")
	if err != nil {
		t.Fatal(err)
	}

	if got := en.Month(3); got != "March" {
		t.Errorf("en month 3 = %q", got)
	}
	if got := sw.Month(3); got != "Machi" {
		t.Errorf("sw month 3 = %q", got)
	}
	if got := sw.T("already_paid", map[string]any{"Month": "Machi"}); got != "Malipo ya Machi yamekamilika tayari." {
		t.Errorf("sw already_paid = %q", got)
	}
	if got := en.T("no_such_message", nil); got != "no_such_message" {
		t.Errorf("unknown id = %q", got)
	}
}

func TestMenuTextUnknownLanguageFallsBackToEnglish(t *testing.T) {
	fr, err := NewMenuText("fr")
	if err != nil {
		t.Fatal(err)
	}
	if got := fr.T("invalid_option", nil); got != "Invalid option. Please try again." {
		t.Errorf("fallback = %q", got)
	}
}
