package workflow

import (
	"reflect"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	if c.Version != "v1" {
		t.Errorf("Version = %q, want v1", c.Version)
	}
	if len(c.Questions) != 6 {
		t.Fatalf("len(Questions) = %d, want 6", len(c.Questions))
	}

	wantOrder := []string{
		"business_goals", "expected_users", "key_integrations",
		"data_sensitivity", "performance_targets", "timeline",
	}
	for i, q := range c.Questions {
		if q.ID != wantOrder[i] {
			t.Errorf("Questions[%d].ID = %q, want %q", i, q.ID, wantOrder[i])
		}
		if q.Prompt == "" {
			t.Errorf("Questions[%d] has empty prompt", i)
		}
	}
}

func TestCatalog_FilterAnswers(t *testing.T) {
	c := DefaultCatalog()

	kept, dropped := c.FilterAnswers(map[string]string{
		"expected_users": "10k",
		"timeline":       "Q3 2026",
		"shoe_size":      "44",
		"business_goals": "",
	})

	want := map[string]string{
		"expected_users": "10k",
		"timeline":       "Q3 2026",
	}
	if !reflect.DeepEqual(kept, want) {
		t.Errorf("kept = %v, want %v", kept, want)
	}
	if len(dropped) != 1 || dropped[0] != "shoe_size" {
		t.Errorf("dropped = %v, want [shoe_size]", dropped)
	}
}

func TestCatalog_AnsweredLines_CatalogOrder(t *testing.T) {
	c := DefaultCatalog()

	// Map iteration order must not leak into rendering.
	answers := map[string]string{
		"timeline":       "Q3 2026",
		"business_goals": "Sell direct",
		"expected_users": "10k",
	}

	lines := c.AnsweredLines(answers)
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}

	want := []string{
		"- What are the primary business goals of this system?: Sell direct",
		"- How many users do you expect at launch and at scale?: 10k",
		"- What is the desired delivery timeline?: Q3 2026",
	}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("lines = %v, want %v", lines, want)
	}
}

func TestCatalog_AnsweredLines_Empty(t *testing.T) {
	c := DefaultCatalog()

	if lines := c.AnsweredLines(nil); lines != nil {
		t.Errorf("AnsweredLines(nil) = %v, want nil", lines)
	}
	if lines := c.AnsweredLines(map[string]string{"expected_users": ""}); lines != nil {
		t.Errorf("blank answers should render as absent, got %v", lines)
	}
}
