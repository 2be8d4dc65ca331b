package workflow

// CatalogVersion identifies the shipped elicitation question set.
const CatalogVersion = "v1"

// Question is one elicitation prompt with a stable identifier. Answers are
// stored under the ID; the prompt is presentation only.
type Question struct {
	// ID is the stable snake_case key answers are stored under.
	ID string `json:"id"`

	// Prompt is the question shown to the user.
	Prompt string `json:"prompt"`
}

// Catalog is the fixed, ordered elicitation question set. A versioned
// catalog with stable IDs replaces ad-hoc per-caller key naming: every
// reader and writer of elicitation data goes through these IDs.
type Catalog struct {
	Version   string     `json:"version"`
	Questions []Question `json:"questions"`
}

// DefaultCatalog returns the v1 question set.
func DefaultCatalog() Catalog {
	return Catalog{
		Version: CatalogVersion,
		Questions: []Question{
			{ID: "business_goals", Prompt: "What are the primary business goals of this system?"},
			{ID: "expected_users", Prompt: "How many users do you expect at launch and at scale?"},
			{ID: "key_integrations", Prompt: "Which external systems must it integrate with?"},
			{ID: "data_sensitivity", Prompt: "What kinds of sensitive data will be handled?"},
			{ID: "performance_targets", Prompt: "What response-time or throughput targets matter most?"},
			{ID: "timeline", Prompt: "What is the desired delivery timeline?"},
		},
	}
}

// Has returns true if the catalog contains the question ID.
func (c Catalog) Has(id string) bool {
	for _, q := range c.Questions {
		if q.ID == id {
			return true
		}
	}
	return false
}

// FilterAnswers keeps only answers whose keys exist in the catalog,
// returning the kept map and the dropped keys. Empty answers are dropped
// too; an unanswered question is absent, not blank.
func (c Catalog) FilterAnswers(answers map[string]string) (map[string]string, []string) {
	kept := make(map[string]string, len(answers))
	var dropped []string

	for id, answer := range answers {
		if !c.Has(id) || answer == "" {
			if !c.Has(id) {
				dropped = append(dropped, id)
			}
			continue
		}
		kept[id] = answer
	}
	return kept, dropped
}

// AnsweredLines renders one "- <prompt>: <answer>" line per answered
// question in catalog order. Returns nil when nothing is answered.
func (c Catalog) AnsweredLines(answers map[string]string) []string {
	var lines []string
	for _, q := range c.Questions {
		if answer, ok := answers[q.ID]; ok && answer != "" {
			lines = append(lines, "- "+q.Prompt+": "+answer)
		}
	}
	return lines
}
