package domain

// Soup is a turtle-soup riddle. Truth is only ever embedded in
// host-side prompts; client payloads carry the Summary instead unless
// the truth is explicitly requested.
type Soup struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Opening    string   `json:"opening"`
	Difficulty int      `json:"difficulty"`
	Tags       []string `json:"tags"`
	Truth      string   `json:"truth,omitempty"`
}

// SoupSummary is the player-visible view of a riddle.
type SoupSummary struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Opening    string   `json:"opening"`
	Difficulty int      `json:"difficulty"`
	Tags       []string `json:"tags"`
}

// Summary strips the truth from a riddle.
func (s *Soup) Summary() SoupSummary {
	return SoupSummary{
		ID:         s.ID,
		Title:      s.Title,
		Opening:    s.Opening,
		Difficulty: s.Difficulty,
		Tags:       s.Tags,
	}
}
