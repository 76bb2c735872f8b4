package core

// CategoryStats summarises one category.
type CategoryStats struct {
	Name     string `json:"name"`
	Rank     int    `json:"rank"`
	Distinct int    `json:"distinct"`
	Total    int    `json:"total"`
}

// Stats summarises the deck. Histogram counts copies per value of the
// requested attribute and is nil when no attribute was requested.
type Stats struct {
	DeckID     string          `json:"deck_id"`
	Total      int             `json:"total"`
	Distinct   int             `json:"distinct"`
	Categories []CategoryStats `json:"categories"`
	Histogram  map[string]int  `json:"histogram,omitempty"`
}

// Stats computes deck statistics. It is not audited.
func (s *Service) Stats(attr string) Stats {
	st := Stats{
		DeckID:   s.opts.deckID,
		Total:    s.deck.Total(),
		Distinct: s.deck.Size(),
	}
	for _, view := range s.deck.Categories() {
		cs := CategoryStats{Name: view.Spec.Name, Rank: view.Rank, Distinct: len(view.Cards)}
		cs.Total, _ = s.deck.CategoryTotal(view.Spec.Name)
		st.Categories = append(st.Categories, cs)
	}
	if attr != "" {
		st.Histogram = s.deck.Histogram(attr)
	}
	return st
}
