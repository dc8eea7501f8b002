package chunker

// Stats aggregates token accounting over one document's chunk list.
type Stats struct {
	TotalChunks       int     `json:"total_chunks"`
	TotalTokens       int     `json:"total_tokens"`
	AvgTokens         float64 `json:"avg_token_count"`
	MaxTokens         int     `json:"max_token_count"`
	MinTokens         int     `json:"min_token_count"`
	SplitSections     int     `json:"split_sections"`
	OversizedSections []int   `json:"oversized_sections,omitempty"` // chunk ids over budget
}

// ComputeStats derives aggregate statistics from a chunk list. budget is
// the max_tokens the chunks were split with; chunks exceeding it (single
// oversized items) are reported, not treated as errors.
func ComputeStats(chunks []Chunk, budget int) Stats {
	s := Stats{TotalChunks: len(chunks)}
	if len(chunks) == 0 {
		return s
	}
	s.MinTokens = chunks[0].TokenCount
	for _, c := range chunks {
		s.TotalTokens += c.TokenCount
		if c.TokenCount > s.MaxTokens {
			s.MaxTokens = c.TokenCount
		}
		if c.TokenCount < s.MinTokens {
			s.MinTokens = c.TokenCount
		}
		if c.IsSplit {
			s.SplitSections++
		}
		if budget > 0 && c.TokenCount > budget {
			s.OversizedSections = append(s.OversizedSections, c.ChunkID)
		}
	}
	s.AvgTokens = float64(s.TotalTokens) / float64(len(chunks))
	return s
}
