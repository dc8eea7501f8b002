package chunker

import (
	"math"
	"unicode"
)

// EstimateTokens approximates the token count of text with a
// character-count heuristic: CJK scripts tokenize close to one token per
// 1.5 characters, everything else close to one token per 4 characters.
// Exact tokenization is not required; what matters is that the splitter,
// quality statistics, and budget re-validation all share this single
// deterministic estimator.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	var cjk, other int
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}
	tokens := int(math.Ceil(float64(cjk)/1.5 + float64(other)/4.0))
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
