package lexical

import (
	"strings"
	"unicode"
)

// Trailing Korean particles stripped from Hangul tokens so that "창업을"
// and "창업" index to the same term. Longest suffixes are tried first.
var particles = []string{
	"에서", "으로", "이랑", "한테", "까지", "부터", "하고", "처럼", "보다", "에게", "께서",
	"을", "를", "이", "가", "은", "는", "에", "의", "도", "만", "와", "과", "로", "랑", "나",
}

// Single-token function words that carry no search signal.
var stopwords = map[string]struct{}{
	"그": {}, "저": {}, "이": {}, "것": {}, "수": {}, "등": {}, "및": {},
	"좀": {}, "잘": {}, "더": {},
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "to": {}, "of": {},
}

// Tokenize lowercases text and splits it into index terms. Splitting
// happens on anything that is not a letter or digit, which keeps Hangul
// syllable runs intact. Hangul tokens get one trailing particle stripped
// when the stem is at least two syllables.
func Tokenize(text string) []string {
	if text == "" {
		return []string{}
	}

	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := stripParticle(f)
		if tok == "" {
			continue
		}
		if _, ok := stopwords[tok]; ok {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// stripParticle removes one trailing Korean particle from a Hangul token.
// Non-Hangul tokens pass through unchanged. A token that is nothing but a
// particle (e.g. a stray "은") is dropped entirely.
func stripParticle(tok string) string {
	runes := []rune(tok)
	if !isHangul(runes[len(runes)-1]) {
		return tok
	}
	for _, p := range particles {
		if !strings.HasSuffix(tok, p) {
			continue
		}
		stem := []rune(strings.TrimSuffix(tok, p))
		if len(stem) == 0 {
			return ""
		}
		if len(stem) >= 2 {
			return string(stem)
		}
		// One-syllable stems are too ambiguous to strip ("배를" could be
		// 배+를 or part of a longer word) so keep the token as written.
		return tok
	}
	if len(runes) == 1 {
		// Standalone syllables are nearly always particles or fillers.
		return ""
	}
	return tok
}

func isHangul(r rune) bool {
	return r >= 0xAC00 && r <= 0xD7A3
}
