package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const DefaultMaxLength = 10000

var (
	ErrEmptyPrompt   = errors.New("prompt is empty")
	ErrPromptTooLong = errors.New("prompt is too long")
	ErrGibberish     = errors.New("prompt does not look like a question")
)

// Validator checks prompts before anything is sent to the inference
// endpoint.
type Validator struct {
	MaxLength int
	// RejectGibberish turns on the keyboard-mashing heuristics.
	RejectGibberish bool
}

// ValidatePrompt trims prompt and returns it, or the reason it was refused.
func (v Validator) ValidatePrompt(prompt string) (string, error) {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return "", ErrEmptyPrompt
	}

	max := v.MaxLength
	if max <= 0 {
		max = DefaultMaxLength
	}
	if utf8.RuneCountInString(trimmed) > max {
		return "", errors.Wrapf(ErrPromptTooLong, "%d characters allowed", max)
	}

	if v.RejectGibberish && !IsValidPrompt(trimmed) {
		return "", ErrGibberish
	}
	return trimmed, nil
}

// ValidatePrompt applies the default rules.
func ValidatePrompt(prompt string) (string, error) {
	return Validator{}.ValidatePrompt(prompt)
}

// IsValidPrompt reports whether prompt reads like a question or command
// rather than keyboard mashing.
func IsValidPrompt(prompt string) bool {
	trimmed := strings.TrimSpace(prompt)
	if len(trimmed) < 3 {
		return false
	}

	words := strings.Fields(trimmed)
	if len(words) == 1 {
		return !isRepeatedCharacters(words[0])
	}

	if hasExcessiveRepetition(trimmed) || hasKeyboardMashing(trimmed) {
		return false
	}

	var letters, digits, punct, total int
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		default:
			punct++
		}
	}
	if total == 0 {
		return false
	}
	ratio := func(n int) float64 { return float64(n) / float64(total) }
	if ratio(letters) < 0.3 || ratio(digits) > 0.5 || ratio(punct) > 0.3 {
		return false
	}

	var short int
	for _, word := range words {
		if w := strings.Trim(word, ".,!?;:()[]{}\"'"); len(w) > 0 && len(w) <= 2 {
			short++
		}
	}
	if float64(short)/float64(len(words)) > 0.7 && !hasCommonWords(trimmed) {
		return false
	}
	return true
}

func isRepeatedCharacters(s string) bool {
	if len(s) < 3 {
		return false
	}
	return strings.Count(s, s[:1]) == len(s)
}

// hasExcessiveRepetition finds 4+ identical characters in a row, or a 2 or
// 3 character pattern repeated 4+ times.
func hasExcessiveRepetition(s string) bool {
	for size := 1; size <= 3; size++ {
		for i := 0; i+size*4 <= len(s); i++ {
			pattern := s[i : i+size]
			if strings.TrimSpace(pattern) == "" {
				continue
			}
			if strings.HasPrefix(s[i:], strings.Repeat(pattern, 4)) {
				return true
			}
		}
	}
	return false
}

var mashingPatterns = []string{"asdfghjkl", "qwertyuiop", "zxcvbnm", "asdf", "qwer", "zxcv", "hjkl"}

func hasKeyboardMashing(s string) bool {
	if len(s) >= 30 {
		return false
	}
	lower := strings.ToLower(s)
	for _, p := range mashingPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

var commonWords = regexp.MustCompile(`\b(the|is|are|was|what|which|who|when|where|why|how|show|list|top|by|of|in|per|and|for|to)\b`)

func hasCommonWords(s string) bool {
	return commonWords.MatchString(strings.ToLower(s))
}
