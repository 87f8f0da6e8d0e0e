// internal/nlp/normalizer.go
package nlp

import (
	"regexp"
	"strings"
)

// phoneticToLetter maps the NATO tokens used for grid columns a–j.
var phoneticToLetter = map[string]string{
	"alpha":   "a",
	"bravo":   "b",
	"charlie": "c",
	"delta":   "d",
	"echo":    "e",
	"foxtrot": "f",
	"golf":    "g",
	"hotel":   "h",
	"india":   "i",
	"juliet":  "j",
}

var wordToNumber = map[string]string{
	"zero":  "0",
	"one":   "1",
	"two":   "2",
	"three": "3",
	"four":  "4",
	"five":  "5",
	"six":   "6",
	"seven": "7",
	"eight": "8",
	"nine":  "9",
	"ten":   "10",
}

var (
	phoneticPattern = regexp.MustCompile(`\b(alpha|bravo|charlie|delta|echo|foxtrot|golf|hotel|india|juliet)\b`)
	numberPattern   = regexp.MustCompile(`\b(zero|one|two|three|four|five|six|seven|eight|nine|ten)\b`)
)

// Normalize rewrites an utterance into canonical form: phonetic grid letters
// become single letters and number words become digits. A phonetic token that
// is followed by a digit ("alpha 1") is a callsign and is left alone.
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = replacePhonetics(text)
	return numberPattern.ReplaceAllStringFunc(text, func(word string) string {
		return wordToNumber[word]
	})
}

func replacePhonetics(text string) string {
	matches := phoneticPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		b.WriteString(text[last:start])
		if followedByDigit(text[end:]) {
			b.WriteString(text[start:end])
		} else {
			b.WriteString(phoneticToLetter[text[start:end]])
		}
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

// followedByDigit reports whether rest starts with optional whitespace and a digit.
func followedByDigit(rest string) bool {
	rest = strings.TrimLeft(rest, " \t\r\n\f\v")
	return rest != "" && rest[0] >= '0' && rest[0] <= '9'
}
