package quotes

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dongwonkwak/erpquote/internal/client"
)

// Placeholders the ERP (or users) put in the name of quotes that never got a number.
var placeholderNumbers = map[string]struct{}{
	"sin número": {},
	"sin numero": {},
	"new":        {},
	"draft":      {},
	"borrador":   {},
	"false":      {},
	"none":       {},
	"null":       {},
	"undefined":  {},
}

const minQuoteNumberLen = 3

var (
	prefixedNumber = regexp.MustCompile(`^[A-Za-z]+[-_/. ]*(\d+)`)
	digitRun       = regexp.MustCompile(`\d+`)
)

// IsValidQuoteNumber reports whether name looks like a real quote number.
func IsValidQuoteNumber(name string) bool {
	n := strings.TrimSpace(name)
	if n == "" {
		return false
	}
	if _, ok := placeholderNumbers[strings.ToLower(n)]; ok {
		return false
	}
	if utf8.RuneCountInString(n) < minQuoteNumberLen {
		return false
	}
	return strings.IndexFunc(n, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

// QuoteNumberSequence extracts the sequence number of a quote number:
// the digits after a leading letter prefix ("S00010" is 10), otherwise the
// largest digit run anywhere in the name, otherwise 0.
func QuoteNumberSequence(name string) int {
	n := strings.TrimSpace(name)
	if m := prefixedNumber.FindStringSubmatch(n); m != nil {
		v, _ := strconv.Atoi(m[1])
		return v
	}
	best := 0
	for _, run := range digitRun.FindAllString(n, -1) {
		if v, err := strconv.Atoi(run); err == nil && v > best {
			best = v
		}
	}
	return best
}

// ParseQuoteID normalises a quote id given as text.
func ParseQuoteID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidQuoteID, s)
	}
	return id, nil
}

const partnerUnavailable = "Cliente no disponible"

// NormalizePartner turns a partner_id value into an id and a display name.
// The remote sends [id, name], a bare id, or false.
func NormalizePartner(v any) (int, string) {
	id, name, ok := client.Many2One(v)
	if !ok {
		return 0, partnerUnavailable
	}
	if name == "" {
		name = fmt.Sprintf("Cliente ID: %d", id)
	}
	return id, name
}
