package timeline

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedTerm is returned for term codes that cannot be placed in time.
var ErrMalformedTerm = errors.New("malformed term code")

// TermKey is the chronological position of a term: a year and the term's
// ordinal within that year (1-4).
type TermKey struct {
	Year    int
	Ordinal int
}

var (
	numberedTerm = regexp.MustCompile(`^(\d{4})[-/ ]?S?([1-4])$`)
	bannerTerm   = regexp.MustCompile(`^(\d{4})([1-4])0$`)
	seasonTerm   = regexp.MustCompile(`^(\d{4})[-/ ]?(WI|SP|SU|FA)$`)
)

var seasonOrdinal = map[string]int{"WI": 1, "SP": 2, "SU": 3, "FA": 4}

// ParseTermCode accepts "2019-1", "2019/2", "2019S1", "201910" and "2019FA".
func ParseTermCode(code string) (TermKey, error) {
	raw := strings.ToUpper(strings.TrimSpace(code))
	var yearText, ordText string
	switch {
	case numberedTerm.MatchString(raw):
		m := numberedTerm.FindStringSubmatch(raw)
		yearText, ordText = m[1], m[2]
	case bannerTerm.MatchString(raw):
		m := bannerTerm.FindStringSubmatch(raw)
		yearText, ordText = m[1], m[2]
	case seasonTerm.MatchString(raw):
		m := seasonTerm.FindStringSubmatch(raw)
		yearText, ordText = m[1], strconv.Itoa(seasonOrdinal[m[2]])
	default:
		return TermKey{}, fmt.Errorf("%w: %q", ErrMalformedTerm, code)
	}
	year, _ := strconv.Atoi(yearText)
	ordinal, _ := strconv.Atoi(ordText)
	if year < 1950 || year > 2100 {
		return TermKey{}, fmt.Errorf("%w: %q year out of range", ErrMalformedTerm, code)
	}
	return TermKey{Year: year, Ordinal: ordinal}, nil
}

// Less orders keys chronologically.
func (k TermKey) Less(other TermKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Ordinal < other.Ordinal
}

// String renders the canonical "YYYY-N" form.
func (k TermKey) String() string {
	return fmt.Sprintf("%04d-%d", k.Year, k.Ordinal)
}

var seasonCode = [...]string{"", "WI", "SP", "SU", "FA"}

// Spellings lists every upper-case code ParseTermCode maps to k, so a calendar
// kept in the ledger's own format can be looked up by key.
func (k TermKey) Spellings() []string {
	year := fmt.Sprintf("%04d", k.Year)
	ord := strconv.Itoa(k.Ordinal)
	out := []string{year + ord + "0"}
	for _, sep := range []string{"-", "/", " ", ""} {
		out = append(out, year+sep+ord, year+sep+"S"+ord)
		if k.Ordinal >= 1 && k.Ordinal < len(seasonCode) {
			out = append(out, year+sep+seasonCode[k.Ordinal])
		}
	}
	return out
}

// ApproxDates derives a quarter-sized window for terms missing from the
// calendar.
func (k TermKey) ApproxDates() (time.Time, time.Time) {
	start := time.Date(k.Year, time.Month(1+(k.Ordinal-1)*3), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, -1)
	return start, end
}
