package decoder

import (
	"fmt"
	"regexp"
	"strconv"
)

// Rule is one entry of the language cascade: a compiled matcher and the
// transform applied to its submatches. The first matching rule wins.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	build   func(m []string, defaultPrefix string) (course, section string)
}

const (
	prefixGroup = `(IEAP|HSE|GE|ENG|E)`
	levelGroup  = `(\d{1,2})`
	todGroup    = `(AM|PM|M|N)`
	levelWords  = `(?:LEVEL|LVL|NIVEL|L)`
)

// Symbolic level codes appended to the program prefix.
const (
	levelPreBeginner = "PBEG"
	levelBeginner    = "BEG"
)

// languageRules is ordered most specific first. Several shapes are prefixes
// of one another: "IEAP-4M" also fits the level+section rule, so the
// time-of-day rules must run before it or "M" would be read as a section.
var languageRules = []Rule{
	{
		Name:    "pre_beginner",
		Pattern: regexp.MustCompile(`^(?:` + prefixGroup + `[- ]?)?(?:PRE[- ]?BEGINNER|PREBEG|PBEG)(?:[-/ ]([A-Z]))?$`),
		build: func(m []string, def string) (string, string) {
			return symbolic(def, levelPreBeginner), m[2]
		},
	},
	{
		Name:    "beginner",
		Pattern: regexp.MustCompile(`^(?:` + prefixGroup + `[- ]?)?(?:BEGINNER|BEG)(?:[-/ ]([A-Z]))?$`),
		build: func(m []string, def string) (string, string) {
			return symbolic(def, levelBeginner), m[2]
		},
	},
	{
		Name:    "prefix_level_time_section",
		Pattern: regexp.MustCompile(`^` + prefixGroup + `[- ]?` + levelGroup + `[- ]?` + todGroup + `[-/ ]([A-Z])$`),
		build: func(m []string, def string) (string, string) {
			return levelCode(resolvePrefix(m[1], def), m[2]), m[4]
		},
	},
	{
		Name:    "prefix_level_time",
		Pattern: regexp.MustCompile(`^` + prefixGroup + `[- ]?` + levelGroup + `[- ]?` + todGroup + `$`),
		build: func(m []string, def string) (string, string) {
			return levelCode(resolvePrefix(m[1], def), m[2]), ""
		},
	},
	{
		Name:    "prefix_level_section",
		Pattern: regexp.MustCompile(`^` + prefixGroup + `[- ]?` + levelGroup + `[-/ ]?([A-Z])$`),
		build: func(m []string, def string) (string, string) {
			return levelCode(resolvePrefix(m[1], def), m[2]), m[3]
		},
	},
	{
		Name:    "prefix_level",
		Pattern: regexp.MustCompile(`^` + prefixGroup + `[- ]?` + levelGroup + `$`),
		build: func(m []string, def string) (string, string) {
			return levelCode(resolvePrefix(m[1], def), m[2]), ""
		},
	},
	{
		Name:    "level_word_time",
		Pattern: regexp.MustCompile(`^` + levelWords + `[- ]?` + levelGroup + `[- ]?` + todGroup + `$`),
		build: func(m []string, def string) (string, string) {
			return levelCode(def, m[1]), ""
		},
	},
	{
		Name:    "level_word",
		Pattern: regexp.MustCompile(`^` + levelWords + `[- ]?` + levelGroup + `(?:[-/ ]?([A-Z]))?$`),
		build: func(m []string, def string) (string, string) {
			return levelCode(def, m[1]), m[2]
		},
	},
}

// RuleOrder returns the language rule names in evaluation order.
func RuleOrder() []string {
	names := make([]string, len(languageRules))
	for i, r := range languageRules {
		names[i] = r.Name
	}
	return names
}

func matchLanguage(segment, defaultPrefix string) (course, section, rule string, ok bool) {
	for _, r := range languageRules {
		m := r.Pattern.FindStringSubmatch(segment)
		if m == nil {
			continue
		}
		course, section = r.build(m, defaultPrefix)
		return course, section, r.Name, true
	}
	return "", "", "", false
}

// resolvePrefix keeps explicit program prefixes and maps the generic English
// markers to the program's own prefix.
func resolvePrefix(written, def string) string {
	switch written {
	case "", "E", "ENG":
		return def
	default:
		return written
	}
}

func levelCode(prefix, digits string) string {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s-%02d", prefix, n)
}

func symbolic(prefix, level string) string {
	return prefix + "-" + level
}
