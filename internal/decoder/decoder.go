// Package decoder turns legacy class identifiers into normalized course
// references. Decoding is pure and total: bad input yields an empty
// reference and warnings, never an error or a panic.
package decoder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/noah-isme/journey-reconciler/internal/catalog"
	"github.com/noah-isme/journey-reconciler/internal/models"
)

// Delimiter separates the segments of a compound legacy token.
const Delimiter = "_"

// WarningCode classifies a decoding warning.
type WarningCode string

const (
	WarnEmptyToken       WarningCode = "empty_token"
	WarnMalformedToken   WarningCode = "malformed_token"
	WarnUnknownProgram   WarningCode = "unknown_program"
	WarnUnmatchedPattern WarningCode = "unmatched_pattern"
	WarnPrefixMismatch   WarningCode = "prefix_mismatch"
	WarnProgramConflict  WarningCode = "program_conflict"
)

// Warning is an advisory note produced while decoding.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// Result carries the decoded reference alongside every warning raised.
type Result struct {
	Reference   models.DecodedCourseReference `json:"reference"`
	MatchedRule string                        `json:"matched_rule,omitempty"`
	Warnings    []Warning                     `json:"warnings,omitempty"`
}

// Unparsable reports whether no course code could be recovered.
func (r Result) Unparsable() bool {
	return r.Reference.Empty()
}

// Has reports whether a warning with code was raised.
func (r Result) Has(code WarningCode) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func (r *Result) warn(code WarningCode, format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, Warning{Code: code, Message: fmt.Sprintf(format, args...)})
}

var academicCode = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]*$`)

// Decoder decodes tokens against an immutable catalog. It is safe for
// concurrent use.
type Decoder struct {
	catalog *catalog.Catalog
}

// New builds a decoder bound to cat.
func New(cat *catalog.Catalog) *Decoder {
	return &Decoder{catalog: cat}
}

// segments is the positional view of a token. Accepted layouts:
//
//	EARLIER
//	EARLIER_LATER
//	PROGRAM_EARLIER_LATER
//	PROGRAM_MAJOR_EARLIER_LATER
//	TERM_PROGRAM_MAJOR_EARLIER_LATER
type segments struct {
	program string
	earlier string
	later   string
	single  bool
}

func split(token string) (segments, bool) {
	parts := strings.Split(token, Delimiter)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 1:
		return segments{earlier: parts[0], single: true}, true
	case 2:
		return segments{earlier: parts[0], later: parts[1]}, true
	case 3:
		return segments{program: parts[0], earlier: parts[1], later: parts[2]}, true
	case 4:
		return segments{program: parts[0], earlier: parts[2], later: parts[3]}, true
	case 5:
		return segments{program: parts[1], earlier: parts[3], later: parts[4]}, true
	default:
		return segments{}, false
	}
}

// Decode normalizes token for programCode. An empty programCode falls back to
// the program segment embedded in the token.
func (d *Decoder) Decode(token, programCode string) Result {
	var res Result
	res.Reference.Family = models.FamilyUnknown

	token = strings.TrimSpace(token)
	if token == "" {
		res.warn(WarnEmptyToken, "empty class identifier")
		return res
	}
	seg, ok := split(token)
	if !ok {
		res.warn(WarnMalformedToken, "token %q has an unexpected number of segments", token)
		return res
	}

	program := strings.ToUpper(strings.TrimSpace(programCode))
	embedded := strings.ToUpper(seg.program)
	switch {
	case program == "":
		program = embedded
	case embedded != "" && embedded != program:
		res.warn(WarnProgramConflict, "token program %s differs from record program %s", embedded, program)
	}
	res.Reference.ProgramCode = program

	p, known := d.catalog.Program(program)
	if !known {
		res.warn(WarnUnknownProgram, "program %q is not in the catalog", program)
		return res
	}
	res.Reference.Family = p.Family

	switch p.Family {
	case models.FamilyAcademic:
		d.decodeAcademic(&res, seg)
	case models.FamilyLanguage:
		d.decodeLanguage(&res, seg, p)
	default:
		res.warn(WarnUnknownProgram, "program %q has no decoding strategy", program)
		return res
	}

	if res.Unparsable() {
		return res
	}
	prefix := catalog.CoursePrefix(res.Reference.CourseCode)
	if !d.catalog.AllowedPrefix(program, prefix) {
		res.warn(WarnPrefixMismatch, "course %s has prefix %s not expected for program %s", res.Reference.CourseCode, prefix, program)
	}
	return res
}

func (d *Decoder) decodeAcademic(res *Result, seg segments) {
	course := seg.later
	if seg.single || course == "" {
		course = seg.earlier
	} else {
		res.Reference.Part = seg.earlier
	}
	course = strings.ToUpper(strings.Join(strings.Fields(course), ""))
	if !academicCode.MatchString(course) {
		res.Reference.Part = ""
		res.warn(WarnUnmatchedPattern, "academic course %q is not a course code", course)
		return
	}
	res.Reference.CourseCode = course
}

func (d *Decoder) decodeLanguage(res *Result, seg segments, p catalog.Program) {
	segment := strings.ToUpper(strings.TrimSpace(seg.earlier))
	course, section, rule, ok := matchLanguage(segment, p.CoursePrefix)
	if !ok || course == "" {
		res.warn(WarnUnmatchedPattern, "no language rule matches %q", seg.earlier)
		return
	}
	res.MatchedRule = rule
	res.Reference.CourseCode = course
	res.Reference.Section = section
	if !seg.single {
		res.Reference.Part = seg.later
	}
}
