package timeline

import (
	"strconv"
	"strings"
)

var letterGrades = map[string]struct{}{
	"A+": {}, "A": {}, "A-": {},
	"B+": {}, "B": {}, "B-": {},
	"C+": {}, "C": {}, "C-": {},
	"D+": {}, "D": {}, "D-": {},
	"F": {}, "P": {}, "NP": {}, "W": {}, "I": {}, "S": {}, "U": {},
}

// GradeUsable reports whether a ledger grade is present and parsable: a
// numeric mark between 0 and 100 or a recognised letter/status grade.
func GradeUsable(grade *string) bool {
	if grade == nil {
		return false
	}
	g := strings.ToUpper(strings.TrimSpace(*grade))
	if g == "" {
		return false
	}
	if _, ok := letterGrades[g]; ok {
		return true
	}
	v, err := strconv.ParseFloat(strings.Replace(g, ",", ".", 1), 64)
	if err != nil {
		return false
	}
	return v >= 0 && v <= 100
}
