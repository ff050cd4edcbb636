package pipeline

import (
	"regexp"
	"strings"

	"dietchain/internal/profile"
)

// Violation is a line of stage output that appears to recommend a food the profile excludes.
type Violation struct {
	Stage  StageName `json:"stage"`
	Term   string    `json:"term"`
	Reason string    `json:"reason"`
	Line   string    `json:"line"`
}

// A cue at the end of the clause before a food, optionally followed by one
// qualifier ("no peanuts", "avoid raw peanuts"), means the food is excluded.
var negatedBefore = regexp.MustCompile(`(?:^|[^a-z])(?:avoid|avoiding|no|not|without|never|skip|limit|replace|instead of|allergic to|free of|free from)(?:\s+[a-z-]+)?\s*$`)

// "peanut-free", "peanut free".
var freeSuffix = regexp.MustCompile(`^[- ]free\b`)

const clauseBreaks = ",;:.()!?"

type termMatcher struct {
	term profile.Term
	re   *regexp.Regexp
}

// recommended reports whether the term appears in line outside a negated phrase.
func (m termMatcher) recommended(lower string) bool {
	for _, ex := range m.term.Except {
		lower = strings.ReplaceAll(lower, ex, strings.Repeat(" ", len(ex)))
	}
	for _, loc := range m.re.FindAllStringIndex(lower, -1) {
		if !negated(lower, loc[0], loc[1]) {
			return true
		}
	}
	return false
}

func negated(lower string, start, end int) bool {
	if freeSuffix.MatchString(lower[end:]) {
		return true
	}
	clause := lower[:start]
	if i := strings.LastIndexAny(clause, clauseBreaks); i >= 0 {
		clause = clause[i+1:]
	}
	if i := strings.LastIndex(clause, " but "); i >= 0 {
		clause = clause[i+len(" but "):]
	}
	return negatedBefore.MatchString(clause)
}

func compileTerms(p profile.UserProfile) []termMatcher {
	terms := p.ForbiddenTerms()
	matchers := make([]termMatcher, 0, len(terms))
	for _, t := range terms {
		forms := []string{regexp.QuoteMeta(t.Word)}
		for _, f := range singulars(t.Word) {
			forms = append(forms, regexp.QuoteMeta(f))
		}
		re := regexp.MustCompile(`\b(?:` + strings.Join(forms, "|") + `)(?:s|es)?\b`)
		matchers = append(matchers, termMatcher{term: t, re: re})
	}
	return matchers
}

// singulars guesses the singular forms of an English food word.
func singulars(word string) []string {
	var out []string
	add := func(s string) {
		if len(s) >= 3 && s != word {
			out = append(out, s)
		}
	}
	switch {
	case strings.HasSuffix(word, "ies"):
		add(strings.TrimSuffix(word, "ies") + "y")
	case strings.HasSuffix(word, "es"):
		add(strings.TrimSuffix(word, "es"))
		add(strings.TrimSuffix(word, "s"))
	case strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss"):
		add(strings.TrimSuffix(word, "s"))
	}
	return out
}

// CheckOutput scans stage output for lines that mention an excluded food outside
// an avoid section, unless a negation cue governs that mention. It is a heuristic safety net over
// the prompt rules, not a guarantee.
func CheckOutput(stage StageName, text string, p profile.UserProfile) []Violation {
	matchers := compileTerms(p)
	if len(matchers) == 0 {
		return nil
	}

	var violations []Violation
	for _, sl := range scanSections(text) {
		if sl.inAvoid || sl.header {
			continue
		}
		lower := strings.ToLower(sl.text)
		for _, m := range matchers {
			if m.recommended(lower) {
				violations = append(violations, Violation{
					Stage:  stage,
					Term:   m.term.Word,
					Reason: m.term.Reason,
					Line:   sl.text,
				})
			}
		}
	}
	return violations
}
