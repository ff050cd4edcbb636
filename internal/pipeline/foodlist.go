package pipeline

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// TableRows is the number of rows shown in the eat / avoid table.
const TableRows = 10

// FoodList is derived from a diet recommendation; it is recomputed, never edited.
type FoodList struct {
	Eat   []string `json:"eat_items"`
	Avoid []string `json:"avoid_items"`
}

// Empty reports whether no bullet item was recognized.
func (f FoodList) Empty() bool { return len(f.Eat) == 0 && len(f.Avoid) == 0 }

// FoodRow is one row of the display table.
type FoodRow struct {
	Eat   string `json:"eat"`
	Avoid string `json:"avoid"`
}

// Table pads both lists with empty strings to equal length and keeps the first TableRows rows.
func (f FoodList) Table() []FoodRow { return f.Rows(TableRows) }

// Rows is Table with a caller-chosen row limit.
func (f FoodList) Rows(max int) []FoodRow {
	n := len(f.Eat)
	if len(f.Avoid) > n {
		n = len(f.Avoid)
	}
	if n > max {
		n = max
	}
	rows := make([]FoodRow, n)
	for i := range rows {
		if i < len(f.Eat) {
			rows[i].Eat = f.Eat[i]
		}
		if i < len(f.Avoid) {
			rows[i].Avoid = f.Avoid[i]
		}
	}
	return rows
}

var (
	bulletPrefix = regexp.MustCompile(`^[-•*]\s*`)
	trailingNote = regexp.MustCompile(`\s*[:(].*$`)
)

func isBullet(line string) bool {
	return strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•") || strings.HasPrefix(line, "*")
}

// sectionLine is a trimmed, non-empty line with the avoid-section state in effect for it.
type sectionLine struct {
	text    string
	bullet  bool
	header  bool
	inAvoid bool
}

// scanSections walks text line by line. Non-bullet lines mentioning "avoid" or
// "limit" open an avoid section; non-bullet lines mentioning "include",
// "eat more" or "recommended" close it. Lines before any header count as eat.
// Plain substring checks are used, so prose containing those words also flips the state.
func scanSections(text string) []sectionLine {
	var out []sectionLine
	inAvoid := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		sl := sectionLine{text: line, bullet: isBullet(line)}
		if !sl.bullet {
			lower := strings.ToLower(line)
			switch {
			case strings.Contains(lower, "avoid") || strings.Contains(lower, "limit"):
				inAvoid = true
				sl.header = true
			case strings.Contains(lower, "include") || strings.Contains(lower, "eat more") || strings.Contains(lower, "recommended"):
				inAvoid = false
				sl.header = true
			}
		}
		sl.inAvoid = inAvoid
		out = append(out, sl)
	}
	return out
}

// ExtractFoodLists parses the eat / avoid bullet lists out of a diet recommendation.
// Food names must be 4 to 49 characters long; anything else is dropped silently.
// Zero recognized items is not an error: both lists come back empty.
func ExtractFoodLists(dietText string) FoodList {
	list := FoodList{Eat: []string{}, Avoid: []string{}}
	for _, sl := range scanSections(dietText) {
		if !sl.bullet {
			continue
		}
		food := bulletPrefix.ReplaceAllString(sl.text, "")
		food = trailingNote.ReplaceAllString(food, "")
		food = strings.TrimSpace(food)

		if n := utf8.RuneCountInString(food); n <= 3 || n >= 50 {
			continue
		}
		if sl.inAvoid {
			list.Avoid = append(list.Avoid, food)
		} else {
			list.Eat = append(list.Eat, food)
		}
	}
	return list
}
