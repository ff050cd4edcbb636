package report

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound is returned when a report id is unknown.
var ErrNotFound = errors.New("report not found")

const excerptLength = 500

// Report is one completed pipeline run kept for history. It is immutable once saved.
type Report struct {
	ID                 int64     `json:"report_id" db:"report_id"`
	SessionID          string    `json:"-" db:"session_id"`
	CreatedAt          time.Time `json:"timestamp" db:"created_at"`
	InputExcerpt       string    `json:"raw_input_excerpt" db:"input_excerpt"`
	Translation        string    `json:"translation" db:"translation"`
	DietRecommendation string    `json:"diet_recommendation" db:"diet_recommendation"`
	MealPlan           string    `json:"meal_plan" db:"meal_plan"`
	Conditions         []string  `json:"detected_conditions" db:"-"`
}

// New builds a report from the outputs of a successful run.
func New(sessionID, rawInput, translation, diet, mealPlan string, now time.Time) *Report {
	return &Report{
		ID:                 now.UnixMilli(),
		SessionID:          sessionID,
		CreatedAt:          now,
		InputExcerpt:       Excerpt(rawInput, excerptLength),
		Translation:        translation,
		DietRecommendation: diet,
		MealPlan:           mealPlan,
		Conditions:         DetectConditions(translation + " " + diet),
	}
}

// Excerpt cuts s to n runes and marks the cut with "...".
func Excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// GeneralHealth is reported when no condition keyword matches.
const GeneralHealth = "General Health"

type condition struct {
	name     string
	keywords []string
	re       *regexp.Regexp
}

var conditions = compileConditions([]condition{
	{name: "Diabetes", keywords: []string{"diabetes", "blood sugar", "glucose", "hba1c", "hyperglycemia", "insulin"}},
	{name: "High Cholesterol", keywords: []string{"cholesterol", "ldl", "hdl", "triglycerides", "lipid"}},
	{name: "Hypertension", keywords: []string{"hypertension", "blood pressure", "bp", "high pressure"}},
	{name: "Anemia", keywords: []string{"anemia", "iron", "hemoglobin", "ferritin", "low iron"}},
	{name: "Thyroid", keywords: []string{"thyroid", "tsh", "t3", "t4", "hypothyroid", "hyperthyroid"}},
	{name: "Kidney", keywords: []string{"kidney", "creatinine", "urea", "renal", "gfr"}},
	{name: "Liver", keywords: []string{"liver", "alt", "ast", "bilirubin", "hepatic"}},
	{name: "Vitamin D Deficiency", keywords: []string{"vitamin d", "vit d", "25-oh"}},
	{name: "Vitamin B12 Deficiency", keywords: []string{"vitamin b12", "b12", "cobalamin"}},
	{name: "Obesity", keywords: []string{"obesity", "bmi", "overweight", "weight loss"}},
	{name: "Heart Disease", keywords: []string{"heart", "cardiac", "cardiovascular", "coronary"}},
	{name: "PCOS", keywords: []string{"pcos", "polycystic", "ovarian"}},
	{name: "Uric Acid", keywords: []string{"uric acid", "gout", "urate"}},
})

func compileConditions(cs []condition) []condition {
	for i := range cs {
		var short, long []string
		for _, k := range cs[i].keywords {
			if len(k) <= 3 {
				short = append(short, regexp.QuoteMeta(k))
			} else {
				long = append(long, regexp.QuoteMeta(k))
			}
		}
		// Short markers like "ast" or "bp" must stand alone. Longer keywords
		// also match plurals and numbered forms ("kidneys", "vitamin d3").
		var alts []string
		if len(short) > 0 {
			alts = append(alts, `\b(?:`+strings.Join(short, "|")+`)\b`)
		}
		if len(long) > 0 {
			alts = append(alts, `\b(?:`+strings.Join(long, "|")+`)(?:s|es|\d+)?\b`)
		}
		cs[i].re = regexp.MustCompile(strings.Join(alts, "|"))
	}
	return cs
}

// DetectConditions returns the health conditions mentioned in text, in table order.
func DetectConditions(text string) []string {
	lower := strings.ToLower(text)
	var detected []string
	for _, c := range conditions {
		if c.re.MatchString(lower) {
			detected = append(detected, c.name)
		}
	}
	if len(detected) == 0 {
		return []string{GeneralHealth}
	}
	return detected
}

// Stats summarizes a session's report history.
type Stats struct {
	TotalReports        int            `json:"total_reports"`
	DistinctConditions  []string       `json:"distinct_conditions"`
	ConditionCounts     map[string]int `json:"condition_counts"`
	MostCommonCondition string         `json:"most_common_condition"`
	FirstReportDate     *time.Time     `json:"first_report_date"`
	LastReportDate      *time.Time     `json:"last_report_date"`
}

// ComputeStats summarizes reports given newest first.
func ComputeStats(reports []*Report) Stats {
	stats := Stats{
		TotalReports:        len(reports),
		DistinctConditions:  []string{},
		ConditionCounts:     map[string]int{},
		MostCommonCondition: "None",
	}
	if len(reports) == 0 {
		return stats
	}

	var order []string
	for _, r := range reports {
		for _, c := range r.Conditions {
			if _, ok := stats.ConditionCounts[c]; !ok {
				order = append(order, c)
			}
			stats.ConditionCounts[c]++
		}
	}
	best := 0
	for _, c := range order {
		if n := stats.ConditionCounts[c]; n > best {
			best = n
			stats.MostCommonCondition = c
		}
	}
	stats.DistinctConditions = order

	first := reports[len(reports)-1].CreatedAt
	last := reports[0].CreatedAt
	stats.FirstReportDate = &first
	stats.LastReportDate = &last
	return stats
}
