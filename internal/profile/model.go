package profile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidProfile is returned when a profile fails validation at the save boundary.
var ErrInvalidProfile = errors.New("invalid profile")

// DietType is the user's base diet.
type DietType string

const (
	Vegetarian    DietType = "Vegetarian"
	Vegan         DietType = "Vegan"
	Eggetarian    DietType = "Eggetarian"
	Pescatarian   DietType = "Pescatarian"
	NonVegetarian DietType = "Non-Vegetarian"
)

// Religious is a religious dietary restriction.
type Religious string

const (
	ReligiousNone  Religious = "None"
	Hindu          Religious = "Hindu"
	Halal          Religious = "Muslim/Halal"
	Kosher         Religious = "Kosher"
	Jain           Religious = "Jain"
	ReligiousOther Religious = "Other"
)

// CookingTime is how long the user is willing to cook per meal.
type CookingTime string

const (
	CookingQuick    CookingTime = "Under 15 minutes"
	CookingModerate CookingTime = "15-30 minutes"
	CookingRelaxed  CookingTime = "30-60 minutes"
	CookingAny      CookingTime = "No preference"
)

// ActivityLevel is the user's usual physical activity.
type ActivityLevel string

const (
	Sedentary        ActivityLevel = "Sedentary"
	LightlyActive    ActivityLevel = "Lightly Active"
	ModeratelyActive ActivityLevel = "Moderately Active"
	VeryActive       ActivityLevel = "Very Active"
)

// WeightGoal is the user's weight objective.
type WeightGoal string

const (
	LoseWeight     WeightGoal = "Lose Weight"
	MaintainWeight WeightGoal = "Maintain Weight"
	GainWeight     WeightGoal = "Gain Weight"
)

// Budget is the user's food budget.
type Budget string

const (
	BudgetLow    Budget = "Low"
	BudgetMedium Budget = "Medium"
	BudgetHigh   Budget = "High"
)

var (
	dietTypes      = []DietType{Vegetarian, Vegan, Eggetarian, Pescatarian, NonVegetarian}
	religions      = []Religious{ReligiousNone, Hindu, Halal, Kosher, Jain, ReligiousOther}
	cookingTimes   = []CookingTime{CookingQuick, CookingModerate, CookingRelaxed, CookingAny}
	activityLevels = []ActivityLevel{Sedentary, LightlyActive, ModeratelyActive, VeryActive}
	weightGoals    = []WeightGoal{LoseWeight, MaintainWeight, GainWeight}
	budgets        = []Budget{BudgetLow, BudgetMedium, BudgetHigh}
)

func oneOf[T ~string](v T, set []T) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

// UserProfile holds one user's durable dietary constraints and preferences.
// Allergies and diet / religious restrictions are hard constraints.
type UserProfile struct {
	Name                  string        `json:"name" db:"name"`
	DietType              DietType      `json:"diet_type,omitempty" db:"diet_type"`
	ReligiousRestrictions Religious     `json:"religious_restrictions,omitempty" db:"religious_restrictions"`
	Allergies             []string      `json:"allergies" db:"-"`
	DislikedFoods         []string      `json:"disliked_foods" db:"-"`
	CookingTime           CookingTime   `json:"cooking_time,omitempty" db:"cooking_time"`
	ActivityLevel         ActivityLevel `json:"activity_level,omitempty" db:"activity_level"`
	WeightGoal            WeightGoal    `json:"weight_goal,omitempty" db:"weight_goal"`
	Budget                Budget        `json:"budget,omitempty" db:"budget"`
}

// Normalize trims free-text fields and removes empty and duplicate set entries.
func (p *UserProfile) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Allergies = normalizeSet(p.Allergies)
	p.DislikedFoods = normalizeSet(p.DislikedFoods)
}

func normalizeSet(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

// Validate checks every enumerated field. Empty values are allowed and mean "not set".
func (p UserProfile) Validate() error {
	switch {
	case p.DietType != "" && !oneOf(p.DietType, dietTypes):
		return fmt.Errorf("%w: unknown diet_type %q", ErrInvalidProfile, p.DietType)
	case p.ReligiousRestrictions != "" && !oneOf(p.ReligiousRestrictions, religions):
		return fmt.Errorf("%w: unknown religious_restrictions %q", ErrInvalidProfile, p.ReligiousRestrictions)
	case p.CookingTime != "" && !oneOf(p.CookingTime, cookingTimes):
		return fmt.Errorf("%w: unknown cooking_time %q", ErrInvalidProfile, p.CookingTime)
	case p.ActivityLevel != "" && !oneOf(p.ActivityLevel, activityLevels):
		return fmt.Errorf("%w: unknown activity_level %q", ErrInvalidProfile, p.ActivityLevel)
	case p.WeightGoal != "" && !oneOf(p.WeightGoal, weightGoals):
		return fmt.Errorf("%w: unknown weight_goal %q", ErrInvalidProfile, p.WeightGoal)
	case p.Budget != "" && !oneOf(p.Budget, budgets):
		return fmt.Errorf("%w: unknown budget %q", ErrInvalidProfile, p.Budget)
	}
	for _, a := range p.Allergies {
		if len(a) > 60 {
			return fmt.Errorf("%w: allergy entry too long", ErrInvalidProfile)
		}
	}
	return nil
}

// IsZero reports whether nothing has been filled in.
func (p UserProfile) IsZero() bool {
	return p.Name == "" && p.DietType == "" && p.ReligiousRestrictions == "" &&
		len(p.Allergies) == 0 && len(p.DislikedFoods) == 0 && p.CookingTime == "" &&
		p.ActivityLevel == "" && p.WeightGoal == "" && p.Budget == ""
}

// Clone returns a deep copy, used as the read-only snapshot for a pipeline run.
func (p UserProfile) Clone() UserProfile {
	c := p
	c.Allergies = append([]string(nil), p.Allergies...)
	c.DislikedFoods = append([]string(nil), p.DislikedFoods...)
	return c
}

// PromptBlock formats the profile for inclusion in a prompt, one line per set field.
func (p UserProfile) PromptBlock() string {
	if p.IsZero() {
		return "No user profile available."
	}

	var lines []string
	if p.Name != "" {
		lines = append(lines, "Name: "+p.Name)
	}
	if p.DietType != "" {
		lines = append(lines, "Diet Type: "+string(p.DietType))
	}
	if p.ReligiousRestrictions != "" && p.ReligiousRestrictions != ReligiousNone {
		lines = append(lines, "Religious: "+string(p.ReligiousRestrictions))
	}
	if len(p.Allergies) > 0 {
		lines = append(lines, "ALLERGIES: "+strings.Join(p.Allergies, ", "))
	}
	if len(p.DislikedFoods) > 0 {
		lines = append(lines, "Dislikes: "+strings.Join(p.DislikedFoods, ", "))
	}
	if p.CookingTime != "" {
		lines = append(lines, "Cooking Time: "+string(p.CookingTime))
	}
	if p.Budget != "" {
		lines = append(lines, "Budget: "+string(p.Budget))
	}
	if p.ActivityLevel != "" {
		lines = append(lines, "Activity: "+string(p.ActivityLevel))
	}
	if p.WeightGoal != "" {
		lines = append(lines, "Goal: "+string(p.WeightGoal))
	}
	return strings.Join(lines, "\n")
}

// HardConstraints restates the rules no suggestion may break. It is never empty.
func (p UserProfile) HardConstraints() string {
	var lines []string
	if len(p.Allergies) > 0 {
		lines = append(lines, "- NEVER suggest these allergens or foods containing them: "+strings.Join(p.Allergies, ", "))
	} else {
		lines = append(lines, "- No food allergies on file.")
	}
	if p.DietType != "" {
		lines = append(lines, "- Diet type is "+string(p.DietType)+": never suggest foods outside it.")
	}
	if p.ReligiousRestrictions != "" && p.ReligiousRestrictions != ReligiousNone {
		lines = append(lines, "- Religious restriction is "+string(p.ReligiousRestrictions)+": never suggest foods it forbids.")
	}
	if len(p.DislikedFoods) > 0 {
		lines = append(lines, "- Avoid disliked foods: "+strings.Join(p.DislikedFoods, ", "))
	}
	return strings.Join(lines, "\n")
}
