package pipeline

import (
	"fmt"
	"strings"
)

// Every prompt carries the profile block and the hard-constraint rules.
func profileSection(in PromptInput) string {
	return fmt.Sprintf("USER PROFILE:\n%s\n\nSTRICT RULES (never break these):\n%s", in.Profile.PromptBlock(), in.Profile.HardConstraints())
}

// TranslatePrompt turns the raw report into a plain-language explanation.
func TranslatePrompt(in PromptInput) string {
	return fmt.Sprintf(`You are a medical translator. Explain this medical report in SIMPLE language.

%s

MEDICAL REPORT:
%s

INSTRUCTIONS:
1. Keep it short, at most 200 words, at a 5th grade reading level.
2. Replace every technical term with everyday words.

FORMAT:
**What Your Report Shows:**
**What This Means For You:**
**Key Numbers:**
- [Test name]: [Value] ([Normal/High/Low] - normal is [range])
**Next Steps:**
`, profileSection(in), in.RawInput)
}

// RecommendDietPrompt builds diet recommendations from the translation.
func RecommendDietPrompt(in PromptInput) string {
	translation, _ := in.Output(StageTranslate)
	return fmt.Sprintf(`You are a clinical nutritionist. Create diet recommendations.

%s

HEALTH EXPLANATION:
%s

Provide these sections:

## RECOMMENDED DIET
## WHY THIS DIET
## FOODS TO INCLUDE
List 10-15 specific foods as bullet points, one food per line:
- Food name
## FOODS TO AVOID
List 10-15 specific foods as bullet points, one food per line:
- Food name
## MEAL TIMING
## KEY NUTRIENTS
## HYDRATION
## LIFESTYLE TIPS

All recommendations must respect the user's profile.
`, profileSection(in), translation)
}

// MealPlanPrompt builds a 7-day plan from the diet recommendation.
func MealPlanPrompt(in PromptInput) string {
	diet, _ := in.Output(StageRecommendDiet)
	return fmt.Sprintf(`You are a meal planner. Create a PRACTICAL 7-day meal plan.

%s

DIET RECOMMENDATIONS:
%s

Every meal must fit the cooking time preference and budget.

FORMAT:
## 7-DAY MEAL PLAN
### DAY 1 (Monday)
- Breakfast: [Meal] - [portion]
- Snack: [Snack]
- Lunch: [Meal] - [portion]
- Snack: [Snack]
- Dinner: [Meal] - [portion]
[Continue for all 7 days]
## QUICK RECIPES (Top 3)
## SHOPPING LIST
## MEAL PREP TIPS
`, profileSection(in), diet)
}

// QAPrompt answers a free-form question. The diet context, when present,
// is the only upstream output.
func QAPrompt(in PromptInput) string {
	var dietSection string
	if diet, ok := in.Output(StageRecommendDiet); ok && strings.TrimSpace(diet) != "" {
		dietSection = "\nTHEIR DIET PLAN (for context):\n" + diet + "\n"
	}
	return fmt.Sprintf(`You are a friendly nutrition advisor. Answer this question clearly.

%s
%s
QUESTION: %s

INSTRUCTIONS:
1. Give a direct answer first (1-2 sentences), then 2-4 bullet tips if helpful.
2. Keep it under 150 words.
3. If the question is about a food the profile excludes, explain why and offer compliant alternatives.

ANSWER:
`, profileSection(in), dietSection, in.RawInput)
}
