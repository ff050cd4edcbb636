package profile

import "strings"

var (
	meats     = []string{"chicken", "beef", "pork", "mutton", "lamb", "goat", "turkey", "duck", "bacon", "ham", "sausage", "veal"}
	seafood   = []string{"fish", "salmon", "tuna", "sardine", "mackerel", "shrimp", "prawn", "crab", "lobster", "oyster", "mussel", "squid"}
	eggs      = []string{"egg", "omelette"}
	dairy     = []string{"milk", "cheese", "paneer", "yogurt", "curd", "butter", "ghee", "cream", "whey"}
	shellfish = []string{"shrimp", "prawn", "crab", "lobster", "oyster", "mussel", "clam", "squid"}
	rootVeg   = []string{"onion", "garlic", "potato", "carrot", "beetroot", "radish", "ginger"}
)

// Plant foods whose names contain an animal-product word.
var plantCompounds = map[string][]string{
	"butter": {"peanut butter", "almond butter", "cashew butter", "nut butter", "seed butter", "cocoa butter", "apple butter"},
	"milk":   {"coconut milk", "soy milk", "almond milk", "oat milk", "rice milk", "cashew milk"},
	"cream":  {"coconut cream", "cashew cream"},
	"cheese": {"vegan cheese", "cashew cheese"},
}

// Term is a food that must never be recommended, with the reason it is excluded.
type Term struct {
	Word   string
	Reason string
	// Except lists phrases containing Word that name a different, allowed food.
	Except []string
}

// ForbiddenTerms lists every food term the profile excludes: allergens first,
// then diet-type and religious exclusions.
func (p UserProfile) ForbiddenTerms() []Term {
	var terms []Term
	seen := map[string]bool{}
	add := func(reason string, words ...string) {
		for _, w := range words {
			key := strings.ToLower(strings.TrimSpace(w))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			t := Term{Word: key, Reason: reason}
			if reason != "allergy" {
				t.Except = plantCompounds[key]
			}
			terms = append(terms, t)
		}
	}

	add("allergy", p.Allergies...)

	switch p.DietType {
	case Vegetarian:
		add("diet: "+string(p.DietType), meats...)
		add("diet: "+string(p.DietType), seafood...)
	case Eggetarian:
		add("diet: "+string(p.DietType), meats...)
		add("diet: "+string(p.DietType), seafood...)
	case Vegan:
		add("diet: "+string(p.DietType), meats...)
		add("diet: "+string(p.DietType), seafood...)
		add("diet: "+string(p.DietType), eggs...)
		add("diet: "+string(p.DietType), dairy...)
		add("diet: "+string(p.DietType), "honey")
	case Pescatarian:
		add("diet: "+string(p.DietType), meats...)
	}

	switch p.ReligiousRestrictions {
	case Hindu:
		add("religion: "+string(p.ReligiousRestrictions), "beef", "veal")
	case Halal:
		add("religion: "+string(p.ReligiousRestrictions), "pork", "bacon", "ham", "lard", "alcohol", "wine", "beer")
	case Kosher:
		add("religion: "+string(p.ReligiousRestrictions), "pork", "bacon", "ham", "lard")
		add("religion: "+string(p.ReligiousRestrictions), shellfish...)
	case Jain:
		add("religion: "+string(p.ReligiousRestrictions), meats...)
		add("religion: "+string(p.ReligiousRestrictions), seafood...)
		add("religion: "+string(p.ReligiousRestrictions), eggs...)
		add("religion: "+string(p.ReligiousRestrictions), rootVeg...)
		add("religion: "+string(p.ReligiousRestrictions), "honey")
	}

	return terms
}
