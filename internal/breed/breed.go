// Package breed defines the cat breed records shared by the cache, the
// coordinator and the screens.
//
// Every type here is a plain comparable value. Updates replace a whole Breed;
// nothing mutates a field of a Breed that has already been handed out, which
// is what lets the cache share snapshots between goroutines without copying
// individual records.
package breed

import (
	"strings"
	"unicode/utf8"
)

// Weight carries the breed's weight range in both unit systems, as free text
// (for example "3 - 5").
type Weight struct {
	Metric   string
	Imperial string
}

// Ratings holds the twelve trait scores. Scores are conventionally 0-5 but
// the API does not enforce an upper bound, so none is enforced here either.
type Ratings struct {
	Adaptability     int
	AffectionLevel   int
	ChildFriendly    int
	DogFriendly      int
	EnergyLevel      int
	Grooming         int
	HealthIssues     int
	Intelligence     int
	SheddingLevel    int
	SocialNeeds      int
	StrangerFriendly int
	Vocalisation     int
}

// Trait is a named rating, used for ordered display.
type Trait struct {
	Name  string
	Score int
}

// Traits returns the ratings in a stable display order.
func (r Ratings) Traits() []Trait {
	return []Trait{
		{"Adaptability", r.Adaptability},
		{"Affection", r.AffectionLevel},
		{"Child friendly", r.ChildFriendly},
		{"Dog friendly", r.DogFriendly},
		{"Energy", r.EnergyLevel},
		{"Grooming", r.Grooming},
		{"Health issues", r.HealthIssues},
		{"Intelligence", r.Intelligence},
		{"Shedding", r.SheddingLevel},
		{"Social needs", r.SocialNeeds},
		{"Stranger friendly", r.StrangerFriendly},
		{"Vocalisation", r.Vocalisation},
	}
}

// Breed is a single cat breed. ID is stable and unique.
type Breed struct {
	ID               string
	Name             string
	AlternateNames   string
	Description      string
	Temperament      string // comma-joined, as delivered by the API
	Origin           string
	LifeSpan         string
	Weight           Weight
	Ratings          Ratings
	Rare             int
	ReferenceImageID string
	WikipediaURL     string // empty when unknown, never absent
}

// IsRare reports whether the API flags the breed as rare.
func (b Breed) IsRare() bool {
	return b.Rare > 0
}

// Temperaments splits the temperament text into trimmed, non-empty traits.
func (b Breed) Temperaments() []string {
	if strings.TrimSpace(b.Temperament) == "" {
		return nil
	}
	parts := strings.Split(b.Temperament, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Summary returns the description cut to at most maxRunes runes, ending in
// "..." when it had to be cut.
func (b Breed) Summary(maxRunes int) string {
	desc := strings.TrimSpace(b.Description)
	if maxRunes <= 0 || utf8.RuneCountInString(desc) <= maxRunes {
		return desc
	}
	runes := []rune(desc)
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return strings.TrimSpace(string(runes[:maxRunes-3])) + "..."
}

// MatchesName reports whether query is a case-insensitive substring of the
// breed name. A blank query matches every breed.
func (b Breed) MatchesName(query string) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(b.Name), strings.ToLower(q))
}

// Image is the resolved reference image of a breed.
type Image struct {
	ID     string
	URL    string
	Width  int
	Height int
}

// IsZero reports whether the image is unset.
func (i Image) IsZero() bool {
	return i == Image{}
}
