package catapi

import (
	"strings"

	"github.com/five82/tabby/internal/breed"
)

// BreedPayload mirrors a breed object returned by /breeds, /breeds/{id} and
// /breeds/search.
type BreedPayload struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	AltNames         string        `json:"alt_names"`
	Description      string        `json:"description"`
	Temperament      string        `json:"temperament"`
	Origin           string        `json:"origin"`
	LifeSpan         string        `json:"life_span"`
	Weight           WeightPayload `json:"weight"`
	Adaptability     int           `json:"adaptability"`
	AffectionLevel   int           `json:"affection_level"`
	ChildFriendly    int           `json:"child_friendly"`
	DogFriendly      int           `json:"dog_friendly"`
	EnergyLevel      int           `json:"energy_level"`
	Grooming         int           `json:"grooming"`
	HealthIssues     int           `json:"health_issues"`
	Intelligence     int           `json:"intelligence"`
	SheddingLevel    int           `json:"shedding_level"`
	SocialNeeds      int           `json:"social_needs"`
	StrangerFriendly int           `json:"stranger_friendly"`
	Vocalisation     int           `json:"vocalisation"`
	Rare             int           `json:"rare"`
	WikipediaURL     string        `json:"wikipedia_url"`
	ReferenceImageID string        `json:"reference_image_id"`
}

// WeightPayload mirrors the nested weight object.
type WeightPayload struct {
	Imperial string `json:"imperial"`
	Metric   string `json:"metric"`
}

// ImagePayload mirrors /images/{id}.
type ImagePayload struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ToBreed maps the wire model to the domain model. Absent fields decode to
// their zero values, so the mapping is total: missing text becomes "" and
// missing ratings become 0.
func (p BreedPayload) ToBreed() breed.Breed {
	return breed.Breed{
		ID:             strings.TrimSpace(p.ID),
		Name:           strings.TrimSpace(p.Name),
		AlternateNames: strings.TrimSpace(p.AltNames),
		Description:    strings.TrimSpace(p.Description),
		Temperament:    strings.TrimSpace(p.Temperament),
		Origin:         strings.TrimSpace(p.Origin),
		LifeSpan:       strings.TrimSpace(p.LifeSpan),
		Weight: breed.Weight{
			Metric:   strings.TrimSpace(p.Weight.Metric),
			Imperial: strings.TrimSpace(p.Weight.Imperial),
		},
		Ratings: breed.Ratings{
			Adaptability:     p.Adaptability,
			AffectionLevel:   p.AffectionLevel,
			ChildFriendly:    p.ChildFriendly,
			DogFriendly:      p.DogFriendly,
			EnergyLevel:      p.EnergyLevel,
			Grooming:         p.Grooming,
			HealthIssues:     p.HealthIssues,
			Intelligence:     p.Intelligence,
			SheddingLevel:    p.SheddingLevel,
			SocialNeeds:      p.SocialNeeds,
			StrangerFriendly: p.StrangerFriendly,
			Vocalisation:     p.Vocalisation,
		},
		Rare:             p.Rare,
		ReferenceImageID: strings.TrimSpace(p.ReferenceImageID),
		WikipediaURL:     strings.TrimSpace(p.WikipediaURL),
	}
}

// ToImage maps the wire image to the domain image.
func (p ImagePayload) ToImage() breed.Image {
	return breed.Image{
		ID:     strings.TrimSpace(p.ID),
		URL:    strings.TrimSpace(p.URL),
		Width:  p.Width,
		Height: p.Height,
	}
}

func toBreeds(payloads []BreedPayload) []breed.Breed {
	out := make([]breed.Breed, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, p.ToBreed())
	}
	return out
}
