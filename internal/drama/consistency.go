package drama

import (
	"strings"
	"unicode"
)

// Consistency is the default CharacterFactory. It derives a stable ID from the
// character name and leaves appearance and voice blank for later design.
type Consistency struct{}

// CreateCharacter implements CharacterFactory.
func (Consistency) CreateCharacter(profile CharacterProfile) Character {
	return Character{
		ID:          CharacterID(profile.Name),
		Name:        strings.TrimSpace(profile.Name),
		Description: strings.TrimSpace(profile.Description),
		Role:        strings.TrimSpace(profile.Role),
		Appearance: Appearance{
			Gender:   "unknown",
			Age:      "unknown",
			Features: []string{},
		},
		Personality:     []string{},
		ReferenceImages: []string{},
	}
}

// CharacterID converts a display name into a lowercase dash-separated slug.
// Letters from any script are kept so non-Latin names stay distinguishable.
func CharacterID(name string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(unicode.ToLower(r))
		default:
			pendingDash = true
		}
	}
	if b.Len() == 0 {
		return "character"
	}
	return "char-" + b.String()
}
