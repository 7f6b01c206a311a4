// Package tarot holds the static tarot card lookup table used to synthesize
// prompt content. Cards are a fixed asset, not persisted state.
package tarot

import "sort"

// descriptions maps canonical card names to their reading text.
// The augmented chat variant injects these verbatim into the prompt.
var descriptions = map[string]string{
	"The Fool":             "New beginnings, spontaneity, and a leap of faith. The querent stands at the edge of something unknown and should trust the journey.",
	"The Magician":         "Manifestation and resourcefulness. All the tools needed are already at hand; willpower turns intention into reality.",
	"The High Priestess":   "Intuition and hidden knowledge. The answer is not in the outer world but in quiet inner certainty.",
	"The Empress":          "Abundance, nurture, and growth. Care given generously will return multiplied.",
	"The Emperor":          "Structure and authority. Stability comes from discipline and clear boundaries.",
	"The Hierophant":       "Tradition and guidance. Seek counsel from a mentor or a trusted institution before acting.",
	"The Lovers":           "Union and meaningful choice. A decision of the heart must align values with desire.",
	"The Chariot":          "Determination and victory through control. Opposing forces can be driven in one direction by sheer will.",
	"Strength":             "Courage and gentle power. Patience and compassion tame what force cannot.",
	"The Hermit":           "Solitude and inner searching. Withdraw to find the light that shows the next step.",
	"Wheel of Fortune":     "Cycles and turning points. Luck is shifting; what falls will rise again.",
	"Justice":              "Fairness, truth, and consequence. Every action is weighed; honesty restores balance.",
	"The Hanged Man":       "Surrender and new perspective. Progress comes from letting go, not pushing harder.",
	"Death":                "Endings and transformation. Something must close completely before the new can arrive.",
	"Temperance":           "Moderation and patience. Blend opposites gently; the middle path heals.",
	"The Devil":            "Attachment and restriction. The chains are self-made and can be removed the same way.",
	"The Tower":            "Sudden upheaval. A false foundation collapses so that truth can be rebuilt.",
	"The Star":             "Hope and renewal. After a difficult time, faith in the future is rewarded.",
	"The Moon":             "Illusion and uncertainty. Not everything is as it appears; wait for clarity before deciding.",
	"The Sun":              "Joy, success, and vitality. A period of warmth and straightforward good fortune.",
	"Judgement":            "Awakening and reckoning. An old chapter calls for honest evaluation and release.",
	"The World":            "Completion and fulfillment. A long cycle closes in wholeness; celebrate before beginning again.",
}

// Description returns the reading text for a card name.
// The second return is false when the card is unknown.
func Description(name string) (string, bool) {
	desc, ok := descriptions[name]
	return desc, ok
}

// Names returns all canonical card names in sorted order.
func Names() []string {
	names := make([]string, 0, len(descriptions))
	for name := range descriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
