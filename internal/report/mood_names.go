package report

// UnknownMood names emoji outside the display vocabulary.
const UnknownMood = "Unknown"

var moodNames = map[string]string{
	"😊": "Happy",
	"😢": "Sad",
	"😡": "Angry",
	"😰": "Anxious",
	"😴": "Tired",
	"🥳": "Excited",
	"😍": "In love",
	"🤔": "Thoughtful",
}

// MoodName returns the display name of an emoji.
func MoodName(emoji string) string {
	if name, ok := moodNames[emoji]; ok {
		return name
	}
	return UnknownMood
}
