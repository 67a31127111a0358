// Package offline produces canned farming advice when no model backend
// can answer. Replies are chosen by keyword and are deterministic.
package offline

import "strings"

// Topic names a canned reply bucket.
type Topic string

const (
	TopicWeather Topic = "weather"
	TopicPest    Topic = "pest"
	TopicCrop    Topic = "crop"
	TopicPrice   Topic = "price"
	TopicDefault Topic = "default"
)

type bucket struct {
	topic    Topic
	keywords []string
}

// Buckets are checked in this order; the first keyword hit wins.
var buckets = []bucket{
	{TopicWeather, []string{"weather", "cloud", "rain"}},
	{TopicPest, []string{"pest", "bug", "disease"}},
	{TopicCrop, []string{"crop", "plant", "seed"}},
	{TopicPrice, []string{"price", "market", "cost"}},
}

var replies = map[Topic]string{
	TopicWeather: "Based on local data (simulated), it's currently 24°C with 60% humidity. Perfect for applying fertilizer.",
	TopicPest:    "For pest control, I recommend using organic neem oil spray. It's effective against aphids and whiteflies.",
	TopicCrop:    "Wheat and Corn are excellent choices for this season. Make sure to rotate your crops to maintain soil health.",
	TopicPrice:   "Market prices are stable. Wheat is trading at ₹2100/quintal and Corn at ₹1800/quintal.",
	TopicDefault: "I'm currently in Demo Mode because the AI service is unavailable. I can tell you that the weather looks good for planting wheat, and you should check your soil moisture levels!",
}

// Notes appended to an offline reply.
const (
	QuotaNote       = "(Note: I am in Offline Demo Mode because the API quota was exceeded. Please try again later.)"
	UnreachableNote = "(Note: I am in Offline Demo Mode because the AI Service is currently unreachable.)"
)

// Reason is why the offline tier answered.
type Reason int

const (
	ReasonUnreachable Reason = iota
	ReasonQuota
)

// Classify returns the topic for text by case-insensitive substring
// match.
func Classify(text string) Topic {
	lower := strings.ToLower(text)
	for _, b := range buckets {
		for _, kw := range b.keywords {
			if strings.Contains(lower, kw) {
				return b.topic
			}
		}
	}
	return TopicDefault
}

// Reply returns the canned reply for text without a note.
func Reply(text string) string {
	return replies[Classify(text)]
}

// Note returns the explanation appended for reason.
func Note(reason Reason) string {
	if reason == ReasonQuota {
		return QuotaNote
	}
	return UnreachableNote
}

// Respond returns the canned reply for text followed by a blank line
// and the note for reason. It never fails.
func Respond(text string, reason Reason) string {
	return Reply(text) + "\n\n" + Note(reason)
}
