package model

// Status is a mood bucket.
type Status string

const (
	StatusBullish Status = "BULLISH"
	StatusBearish Status = "BEARISH"
	StatusNeutral Status = "NEUTRAL"
)

// MoodSnapshot is the market-wide bucket split for one evaluation. The three
// percentages always sum to exactly 100.
type MoodSnapshot struct {
	Bullish      int    `json:"bullish"`
	Bearish      int    `json:"bearish"`
	Neutral      int    `json:"neutral"`
	BullishCount int    `json:"bullishCount"`
	BearishCount int    `json:"bearishCount"`
	NeutralCount int    `json:"neutralCount"`
	Total        int    `json:"total"`
	Date         string `json:"date,omitempty"`
}

// Dominant returns the leading bucket and its percentage. Ties go to
// bullish first, then bearish.
func (m MoodSnapshot) Dominant() (Status, int) {
	switch {
	case m.Bullish >= m.Bearish && m.Bullish >= m.Neutral:
		return StatusBullish, m.Bullish
	case m.Bearish >= m.Bullish && m.Bearish >= m.Neutral:
		return StatusBearish, m.Bearish
	default:
		return StatusNeutral, m.Neutral
	}
}

// MoodBroadcast is the result of one mood computation plus notification
// fan-out.
type MoodBroadcast struct {
	ID           string              `json:"id"`
	Success      bool                `json:"success"`
	Mood         MoodSummary         `json:"mood"`
	Notification NotificationSummary `json:"notification"`
	Timestamp    string              `json:"timestamp"`
}

// MoodSummary is a MoodSnapshot plus its dominant bucket.
type MoodSummary struct {
	Bullish  int    `json:"bullish"`
	Bearish  int    `json:"bearish"`
	Neutral  int    `json:"neutral"`
	Dominant Status `json:"dominant"`
	Percent  int    `json:"percent"`
}

// NotificationSummary reports per-item delivery counts.
type NotificationSummary struct {
	Title         string   `json:"title"`
	Body          string   `json:"body"`
	SentTo        int      `json:"sentTo"`
	SuccessCount  int      `json:"successCount"`
	FailedCount   int      `json:"failedCount"`
	CleanedTokens int      `json:"cleanedTokens"`
	Errors        []string `json:"errors,omitempty"`
}
