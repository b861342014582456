package notifier

import (
	"fmt"
	"strings"
	"time"

	"MarketPulse/internal/model"
)

const (
	MoodTitle      = "Market Mood Update"
	DefaultTitle   = "LASA Dashboard"
	DefaultBody    = "You have a new notification"
	defaultIcon    = "/complogo.png"
	defaultImage   = "/testingnoti.png"
	defaultLinkURL = "/"
)

// Message is one push notification.
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Icon  string            `json:"icon,omitempty"`
	Badge string            `json:"badge,omitempty"`
	Image string            `json:"image,omitempty"`
	Link  string            `json:"link,omitempty"`
}

// WithDefaults fills blank fields with the dashboard's branding.
func (m Message) WithDefaults() Message {
	if m.Title == "" {
		m.Title = DefaultTitle
	}
	if m.Body == "" {
		m.Body = DefaultBody
	}
	if m.Icon == "" {
		m.Icon = defaultIcon
	}
	if m.Badge == "" {
		m.Badge = defaultIcon
	}
	if m.Image == "" {
		m.Image = defaultImage
	}
	if m.Link == "" {
		m.Link = defaultLinkURL
	}
	return m
}

// FormatMoodNotification builds the push message for a mood snapshot.
func FormatMoodNotification(snap model.MoodSnapshot) Message {
	dominant, pct := snap.Dominant()
	return Message{
		Title: MoodTitle,
		Body:  fmt.Sprintf("Today's market is %d%% %s", pct, dominant),
		Data: map[string]string{
			"type":     "market_mood",
			"bullish":  fmt.Sprint(snap.Bullish),
			"bearish":  fmt.Sprint(snap.Bearish),
			"neutral":  fmt.Sprint(snap.Neutral),
			"dominant": string(dominant),
		},
	}.WithDefaults()
}

func moodEmoji(s model.Status) string {
	switch s {
	case model.StatusBullish:
		return "🟢"
	case model.StatusBearish:
		return "🔴"
	default:
		return "⚪"
	}
}

// FormatMoodReport formats a mood broadcast for Telegram.
func FormatMoodReport(b *model.MoodBroadcast, at time.Time) string {
	var sb strings.Builder
	m := b.Mood
	sb.WriteString(fmt.Sprintf("%s <b>Market Mood</b> | %s\n\n", moodEmoji(m.Dominant), at.Format("2006-01-02 15:04")))
	sb.WriteString(fmt.Sprintf("Bullish: %d%%\n", m.Bullish))
	sb.WriteString(fmt.Sprintf("Bearish: %d%%\n", m.Bearish))
	sb.WriteString(fmt.Sprintf("Neutral: %d%%\n", m.Neutral))
	sb.WriteString(fmt.Sprintf("\nDominant: <b>%s</b> (%d%%)\n", m.Dominant, m.Percent))

	n := b.Notification
	if n.SentTo > 0 {
		sb.WriteString(fmt.Sprintf("\nPush: %d/%d delivered", n.SuccessCount, n.SentTo))
		if n.CleanedTokens > 0 {
			sb.WriteString(fmt.Sprintf(", %d stale tokens removed", n.CleanedTokens))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatIndexReport lists the strongest indices, at most limit of them.
func FormatIndexReport(aggs []model.IndexAggregate, limit int) string {
	if len(aggs) == 0 {
		return "No index data available."
	}
	if limit <= 0 || limit > len(aggs) {
		limit = len(aggs)
	}
	var sb strings.Builder
	sb.WriteString("📈 <b>Index Strength</b>\n\n")
	for _, a := range aggs[:limit] {
		sb.WriteString(fmt.Sprintf("%s: %d (%d↑ %d↓ of %d)\n",
			a.Name, a.StrengthScore, a.BullishCount, a.BearishCount, a.StocksCount))
	}
	return sb.String()
}

// FormatHelp lists the bot commands.
func FormatHelp() string {
	return "<b>Commands</b>\n" +
		"/mood - current market mood\n" +
		"/indices - index strength ranking\n" +
		"/broadcast - push the mood to all devices now\n" +
		"/help - this message"
}
