package alerts

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/samvad-hq/alpha-hunter/internal/domain"
)

const maxKeywords = 3

// Formatter renders opportunities as Telegram HTML messages.
type Formatter struct {
	policy *bluemonday.Policy
	now    func() time.Time
}

// NewFormatter builds a formatter; a nil clock means time.Now.
func NewFormatter(now func() time.Time) *Formatter {
	if now == nil {
		now = time.Now
	}
	return &Formatter{policy: bluemonday.StrictPolicy(), now: now}
}

// Format renders one opportunity. Untrusted content is reduced to escaped
// plain text before it is placed inside markup.
func (f *Formatter) Format(opp domain.Opportunity) string {
	var b strings.Builder

	switch opp.Kind {
	case domain.KindImminentLaunch:
		f.writeLaunch(&b, opp)
	case domain.KindTrendingToken:
		f.writeTrend(&b, opp)
	default:
		fmt.Fprintf(&b, "<b>%s</b>\n", f.clean(string(opp.Kind)))
	}

	fmt.Fprintf(&b, "\n\n<i>%s</i>", f.now().UTC().Format("02/01 15:04:05 MST"))
	return b.String()
}

// StartupNotice announces that polling has started.
func (f *Formatter) StartupNotice(sourceIDs []string) string {
	var b strings.Builder
	b.WriteString("🚀 <b>Alpha Hunter started</b>\n")
	if len(sourceIDs) > 0 {
		fmt.Fprintf(&b, "🔍 Watching: %s\n", f.clean(strings.Join(sourceIDs, ", ")))
	}
	b.WriteString("🎯 Presales, imminent launches and trending tokens")
	return b.String()
}

func (f *Formatter) writeLaunch(b *strings.Builder, opp domain.Opportunity) {
	source := opp.SourceLabel()
	icon := "🌐"
	if source == string(domain.SourceTwitter) {
		icon = "🐦"
	}

	fmt.Fprintf(b, "🚨 <b>IMMINENT LAUNCH - %s</b> 🚨\n\n", strings.ToUpper(f.clean(source)))

	c := opp.Content
	if c == nil {
		fmt.Fprintf(b, "🔥 <b>Urgency:</b> %d\n", opp.UrgencyScore)
		return
	}

	fmt.Fprintf(b, "%s <b>%s</b>\n", icon, f.clean(c.Headline()))
	if c.URL != "" {
		fmt.Fprintf(b, "🔗 <a href=\"%s\">Original post</a>\n", html.EscapeString(c.URL))
	}
	fmt.Fprintf(b, "⭐ <b>Engagement:</b> %d ↑\n", c.Engagement.Score)
	fmt.Fprintf(b, "🔥 <b>Urgency:</b> %d\n", opp.UrgencyScore)
	fmt.Fprintf(b, "🎯 <b>Confidence:</b> %s\n", opp.Confidence)

	ti := opp.TimeInfo
	switch {
	case ti.EstimatedHours != nil:
		fmt.Fprintf(b, "⏰ <b>Launch in:</b> %d hours\n", *ti.EstimatedHours)
	case ti.EstimatedMinutes != nil:
		fmt.Fprintf(b, "⏰ <b>Launch in:</b> %d minutes\n", *ti.EstimatedMinutes)
	}
	if ti.SpecificTime != "" {
		fmt.Fprintf(b, "🕒 <b>Scheduled:</b> %s\n", f.clean(ti.SpecificTime))
	}

	if kws := c.Keywords; len(kws) > 0 {
		if len(kws) > maxKeywords {
			kws = kws[:maxKeywords]
		}
		fmt.Fprintf(b, "🔍 <b>Keywords:</b> %s\n", f.clean(strings.Join(kws, ", ")))
	}
	b.WriteString("\n⚡ <b>Early entry window</b>")
}

func (f *Formatter) writeTrend(b *strings.Builder, opp domain.Opportunity) {
	b.WriteString("📈 <b>TRENDING TOKEN</b>\n\n")
	fmt.Fprintf(b, "🏷 <b>Token:</b> $%s\n", f.clean(opp.Token))
	fmt.Fprintf(b, "🔊 <b>Mentions:</b> %d\n", opp.Mentions)
	fmt.Fprintf(b, "🌐 <b>Source:</b> %s\n", opp.SourceLabel())
	fmt.Fprintf(b, "🎯 <b>Confidence:</b> %s\n\n", opp.Confidence)
	b.WriteString("📢 <i>Mentioned across several posts</i>")
}

// clean strips any markup and escapes what is left for Telegram HTML.
func (f *Formatter) clean(s string) string {
	return strings.TrimSpace(f.policy.Sanitize(s))
}
