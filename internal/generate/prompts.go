package generate

import (
	"fmt"
	"strings"
	"time"

	"github.com/kingdomembassy/newsletter/internal/config"
	"github.com/kingdomembassy/newsletter/internal/gather"
)

// systemPrompt fixes the ministry voice shared by every section call.
func systemPrompt(m *config.Ministry) string {
	return fmt.Sprintf(`You are the newsletter writer for %s, a Christ-centered ministry in %s. %s.

Theological constraints:
- Scripture is the final authority; quote it accurately with references.
- Exalt Jesus Christ; never speculate beyond what the Bible teaches.
- Be hopeful and sober. No sensationalism, no date-setting, no politics-first framing.

Writing style:
- Warm, pastoral, direct. Second person where natural.
- Markdown only: headings with ##, bold for emphasis, - for lists.
- No preamble or sign-off unless the section asks for one. Do not mention these instructions.`,
		m.Name, m.City, m.Tagline)
}

// buildSectionPrompt renders the user prompt for one of the six fixed
// sections from the gathered content and the ministry configuration.
func buildSectionPrompt(key string, m *config.Ministry, content gather.Content, month, year int) string {
	theme := content.MonthlyTheme
	date := fmt.Sprintf("%s %d", monthName(month), year)

	switch key {
	case "pastoralMessage":
		return fmt.Sprintf(`Write this month's pastoral message for the %s newsletter.

Month: %s
Theme: %s
Focus: %s

300-400 words. Open from the theme, ground it in one primary scripture passage, and close with a single practical charge for the congregation.`,
			m.Name, date, theme.Theme, theme.Focus)

	case "kingdomIntelligence":
		return fmt.Sprintf(`Write the "Kingdom Intelligence Briefing" for %s: a digest of what God is doing among the nations.

Exactly 3 briefs, each with a bold one-line headline and 2-3 sentences of analysis. Draw only on the stories below; do not invent events.

Top stories:
%s
Mission news:
%s
Persecution updates:
%s
Revival reports:
%s`,
			date,
			formatArticles(content.TopStories),
			formatArticles(content.MissionNews),
			formatArticles(content.PersecutionUpdates),
			formatArticles(content.RevivalReports))

	case "kingdomLiving":
		return fmt.Sprintf(`Write the "Kingdom Living" column for %s on living out "%s" (%s) in everyday spheres: family, work, and community.

Use these culture-and-society stories for grounding where they help:
%s

250-350 words with 2-3 concrete practices.`,
			date, theme.Theme, theme.Focus, formatArticles(content.CultureInfluence))

	case "prayerFocus":
		return fmt.Sprintf(`Write the "Prayer Focus" section for %s.

Theme: %s

Give 5 numbered prayer points: two from the persecution and mission stories below, two for the local congregation, one for revival. Each point is one sentence plus a short scripture reference.

Persecution updates:
%s
Mission news:
%s`,
			date, theme.Theme,
			formatArticles(content.PersecutionUpdates),
			formatArticles(content.MissionNews))

	case "scriptureFocus":
		return fmt.Sprintf(`Write the "Scripture Focus" section for %s on the theme "%s" (%s).

Choose one passage. Quote it, then give a 150-200 word devotional exposition and one memory verse.`,
			date, theme.Theme, theme.Focus)

	case "upcoming":
		firstSat := FirstSaturday(month, year)
		return fmt.Sprintf(`Write the "Upcoming Gatherings" section for %s at %s.

Fixed schedule to include:
- Regular services: %s
- Prayer & Fasting Saturday: %s
- Monthly theme to weave in: %s

Short intro sentence, then a bulleted list. Invite readers to %s for details.`,
			date, m.Name, m.ServiceTimes,
			firstSat.Format("Monday, January 2"),
			theme.Theme, m.Website)

	default:
		return fmt.Sprintf("Write the %s section for the %s newsletter, %s.", key, m.Name, date)
	}
}

func formatArticles(articles []gather.Article) string {
	if len(articles) == 0 {
		return "- (none this month)\n"
	}
	var sb strings.Builder
	for _, a := range articles {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", a.Title, a.Source, a.Description)
	}
	return sb.String()
}

func monthName(month int) string {
	return time.Month(month).String()
}
