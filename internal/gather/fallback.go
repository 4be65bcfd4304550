package gather

import "time"

// monthlyThemes maps each calendar month to its editorial theme. The
// mapping is deliberately hardcoded; it is the ministry's liturgical
// calendar, not an operator setting.
var monthlyThemes = map[time.Month]Theme{
	time.January:   {Theme: "New Beginnings in the Kingdom", Focus: "Fresh vision, consecration, and first fruits"},
	time.February:  {Theme: "The Love of the Father", Focus: "Covenant love expressed in family and community"},
	time.March:     {Theme: "The Cross and the Crown", Focus: "The suffering and triumph of Christ"},
	time.April:     {Theme: "Resurrection Power", Focus: "Living in the reality of the empty tomb"},
	time.May:       {Theme: "The Spirit Poured Out", Focus: "Pentecost and the empowered church"},
	time.June:      {Theme: "Faithful in the Field", Focus: "Work, witness, and the harvest"},
	time.July:      {Theme: "Freedom in Christ", Focus: "Liberty from sin and fear"},
	time.August:    {Theme: "Equipping the Saints", Focus: "Discipleship and spiritual formation"},
	time.September: {Theme: "A People Prepared", Focus: "Holiness and readiness"},
	time.October:   {Theme: "The Harvest Is Plentiful", Focus: "Missions and the unreached"},
	time.November:  {Theme: "A Thankful Kingdom", Focus: "Gratitude and generosity"},
	time.December:  {Theme: "The King Has Come", Focus: "Advent and the incarnation"},
}

// ThemeForMonth returns the theme for a 1-12 month value, wrapping
// cyclically for out-of-range input.
func ThemeForMonth(month int) Theme {
	m := ((month-1)%12+12)%12 + 1
	return monthlyThemes[time.Month(m)]
}

// fallbackContent is the curated dataset used when live fetching yields
// nothing at all. The articles are evergreen and theme-agnostic; the
// monthly theme still varies by month.
func fallbackContent(month int) Content {
	top := []Article{
		{
			Title:          "Underground Church Growth Accelerates Across Iran",
			Link:           "https://kingdomembassy.org/intel/iran-growth",
			Description:    "House church networks report sustained growth despite pressure, with believers meeting in homes across major cities.",
			Category:       "persecution",
			Source:         "Curated",
			RelevanceScore: 4,
		},
		{
			Title:          "Campus Prayer Movements Spread to Forty Universities",
			Link:           "https://kingdomembassy.org/intel/campus-prayer",
			Description:    "Student-led worship and prayer gatherings that began at a single chapel have spread across the country, with baptisms reported weekly.",
			Category:       "revival",
			Source:         "Curated",
			RelevanceScore: 4,
		},
		{
			Title:          "Bible Translation Reaches Milestone Among Unreached Peoples",
			Link:           "https://kingdomembassy.org/intel/translation-milestone",
			Description:    "Translators completed New Testaments in a dozen languages this year, putting scripture in the hands of communities hearing the gospel for the first time.",
			Category:       "missions",
			Source:         "Curated",
			RelevanceScore: 3,
		},
		{
			Title:          "Churches Partner With Schools to Serve Families",
			Link:           "https://kingdomembassy.org/intel/school-partnerships",
			Description:    "Congregations in several cities are adopting local schools, providing tutoring and meals as a witness of Kingdom culture in education.",
			Category:       "culture",
			Source:         "Curated",
			RelevanceScore: 3,
		},
	}

	return Content{
		TopStories: top,
		MissionNews: []Article{
			top[2],
		},
		PersecutionUpdates: []Article{
			top[0],
		},
		RevivalReports: []Article{
			top[1],
		},
		CultureInfluence: []Article{
			top[3],
		},
		MonthlyTheme: ThemeForMonth(month),
		IsFallback:   true,
	}
}
