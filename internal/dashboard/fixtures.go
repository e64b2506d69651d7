package dashboard

// The chart data below is static demo content; only the call log and the
// headline stats are derived from state.

// DayVolume is one bar of the weekly call volume chart.
type DayVolume struct {
	Day   string `json:"name"`
	Calls int    `json:"calls"`
}

// AgentPerformance is one agent's row on the analytics tab.
type AgentPerformance struct {
	Name      string  `json:"name"`
	Calls     int     `json:"calls"`
	Rating    float64 `json:"rating"`
	Sentiment int     `json:"sentiment"`
}

// SentimentShare is one slice of the sentiment distribution.
type SentimentShare struct {
	Label   string `json:"name"`
	Percent int    `json:"value"`
	Color   Color  `json:"color"`
}

// HourVolume is one point of the hourly volume trend.
type HourVolume struct {
	Hour  string `json:"time"`
	Calls int    `json:"calls"`
}

// KPI is a headline card on the analytics tab. Change and Positive are
// omitted for cards without a trend.
type KPI struct {
	Title    string `json:"title"`
	Value    string `json:"value"`
	Change   string `json:"change,omitempty"`
	Positive *bool  `json:"isPositive,omitempty"`
}

// Analytics bundles everything the analytics tab renders.
type Analytics struct {
	KPIs           []KPI              `json:"kpis"`
	Agents         []AgentPerformance `json:"agents"`
	SentimentSplit []SentimentShare   `json:"sentiment"`
	HourlyVolume   []HourVolume       `json:"hourlyVolume"`
}

// WeeklyVolume returns the calls-per-weekday chart data, Monday first.
func WeeklyVolume() []DayVolume {
	return []DayVolume{
		{"Mon", 12}, {"Tue", 19}, {"Wed", 15}, {"Thu", 25},
		{"Fri", 32}, {"Sat", 10}, {"Sun", 8},
	}
}

func trend(positive bool) *bool { return &positive }

// AnalyticsFixtures returns the analytics tab content.
func AnalyticsFixtures() Analytics {
	return Analytics{
		KPIs: []KPI{
			{Title: "Avg Sentiment", Value: "82/100", Change: "4%", Positive: trend(true)},
			{Title: "Resolution Rate", Value: "94.5%", Change: "1.2%", Positive: trend(true)},
			{Title: "Avg Handle Time", Value: "4m 12s", Change: "12s", Positive: trend(false)},
			{Title: "Top Agent", Value: "Jessica"},
		},
		Agents: []AgentPerformance{
			{"Sarah", 145, 4.8, 85},
			{"Mike", 132, 4.5, 78},
			{"Jessica", 98, 4.9, 92},
			{"David", 115, 4.2, 70},
		},
		SentimentSplit: []SentimentShare{
			{"Positive", 65, ColorGreen},
			{"Neutral", 25, ColorOrange},
			{"Negative", 10, ColorRed},
		},
		HourlyVolume: []HourVolume{
			{"09:00", 12}, {"10:00", 25}, {"11:00", 32}, {"12:00", 18},
			{"13:00", 22}, {"14:00", 45}, {"15:00", 30}, {"16:00", 28},
		},
	}
}
