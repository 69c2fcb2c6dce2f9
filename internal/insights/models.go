package insights

type Point struct {
	Label string `json:"label"`
	Date  string `json:"date"` // YYYY-MM-DD, для часов — RFC3339
	Value int    `json:"value"`
}

type SeriesResponse struct {
	ProfileID  string      `json:"profile_id"`
	Metric     string      `json:"metric"`
	Range      string      `json:"range"`
	Points     []Point     `json:"points"`
	Statistics Stats       `json:"statistics"`
	Trend      TrendResult `json:"trend"`
}

type InsightType string

const (
	TypeAchievement    InsightType = "Achievement"
	TypeObservation    InsightType = "Observation"
	TypeRecommendation InsightType = "Recommendation"
	TypeTrendAnalysis  InsightType = "Trend Analysis"
)

type Insight struct {
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Recommendation *string     `json:"recommendation,omitempty"`
	Type           InsightType `json:"type"`
}

type DailyInsightsResponse struct {
	ProfileID string    `json:"profile_id"`
	Date      string    `json:"date"`
	Insights  []Insight `json:"insights"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
