// Package toolcall turns generative model output into typed UI commands.
//
// A reply may carry native function calls or pseudo-JSON blocks embedded in
// its text after a "tool_code" or "json" token. Both encodings normalize to
// the same Command values, and unknown or malformed values fall back to
// defaults instead of failing.
package toolcall

import "strings"

// Tool names understood by the assistant.
const (
	ToolShowChart          = "showChart"
	ToolShowActivity       = "showActivity"
	ToolShowWorkoutHistory = "showWorkoutHistory"
)

type ChartType string

const (
	ChartBar  ChartType = "bar"
	ChartLine ChartType = "line"
	ChartPie  ChartType = "pie"
)

type TimeRange string

const (
	RangeDay   TimeRange = "day"
	RangeWeek  TimeRange = "week"
	RangeMonth TimeRange = "month"
	RangeYear  TimeRange = "year"
)

type Metric string

const (
	MetricSteps      Metric = "steps"
	MetricCalories   Metric = "calories"
	MetricExercise   Metric = "exercise"
	MetricWorkouts   Metric = "workouts"
	MetricStandHours Metric = "standHours"
)

// Command is one of ShowChart, ShowActivity or ShowWorkoutHistory.
type Command interface {
	// Tool returns the tool name the command was produced from.
	Tool() string
	isCommand()
}

// ShowChart asks the app to render a metric chart.
type ShowChart struct {
	ChartType   ChartType
	TimeRange   TimeRange
	Metric      Metric
	Title       *string
	Description *string
}

// ShowActivity asks the app to highlight today's activity rings.
type ShowActivity struct{}

// ShowWorkoutHistory asks the app to list recent workouts.
type ShowWorkoutHistory struct {
	TimeRange TimeRange
}

func (ShowChart) Tool() string          { return ToolShowChart }
func (ShowActivity) Tool() string       { return ToolShowActivity }
func (ShowWorkoutHistory) Tool() string { return ToolShowWorkoutHistory }

func (ShowChart) isCommand()          {}
func (ShowActivity) isCommand()       {}
func (ShowWorkoutHistory) isCommand() {}

// ParseChartType returns bar for anything it does not recognise.
func ParseChartType(s string) ChartType {
	switch ChartType(strings.TrimSpace(s)) {
	case ChartLine:
		return ChartLine
	case ChartPie:
		return ChartPie
	default:
		return ChartBar
	}
}

// ParseTimeRange returns week for anything it does not recognise.
func ParseTimeRange(s string) TimeRange {
	switch TimeRange(strings.TrimSpace(s)) {
	case RangeDay:
		return RangeDay
	case RangeMonth:
		return RangeMonth
	case RangeYear:
		return RangeYear
	default:
		return RangeWeek
	}
}

// ParseHistoryRange is ParseTimeRange without the day range, which workout
// history does not offer.
func ParseHistoryRange(s string) TimeRange {
	r := ParseTimeRange(s)
	if r == RangeDay {
		return RangeWeek
	}
	return r
}

// ParseMetric returns steps for anything it does not recognise.
func ParseMetric(s string) Metric {
	switch Metric(strings.TrimSpace(s)) {
	case MetricCalories:
		return MetricCalories
	case MetricExercise:
		return MetricExercise
	case MetricWorkouts:
		return MetricWorkouts
	case MetricStandHours:
		return MetricStandHours
	default:
		return MetricSteps
	}
}

// lookup reads one named argument; ok is false when it is absent.
type lookup func(key string) (string, bool)

// build maps a tool name and its arguments onto a Command. Unknown names
// yield nil.
func build(name string, arg lookup) Command {
	switch strings.TrimSpace(name) {
	case ToolShowChart:
		chartType, _ := arg("chartType")
		timeRange, _ := arg("timeRange")
		metric, _ := arg("metric")
		return ShowChart{
			ChartType:   ParseChartType(chartType),
			TimeRange:   ParseTimeRange(timeRange),
			Metric:      ParseMetric(metric),
			Title:       optional(arg, "title"),
			Description: optional(arg, "description"),
		}
	case ToolShowActivity:
		return ShowActivity{}
	case ToolShowWorkoutHistory:
		timeRange, _ := arg("timeRange")
		return ShowWorkoutHistory{TimeRange: ParseHistoryRange(timeRange)}
	default:
		return nil
	}
}

func optional(arg lookup, key string) *string {
	v, ok := arg(key)
	if !ok {
		return nil
	}
	return &v
}
