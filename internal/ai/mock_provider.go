package ai

import (
	"context"
	"strings"

	"github.com/fdg312/fitswift-hub/internal/toolcall"
)

// latestMessageMarker — метка последней реплики пользователя в промпте.
const latestMessageMarker = "User's latest message:"

// MockProvider — детерминированный провайдер для локальной разработки и тестов.
// Графики отдаются native вызовом, кольца активности и история тренировок —
// блоками tool_code / json в тексте, чтобы прогонять оба пути разбора.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return GenerateResponse{}, err
	}

	msg := strings.ToLower(latestMessage(req.Prompt))

	switch {
	case containsAny(msg, "activity ring", "rings", "my activity"):
		return GenerateResponse{
			Text: "Here are your activity rings for today.\n" +
				`tool_code {"name": "showActivity", "arguments": {}}`,
		}, nil

	case containsAny(msg, "workout history", "recent workouts", "my workouts"):
		rng := detectRange(msg)
		if rng == "day" {
			rng = "week"
		}
		return GenerateResponse{
			Text: "Here is your workout history.\n" +
				`json {"name": "showWorkoutHistory", "arguments": {"timeRange": "` + rng + `"}}`,
		}, nil

	case containsAny(msg, "chart", "graph", "plot", "visual"):
		metric := detectMetric(msg)
		rng := detectRange(msg)
		title := chartTitle(metric, rng)
		return GenerateResponse{
			Text: "Here's a chart of your " + metricLabel(metric) + ".",
			FunctionCalls: []toolcall.FunctionCall{{
				Name: toolcall.ToolShowChart,
				Args: map[string]any{
					"chartType":   "bar",
					"timeRange":   rng,
					"metric":      metric,
					"title":       title,
					"description": "Your " + metricLabel(metric) + " over the selected period",
				},
			}},
		}, nil

	case containsAny(msg, "step"):
		return GenerateResponse{
			Text: "Walking is one of the easiest ways to stay active. Aim for 8,000 steps a day and take short walks after meals.",
		}, nil

	default:
		return GenerateResponse{
			Text: "Stay consistent: a mix of cardio, strength training and rest days works best. Ask me to show a chart of your steps or calories.",
		}, nil
	}
}

func latestMessage(prompt string) string {
	i := strings.LastIndex(prompt, latestMessageMarker)
	if i < 0 {
		return prompt
	}
	return strings.TrimSpace(prompt[i+len(latestMessageMarker):])
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func detectMetric(msg string) string {
	switch {
	case containsAny(msg, "calorie", "kcal", "energy"):
		return string(toolcall.MetricCalories)
	case containsAny(msg, "exercise"):
		return string(toolcall.MetricExercise)
	case containsAny(msg, "stand"):
		return string(toolcall.MetricStandHours)
	case containsAny(msg, "workout"):
		return string(toolcall.MetricWorkouts)
	default:
		return string(toolcall.MetricSteps)
	}
}

func detectRange(msg string) string {
	switch {
	case containsAny(msg, "today", "hour"):
		return string(toolcall.RangeDay)
	case containsAny(msg, "month"):
		return string(toolcall.RangeMonth)
	case containsAny(msg, "year"):
		return string(toolcall.RangeYear)
	default:
		return string(toolcall.RangeWeek)
	}
}

func metricLabel(metric string) string {
	switch toolcall.Metric(metric) {
	case toolcall.MetricCalories:
		return "calories burned"
	case toolcall.MetricExercise:
		return "exercise minutes"
	case toolcall.MetricStandHours:
		return "stand hours"
	case toolcall.MetricWorkouts:
		return "workouts"
	default:
		return "steps"
	}
}

func chartTitle(metric, rng string) string {
	prefix := map[string]string{
		"day":   "Today's",
		"week":  "Weekly",
		"month": "Monthly",
		"year":  "Yearly",
	}[rng]

	label := metricLabel(metric)
	return prefix + " " + strings.ToUpper(label[:1]) + label[1:]
}
