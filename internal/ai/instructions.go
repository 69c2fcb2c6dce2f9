package ai

import (
	"github.com/fdg312/fitswift-hub/internal/toolcall"
)

// SystemInstruction описывает ассистенту доступные инструменты и формат их вызова.
const SystemInstruction = `You are a fitness assistant helping with workout advice, step tracking, and general fitness information.

You have access to tools that can show charts and visualizations. When the user asks to see their data visually or asks for charts/graphs, use the appropriate tool:
- Use showChart to display fitness metrics as charts
- Use showActivity to display the user's activity rings
- Use showWorkoutHistory to show recent workouts

For showChart, you need to specify:
- chartType: "bar", "line", or "pie"
- timeRange: "day", "week", "month", or "year"
- metric: "steps", "calories", "exercise", "workouts", or "standHours"
- title: A title for the chart
- description: A brief description of what the chart shows

For showWorkoutHistory, you need to specify:
- timeRange: "week", "month", or "year"

For showActivity, no parameters are needed.

Example tool calls:
{"name": "showChart", "arguments": {"chartType": "bar", "timeRange": "week", "metric": "steps", "title": "Weekly Steps", "description": "Your step count over the past week"}}
{"name": "showActivity", "arguments": {}}
{"name": "showWorkoutHistory", "arguments": {"timeRange": "week"}}`

// ToolParam — строковый параметр инструмента.
type ToolParam struct {
	Name        string
	Description string
	Enum        []string
}

// ToolSpec — провайдер-независимое описание инструмента.
type ToolSpec struct {
	Name        string
	Description string
	Params      []ToolParam
	Required    []string
}

// Tools — инструменты, которые объявляются модели как native function declarations.
var Tools = []ToolSpec{
	{
		Name:        toolcall.ToolShowChart,
		Description: "Display a fitness metric as a chart",
		Params: []ToolParam{
			{Name: "chartType", Description: "Type of chart", Enum: []string{"bar", "line", "pie"}},
			{Name: "timeRange", Description: "Time range of the data", Enum: []string{"day", "week", "month", "year"}},
			{Name: "metric", Description: "Fitness metric to chart", Enum: []string{"steps", "calories", "exercise", "workouts", "standHours"}},
			{Name: "title", Description: "A title for the chart"},
			{Name: "description", Description: "A brief description of what the chart shows"},
		},
		Required: []string{"chartType", "timeRange", "metric"},
	},
	{
		Name:        toolcall.ToolShowActivity,
		Description: "Display the user's activity rings",
	},
	{
		Name:        toolcall.ToolShowWorkoutHistory,
		Description: "Show the user's recent workouts",
		Params: []ToolParam{
			{Name: "timeRange", Description: "How far back to list workouts", Enum: []string{"week", "month", "year"}},
		},
		Required: []string{"timeRange"},
	},
}
