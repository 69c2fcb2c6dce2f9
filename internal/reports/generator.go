package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/fdg312/fitswift-hub/internal/healthdata"
	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"
)

// MetricsReader — то, что генератору нужно от хранилища метрик
type MetricsReader interface {
	GetDailyMetrics(ctx context.Context, profileID uuid.UUID, from, to string) ([]storage.DailyMetricRow, error)
	ListWorkouts(ctx context.Context, profileID uuid.UUID, from, to time.Time) ([]storage.WorkoutRow, error)
}

// DayRow — одна строка таблицы отчёта
type DayRow struct {
	Date        string
	Steps       int
	ActiveKcal  int
	ExerciseMin int
	StandHours  int
	Workouts    int
}

// Summary holds calculated summary statistics
type Summary struct {
	Days          int
	AvgSteps      int
	TotalKcal     int
	TotalExercise int
	Workouts      int
}

// Generator generates PDF/CSV reports
type Generator struct {
	metrics MetricsReader
	log     *zap.Logger
}

// NewGenerator creates a new report generator
func NewGenerator(metrics MetricsReader, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{metrics: metrics, log: log}
}

// GenerateReport generates a report and returns the data.
// Даты в req уже провалидированы сервисом.
func (g *Generator) GenerateReport(ctx context.Context, req CreateReportRequest) ([]byte, error) {
	rows, err := g.collectRows(ctx, req)
	if err != nil {
		return nil, err
	}

	switch req.Format {
	case FormatPDF:
		return g.generatePDF(req, rows)
	case FormatCSV:
		return g.generateCSV(rows)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

// collectRows собирает дни, за которые есть дневной агрегат или тренировка.
func (g *Generator) collectRows(ctx context.Context, req CreateReportRequest) ([]DayRow, error) {
	daily, err := g.metrics.GetDailyMetrics(ctx, req.ProfileID, req.From, req.To)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch daily metrics: %w", err)
	}

	from, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		return nil, ErrInvalidDate
	}
	to, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		return nil, ErrInvalidDate
	}
	workouts, err := g.metrics.ListWorkouts(ctx, req.ProfileID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workouts: %w", err)
	}

	byDate := make(map[string]*DayRow)
	row := func(date string) *DayRow {
		r, ok := byDate[date]
		if !ok {
			r = &DayRow{Date: date}
			byDate[date] = r
		}
		return r
	}

	for _, dm := range daily {
		act, err := healthdata.DecodeDailyActivity(dm.Payload)
		if err != nil {
			g.log.Debug("skip daily payload", zap.String("date", dm.Date), zap.Error(err))
			continue
		}
		r := row(dm.Date)
		r.Steps = act.Steps
		r.ActiveKcal = act.ActiveEnergyKcal
		r.ExerciseMin = act.ExerciseMin
		r.StandHours = act.StandHours
	}
	for _, w := range workouts {
		row(w.Start.UTC().Format("2006-01-02")).Workouts++
	}

	rows := make([]DayRow, 0, len(byDate))
	for _, r := range byDate {
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	return rows, nil
}

// generateCSV generates a CSV report
func (g *Generator) generateCSV(rows []DayRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"date", "steps", "active_energy_kcal", "exercise_min", "stand_hours", "workouts"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, r := range rows {
		record := []string{
			r.Date,
			strconv.Itoa(r.Steps),
			strconv.Itoa(r.ActiveKcal),
			strconv.Itoa(r.ExerciseMin),
			strconv.Itoa(r.StandHours),
			strconv.Itoa(r.Workouts),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// generatePDF generates a PDF report. Текст только латиницей, поэтому хватает core шрифта.
func (g *Generator) generatePDF(req CreateReportRequest, rows []DayRow) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	const fontName = "Arial"

	pdf.AddPage()

	pdf.SetFont(fontName, "B", 16)
	pdf.Cell(0, 10, "Activity Report")
	pdf.Ln(8)

	pdf.SetFont(fontName, "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s - %s", req.From, req.To))
	pdf.Ln(12)

	summary := calculateSummary(rows)

	pdf.SetFont(fontName, "B", 14)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont(fontName, "", 10)
	lines := []string{
		fmt.Sprintf("Days with data: %d", summary.Days),
		fmt.Sprintf("Average steps: %s", healthdata.FormatNumber(float64(summary.AvgSteps))),
		fmt.Sprintf("Active calories: %s kcal", healthdata.FormatNumber(float64(summary.TotalKcal))),
		fmt.Sprintf("Exercise: %s min", healthdata.FormatNumber(float64(summary.TotalExercise))),
		fmt.Sprintf("Workouts: %d", summary.Workouts),
	}
	for _, line := range lines {
		pdf.Cell(0, 6, line)
		pdf.Ln(5)
	}
	pdf.Ln(7)

	pdf.SetFont(fontName, "B", 14)
	pdf.Cell(0, 8, "Daily activity")
	pdf.Ln(8)

	drawDaysTable(pdf, rows, fontName)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return buf.Bytes(), nil
}

func calculateSummary(rows []DayRow) Summary {
	var s Summary
	var totalSteps int
	for _, r := range rows {
		totalSteps += r.Steps
		s.TotalKcal += r.ActiveKcal
		s.TotalExercise += r.ExerciseMin
		s.Workouts += r.Workouts
	}
	s.Days = len(rows)
	if s.Days > 0 {
		s.AvgSteps = totalSteps / s.Days
	}
	return s
}

func drawDaysTable(pdf *gofpdf.Fpdf, rows []DayRow, fontName string) {
	widths := []float64{30, 28, 32, 30, 28, 24}
	header := []string{"Date", "Steps", "Active kcal", "Exercise min", "Stand h", "Workouts"}

	pdf.SetFont(fontName, "B", 9)
	for i, h := range header {
		ln := 0
		if i == len(header)-1 {
			ln = 1
		}
		pdf.CellFormat(widths[i], 6, h, "1", ln, "C", false, 0, "")
	}

	pdf.SetFont(fontName, "", 9)
	for _, r := range rows {
		cells := []string{
			r.Date,
			healthdata.FormatNumber(float64(r.Steps)),
			strconv.Itoa(r.ActiveKcal),
			strconv.Itoa(r.ExerciseMin),
			strconv.Itoa(r.StandHours),
			strconv.Itoa(r.Workouts),
		}
		for i, c := range cells {
			ln := 0
			if i == len(cells)-1 {
				ln = 1
			}
			pdf.CellFormat(widths[i], 6, c, "1", ln, "C", false, 0, "")
		}
	}
}
