package reporting

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/apperr"
	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	repo "github.com/mamadbah2/milkmatrix/internal/repository/sheets"
	"github.com/mamadbah2/milkmatrix/internal/service/milk"
)

const (
	dateLayout     = models.DateLayout
	milkDataRange  = "Milk!A:F"
	milkHeaderCell = "Milk!A1:F1"
	exportSheet    = "Milk"
)

var milkHeader = []interface{}{"Date", "Total liters", "Records", "Avg fat %", "Avg protein %", "Open alerts"}

// MilkLister lists milk records created in a window.
type MilkLister interface {
	Between(ctx context.Context, start, end time.Time) ([]models.MilkRecord, error)
}

// AlertLister lists open health alerts.
type AlertLister interface {
	Alerts(ctx context.Context) ([]models.HealthRecord, error)
}

// Archive keeps published reports.
type Archive interface {
	SaveDailyReport(ctx context.Context, report models.DailyReport) error
}

// Service builds production reports and exports them.
type Service struct {
	milk    MilkLister
	alerts  AlertLister
	sheets  repo.Repository
	archive Archive
	loc     *time.Location
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires a new reporting service instance. sheets and archive are
// optional.
func NewService(milkRecords MilkLister, alerts AlertLister, sheets repo.Repository, archive Archive, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		milk:    milkRecords,
		alerts:  alerts,
		sheets:  sheets,
		archive: archive,
		loc:     loc,
		logger:  logger,
		now:     time.Now,
	}
}

// Yesterday returns the local start of the previous day.
func (s *Service) Yesterday() time.Time {
	local := s.now().In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day()-1, 0, 0, 0, 0, s.loc)
}

// BuildDailyReport summarizes the records created on day.
func (s *Service) BuildDailyReport(ctx context.Context, day time.Time) (models.DailyReport, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 1)

	records, err := s.milk.Between(ctx, start, end)
	if err != nil {
		return models.DailyReport{}, fmt.Errorf("load milk records: %w", err)
	}
	summary := milk.Summarize(records)

	report := models.DailyReport{
		Date:           start,
		TotalLiters:    summary.TotalQuantity,
		RecordCount:    summary.RecordCount,
		AverageFat:     summary.AverageFat,
		AverageProtein: summary.AverageProtein,
		CreatedAt:      s.now().UTC(),
	}

	if s.alerts != nil {
		alerts, err := s.alerts.Alerts(ctx)
		if err != nil {
			s.logger.Warn("open alerts unavailable for report", zap.Error(err))
		} else {
			report.OpenAlerts = len(alerts)
		}
	}

	return report, nil
}

// PublishDailyReport builds the report for day, appends it to the sheet and
// archives it. Publishing failures are logged; only a failed build is returned.
func (s *Service) PublishDailyReport(ctx context.Context, day time.Time) (models.DailyReport, error) {
	report, err := s.BuildDailyReport(ctx, day)
	if err != nil {
		return report, err
	}

	if s.sheets != nil {
		if err := s.sheets.EnsureHeader(ctx, milkHeaderCell, milkHeader); err != nil {
			s.logger.Warn("sheet header check failed", zap.Error(err))
		}
		if err := s.sheets.AppendRows(ctx, milkDataRange, [][]interface{}{reportRow(report)}); err != nil {
			s.logger.Error("append daily report to sheet failed", zap.Error(err))
		}
	}

	if s.archive != nil {
		if err := s.archive.SaveDailyReport(ctx, report); err != nil {
			s.logger.Error("archive daily report failed", zap.Error(err))
		}
	}

	s.logger.Info("daily report published",
		zap.String("date", report.Date.Format(dateLayout)),
		zap.Float64("total_liters", report.TotalLiters),
		zap.Int("records", report.RecordCount))
	return report, nil
}

// History reads the published reports between start and end, inclusive, back
// from the sheet.
func (s *Service) History(ctx context.Context, start, end time.Time) ([]models.DailyReport, error) {
	if s.sheets == nil {
		return nil, apperr.Invalid("Report history is disabled: Google Sheets export is not configured")
	}

	rows, err := s.sheets.ReadRange(ctx, milkDataRange)
	if err != nil {
		return nil, fmt.Errorf("load milk range: %w", err)
	}

	out := []models.DailyReport{}
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}

		dateValue, err := parseDate(row[0])
		if err != nil {
			s.logger.Debug("skip milk row with invalid date", zap.Any("value", row[0]), zap.Error(err))
			continue
		}
		if dateValue.Before(start) || dateValue.After(end) {
			continue
		}

		total, err := parseFloat(row[1])
		if err != nil {
			s.logger.Debug("skip milk row with invalid total", zap.Any("value", row[1]), zap.Error(err))
			continue
		}

		report := models.DailyReport{Date: dateValue, TotalLiters: total}
		if len(row) > 2 {
			report.RecordCount, _ = parseInt(row[2])
		}
		if len(row) > 3 {
			report.AverageFat, _ = parseFloat(row[3])
		}
		if len(row) > 4 {
			report.AverageProtein, _ = parseFloat(row[4])
		}
		if len(row) > 5 {
			report.OpenAlerts, _ = parseInt(row[5])
		}
		out = append(out, report)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// FormatDailyReport renders report as a WhatsApp message.
func FormatDailyReport(report models.DailyReport) string {
	if report.RecordCount == 0 {
		return fmt.Sprintf("Milk report %s: no records yet.", report.Date.Format(dateLayout))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Milk report %s: %.1f L across %d records.", report.Date.Format(dateLayout), report.TotalLiters, report.RecordCount)
	if report.AverageFat > 0 {
		fmt.Fprintf(&b, " Avg fat %.2f%%.", report.AverageFat)
	}
	if report.AverageProtein > 0 {
		fmt.Fprintf(&b, " Avg protein %.2f%%.", report.AverageProtein)
	}
	if report.OpenAlerts > 0 {
		fmt.Fprintf(&b, " %d open health alerts.", report.OpenAlerts)
	}
	return b.String()
}

// FormatAlertDigest renders open health alerts as a WhatsApp message.
func FormatAlertDigest(alerts []models.HealthRecord) string {
	if len(alerts) == 0 {
		return "Health alerts: none open."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Health alerts: %d open.", len(alerts))
	for _, a := range alerts {
		cow := a.CowID
		if a.Cow != nil {
			cow = fmt.Sprintf("#%s %s", a.Cow.TagNumber, a.Cow.Name)
		}
		fmt.Fprintf(&b, "\n- [%s] %s: %s (%s)", strings.ToUpper(string(a.Status)), cow, a.EventType, a.EventDate)
	}
	return b.String()
}

// ExportMilkRecords writes the records created in [start, end) as an XLSX
// workbook to w.
func (s *Service) ExportMilkRecords(ctx context.Context, start, end time.Time, w io.Writer) error {
	records, err := s.milk.Between(ctx, start, end)
	if err != nil {
		return fmt.Errorf("load milk records: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Debug("close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := []interface{}{"Date", "Shift", "Tag", "Cow", "Amount (L)", "Quality", "Grade",
		"Fat %", "Protein %", "Lactose %", "SCC (k/ml)", "Bacteria (CFU/ml)", "Notes", "Created at"}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range records {
		row := []interface{}{r.Date, string(r.Shift), "", "", r.Amount, string(r.Quality), string(r.QualityGrade),
			floatCell(r.Fat), floatCell(r.Protein), floatCell(r.Lactose), intCell(r.SomaticCellCount), intCell(r.BacteriaCount),
			r.Notes, r.CreatedAt.In(s.loc).Format(time.RFC3339)}
		if r.Cow != nil {
			row[2], row[3] = r.Cow.TagNumber, r.Cow.Name
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if len(records) > 0 {
		totalCell, _ := excelize.CoordinatesToCellName(5, len(records)+2)
		if err := f.SetCellFormula(exportSheet, totalCell, fmt.Sprintf("SUM(E2:E%d)", len(records)+1)); err != nil {
			return fmt.Errorf("write total: %w", err)
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("milk records exported", zap.Int("records", len(records)))
	return nil
}

func reportRow(r models.DailyReport) []interface{} {
	return []interface{}{
		r.Date.Format(dateLayout),
		round2(r.TotalLiters),
		r.RecordCount,
		round2(r.AverageFat),
		round2(r.AverageProtein),
		r.OpenAlerts,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func floatCell(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func intCell(v *int64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func parseDate(value interface{}) (time.Time, error) {
	str := fmt.Sprint(value)
	if str == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if len(str) > 10 {
		str = str[:10]
	}
	return time.Parse(dateLayout, str)
}

func parseInt(value interface{}) (int, error) {
	str := fmt.Sprint(value)
	if str == "" {
		return 0, fmt.Errorf("empty numeric value")
	}
	return strconv.Atoi(str)
}

func parseFloat(value interface{}) (float64, error) {
	str := strings.ReplaceAll(fmt.Sprint(value), ",", "")
	if str == "" {
		return 0, fmt.Errorf("empty numeric value")
	}
	return strconv.ParseFloat(str, 64)
}
