package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/volley/internal/metrics"
)

const (
	refreshInterval = 500 * time.Millisecond
	historySize     = 100
	maxListRows     = 10
)

// RunInfo holds run parameters for display.
type RunInfo struct {
	TargetURL   string
	Method      string
	Concurrency int
	Total       int
	Rate        int // 0 = unpaced
	Timeout     time.Duration
	Retries     int
	ConfigFile  string
}

// Dashboard renders a live terminal UI for run metrics.
type Dashboard struct {
	collector    *metrics.Collector
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	grid           *ui.Grid
	summaryPara    *widgets.Paragraph
	progressGauge  *widgets.Gauge
	metricsPara    *widgets.Paragraph
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	statusList     *widgets.List
	errorList      *widgets.List
	latencyHistory []float64
	startTime      time.Time
	info           RunInfo
}

// New initializes the terminal and creates a Dashboard. shutdownFunc is called
// when the user presses q or Ctrl-C.
func New(collector *metrics.Collector, info RunInfo, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	d := newDashboard(collector, info, shutdownFunc)
	d.setupGrid()
	return d, nil
}

func newDashboard(collector *metrics.Collector, info RunInfo, shutdownFunc func()) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		collector:      collector,
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, historySize),
		startTime:      time.Now(),
		info:           info,
	}
	d.initWidgets()
	return d
}

func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Progress"
	d.progressGauge.BarColor = ui.ColorBlue
	d.progressGauge.BorderStyle.Fg = ui.ColorCyan
	d.progressGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Requests"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan

	sparkline := widgets.NewSparkline()
	sparkline.Title = "Mean latency (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}
	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = "Mean: 0ms\nP50:  0ms\nP99:  0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.statusList = widgets.NewList()
	d.statusList.Title = "Status Codes"
	d.statusList.Rows = []string{"Awaiting data"}
	d.statusList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.statusList.BorderStyle.Fg = ui.ColorCyan

	d.errorList = widgets.NewList()
	d.errorList.Title = "Errors"
	d.errorList.Rows = []string{"No failures"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.22,
			ui.NewCol(0.5, d.progressGauge),
			ui.NewCol(0.5, d.metricsPara),
		),
		ui.NewRow(0.30,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.32,
			ui.NewCol(0.5, d.statusList),
			ui.NewCol(0.5, d.errorList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			return
		case e := <-uiEvents:
			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop cancels ctx once the run has drained.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			elapsed := time.Since(d.startTime)
			d.update(d.collector.Stats(elapsed), elapsed)
			d.render()
		}
	}
}

// update refreshes widget data from a stats snapshot.
func (d *Dashboard) update(stats metrics.Stats, elapsed time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if stats.MeanLatency > 0 {
		d.latencyHistory = append(d.latencyHistory, stats.MeanLatencyMs)
		if len(d.latencyHistory) > historySize {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf("Latency | Current mean: %.2fms", stats.MeanLatencyMs)
	}

	d.progressGauge.Percent = progressPercent(stats.Total, stats.Expected)
	d.progressGauge.Label = fmt.Sprintf("%d/%d", stats.Total, stats.Expected)

	d.summaryPara.Text = fmt.Sprintf(
		"Target: %s\n%s\nElapsed: %s",
		d.info.TargetURL,
		formatRunInfo(d.info),
		elapsed.Round(time.Second),
	)

	d.metricsPara.Text = fmt.Sprintf(
		"Completed:    %d\nSuccessful:   %d\nFailed:       %d\nRPS:          %.2f\nSuccess Rate: %.1f%%",
		stats.Total,
		stats.Successes,
		stats.Failures,
		stats.RequestsPerSec,
		successRate(stats),
	)

	d.latencyPara.Text = fmt.Sprintf(
		"Mean: %.2fms\nP50:  %.2fms\nP99:  %.2fms",
		stats.MeanLatencyMs,
		stats.P50LatencyMs,
		stats.P99LatencyMs,
	)

	d.statusList.Rows = formatStatusRows(stats.StatusCodes)
	d.errorList.Rows = formatErrorRows(stats.ErrorKinds)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func progressPercent(done int64, expected int) int {
	if expected <= 0 {
		return 0
	}
	pct := int(done * 100 / int64(expected))
	if pct > 100 {
		return 100
	}
	return pct
}

func successRate(stats metrics.Stats) float64 {
	if stats.Total == 0 {
		return 0
	}
	return float64(stats.Successes) / float64(stats.Total) * 100
}

func formatStatusRows(codes map[int]int) []string {
	rows := metrics.FlattenStatusCodes(codes)
	if len(rows) == 0 {
		return []string{"[No responses yet](fg:white)"}
	}
	if len(rows) > maxListRows {
		rows = rows[:maxListRows]
	}
	formatted := make([]string, 0, len(rows))
	for _, row := range rows {
		color := "green"
		if row.Code >= 400 {
			color = "red"
		}
		formatted = append(formatted, fmt.Sprintf("[%d](fg:%s) %d", row.Code, color, row.Count))
	}
	return formatted
}

func formatErrorRows(kinds map[metrics.ErrorKind]int64) []string {
	counts := make(map[metrics.ErrorKind]int, len(kinds))
	for k, v := range kinds {
		counts[k] = int(v)
	}
	rows := metrics.FlattenErrorKinds(counts)
	if len(rows) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	if len(rows) > maxListRows {
		rows = rows[:maxListRows]
	}
	formatted := make([]string, 0, len(rows))
	for _, row := range rows {
		formatted = append(formatted, fmt.Sprintf("[%s](fg:red) %d", metrics.FriendlyKindName(row.Kind), row.Count))
	}
	return formatted
}

// formatRunInfo formats the run parameters on one line.
func formatRunInfo(info RunInfo) string {
	var parts []string

	if info.Method != "" && info.Method != "GET" {
		parts = append(parts, fmt.Sprintf("Method: %s", info.Method))
	}
	if info.Concurrency > 0 {
		parts = append(parts, fmt.Sprintf("Workers: %d", info.Concurrency))
	}
	if info.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", info.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}
	if info.Total > 0 {
		parts = append(parts, fmt.Sprintf("Total: %d", info.Total))
	}
	if info.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", info.Timeout))
	}
	if info.Retries > 0 {
		parts = append(parts, fmt.Sprintf("Retries: %d", info.Retries))
	}
	if info.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", info.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
