// Package ui консольный вывод хода поиска листингов и генерации пула
package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/skalibog/trendgym/pkg/models"
)

// Стили UI
var (
	primaryColor = lipgloss.Color("#0077cc")
	errorColor   = lipgloss.Color("#cc3300")
	successColor = lipgloss.Color("#33cc33")
	warningColor = lipgloss.Color("#cccc00")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1)
	barStyle   = lipgloss.NewStyle().Foreground(primaryColor)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)
)

const barWidth = 30

// Progress однострочный индикатор прогресса
type Progress struct {
	mu    sync.Mutex
	out   io.Writer
	title string
	last  int
}

// NewProgress out == nil отключает вывод
func NewProgress(out io.Writer, title string) *Progress {
	return &Progress{out: out, title: title, last: -1}
}

// Step перерисовывает строку, если процент изменился
func (p *Progress) Step(done, total int, label string) {
	if p == nil || p.out == nil || total <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	percent := done * 100 / total
	if percent == p.last && done != total {
		return
	}
	p.last = percent

	fmt.Fprintf(p.out, "\r%s %s %5d/%-5d %3d%% %s",
		titleStyle.Render(p.title),
		barStyle.Render(bar(done, total)),
		done, total, percent,
		labelStyle.Render(fmt.Sprintf("%-14s", label)))
}

// Done завершает строку
func (p *Progress) Done() {
	if p == nil || p.out == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out)
	p.last = -1
}

func bar(done, total int) string {
	filled := done * barWidth / total
	if filled > barWidth {
		filled = barWidth
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]"
}

// FormatTrend раскрашивает метку тренда
func FormatTrend(trend models.Trend) string {
	var style lipgloss.Style

	switch trend {
	case models.TrendUp:
		style = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	case models.TrendDown:
		style = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	default:
		style = lipgloss.NewStyle().Foreground(warningColor)
	}

	return style.Render(trend.String())
}

// PoolSummary таблица упражнений пула
func PoolSummary(exercises []models.Exercise) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render(fmt.Sprintf("Пул упражнений: %d", len(exercises))))

	counts := make(map[models.Trend]int)
	for i, ex := range exercises {
		counts[ex.Trend]++
		fmt.Fprintf(&b, "%4d  %-12s %-4s %s  %s\n",
			i, ex.Symbol, ex.Interval,
			ex.Start.Format("2006-01-02 15:04"),
			FormatTrend(ex.Trend))
	}
	fmt.Fprintf(&b, "up: %d  range: %d  down: %d",
		counts[models.TrendUp], counts[models.TrendRange], counts[models.TrendDown])

	return summaryStyle.Render(b.String())
}
