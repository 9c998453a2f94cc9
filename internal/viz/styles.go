package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles are the lipgloss styles of one theme.
type Styles struct {
	Panel       lipgloss.Style
	Title       lipgloss.Style
	Label       lipgloss.Style
	Value       lipgloss.Style
	Active      lipgloss.Style
	Idle        lipgloss.Style
	Alert       lipgloss.Style
	KeyHint     lipgloss.Style
	Subtle      lipgloss.Style
	Graph       lipgloss.Style
	SparkHigh   lipgloss.Style
	SparkMid    lipgloss.Style
	SparkLow    lipgloss.Style
	StatusState lipgloss.Style
}

func NewStyles(t Theme) Styles {
	return Styles{
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 1),
		Title:       lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:       lipgloss.NewStyle().Foreground(t.Muted).Width(10),
		Value:       lipgloss.NewStyle().Foreground(t.Text),
		Active:      lipgloss.NewStyle().Bold(true).Foreground(t.Success),
		Idle:        lipgloss.NewStyle().Foreground(t.Muted),
		Alert:       lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		KeyHint:     lipgloss.NewStyle().Foreground(t.Muted).Italic(true),
		Subtle:      lipgloss.NewStyle().Foreground(t.Muted),
		Graph:       lipgloss.NewStyle().Foreground(t.Secondary),
		SparkHigh:   lipgloss.NewStyle().Foreground(t.Success),
		SparkMid:    lipgloss.NewStyle().Foreground(t.Warning),
		SparkLow:    lipgloss.NewStyle().Foreground(t.Error),
		StatusState: lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
	}
}

// AxisBar renders a centered gauge of v in [-1, 1].
func (s Styles) AxisBar(v float64, width int) string {
	half := width / 2
	n := int(v*float64(half) + 0.5*sign(v))
	if n > half {
		n = half
	} else if n < -half {
		n = -half
	}

	left := strings.Repeat("─", half)
	right := strings.Repeat("─", half)
	if n < 0 {
		left = strings.Repeat("─", half+n) + s.SparkMid.Render(strings.Repeat("█", -n))
	} else if n > 0 {
		right = s.SparkHigh.Render(strings.Repeat("█", n)) + strings.Repeat("─", half-n)
	}
	return left + s.Subtle.Render("┼") + right
}

// SparklineChart renders a mini sparkline of the last width values.
func (s Styles) SparklineChart(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	var result strings.Builder
	for _, v := range values {
		norm := (v - lo) / rng
		c := string(chars[int(norm*float64(len(chars)-1))])
		switch {
		case norm > 0.7:
			result.WriteString(s.SparkHigh.Render(c))
		case norm > 0.3:
			result.WriteString(s.SparkMid.Render(c))
		default:
			result.WriteString(s.SparkLow.Render(c))
		}
	}
	return result.String()
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
