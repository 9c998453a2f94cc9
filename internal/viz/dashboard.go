package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/joydrive/internal/adc"
	"github.com/san-kum/joydrive/internal/dynamo"
	"github.com/san-kum/joydrive/internal/physics"
	"github.com/san-kum/joydrive/internal/pipeline"
)

const (
	canvasWidth     = 48
	canvasHeight    = 20
	historyCapacity = 240
	trailCapacity   = 400
	frameRate       = 30
)

type TickMsg time.Time

// Options wire the dashboard to a running session. World, Stick and Fake
// are optional: without a world there is no track, without a stick the
// keyboard does not drive.
type Options struct {
	Title string
	Loop  *pipeline.Loop
	Feed  *Feed
	World *physics.World
	Stick *VirtualStick
	Fake  *adc.Fake
	Vx    adc.Channel
	Vy    adc.Channel
	Theme string
}

// Model is the Bubble Tea model of the dashboard.
type Model struct {
	opts     Options
	theme    Theme
	styles   Styles
	canvas   *Canvas
	trail    []dynamo.Vec3
	speed    []float64
	throttle []float64
	vehicle  physics.VehicleState
	tracked  bool
	frames   int
	showHelp bool
	quitting bool
}

func NewModel(o Options) Model {
	if o.Feed == nil {
		o.Feed = NewFeed(8)
	}
	theme := GetTheme(o.Theme)
	return Model{
		opts:   o,
		theme:  theme,
		styles: NewStyles(theme),
		canvas: NewCanvas(canvasWidth, canvasHeight),
		trail:  make([]dynamo.Vec3, 0, trailCapacity),
		speed:  make([]float64, 0, historyCapacity),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "?":
			m.showHelp = !m.showHelp
		case "t":
			m.theme = NextTheme(m.theme)
			m.styles = NewStyles(m.theme)
		}
		if m.opts.Stick != nil {
			m.drive(msg.String())
		}
	case TickMsg:
		m.step()
		return m, tick()
	}
	return m, nil
}

func (m *Model) drive(key string) {
	s := m.opts.Stick
	switch key {
	case "up", "w":
		s.Push(0, stickStep)
	case "down", "s":
		s.Push(0, -stickStep)
	case "left", "a":
		s.Push(-stickStep, 0)
	case "right", "d":
		s.Push(stickStep, 0)
	case " ", "enter":
		s.Click()
	case "c":
		s.Center()
	default:
		return
	}
	if m.opts.Fake != nil {
		s.Apply(m.opts.Fake, m.opts.Vx, m.opts.Vy)
	}
}

// step advances one dashboard frame.
func (m *Model) step() {
	m.frames++
	if s := m.opts.Stick; s != nil {
		s.Tick()
		if m.opts.Fake != nil {
			s.Apply(m.opts.Fake, m.opts.Vx, m.opts.Vy)
		}
	}
	if f, ok := m.opts.Feed.Last(); ok {
		m.throttle = appendCapped(m.throttle, f.Y.Value, historyCapacity)
	}
	if m.opts.World == nil {
		return
	}
	vs := m.opts.World.Snapshot()
	if len(vs) == 0 {
		return
	}
	m.vehicle, m.tracked = vs[0], true
	m.trail = appendCapped(m.trail, m.vehicle.Position, trailCapacity)
	m.speed = appendCapped(m.speed, m.vehicle.Speed, historyCapacity)
}

func appendCapped[T any](s []T, v T, capacity int) []T {
	if len(s) >= capacity {
		s = append(s[:0], s[1:]...)
	}
	return append(s, v)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	title := m.opts.Title
	if title == "" {
		title = "joydrive"
	}
	header := m.styles.Title.Render(title) + "  " + m.styles.Subtle.Render(time.Now().Format("15:04:05"))

	left := m.styles.Panel.Render(m.drawTrack())
	right := m.styles.Panel.Render(m.stats())
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	help := m.styles.KeyHint.Render("arrows/wasd drive · space click · c center · t theme · ? help · q quit")
	if m.showHelp {
		help = m.styles.KeyHint.Render(helpText)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, help)
}

const helpText = `throttle: ↑/w forward, ↓/s backward
steering: ←/a left, →/d right
space/enter click (jump), c centers the stick
deflection springs back when the key stops repeating`

func (m Model) drawTrack() string {
	m.canvas.Clear()
	if !m.tracked {
		return m.styles.Idle.Render(strings.Repeat(" ", canvasWidth/2-5)+"no vehicle") + "\n" + m.canvas.String()
	}

	vp := Viewport{
		CenterX:        m.vehicle.Position.X,
		CenterZ:        m.vehicle.Position.Z,
		PixelsPerMeter: 2,
		Width:          canvasWidth * 2,
		Height:         canvasHeight * 4,
	}
	for i := 1; i < len(m.trail); i++ {
		x0, y0 := vp.Project(m.trail[i-1].X, m.trail[i-1].Z)
		x1, y1 := vp.Project(m.trail[i].X, m.trail[i].Z)
		m.canvas.DrawLine(x0, y0, x1, y1)
	}
	for _, b := range m.opts.World.Bodies() {
		bx, by := vp.Project(b.Position.X, b.Position.Z)
		m.canvas.DrawCircle(bx, by, int(b.Radius*vp.PixelsPerMeter))
	}
	cx, cy := vp.Project(m.vehicle.Position.X, m.vehicle.Position.Z)
	m.canvas.DrawCircle(cx, cy, 2)
	return m.styles.Graph.Render(m.canvas.String())
}

func (m Model) stats() string {
	var s strings.Builder
	row := func(label, value string) {
		s.WriteString(m.styles.Label.Render(label) + m.styles.Value.Render(value) + "\n")
	}

	frame, ok := m.opts.Feed.Last()
	if ok {
		row("state", m.styles.StatusState.Render(frame.State.String()))
		row("vx", fmt.Sprintf("%4d %s", frame.RawX, m.styles.AxisBar(frame.X.Value, 20)))
		row("vy", fmt.Sprintf("%4d %s", frame.RawY, m.styles.AxisBar(frame.Y.Value, 20)))
		button := m.styles.Idle.Render("up")
		if frame.Button {
			button = m.styles.Active.Render("down")
		}
		row("button", button)
		row("throttle", m.styles.SparklineChart(m.throttle, 24))
		if frame.Failed {
			row("link", m.styles.Alert.Render("transport unavailable"))
		}
	} else {
		row("state", m.styles.Idle.Render("waiting for first cycle"))
	}

	if l := m.opts.Loop; l != nil {
		row("cycles", fmt.Sprintf("%d  skipped %d  failed %d", l.Cycles(), l.Skipped(), l.Failed()))
	}
	row("errors", fmt.Sprintf("%d", m.opts.Feed.Errors()))

	if m.tracked {
		v := m.vehicle
		row("speed", fmt.Sprintf("%6.2f m/s", v.Speed))
		row("engine", fmt.Sprintf("%8.1f", v.Engine))
		row("steer", fmt.Sprintf("%8.3f", v.Steer))
		row("brake", fmt.Sprintf("%8.1f", v.Brake))
		row("wheels", fmt.Sprintf("%d on ground", v.Contacts))
		if len(m.speed) > 1 {
			chart := asciigraph.Plot(m.speed, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("speed"))
			s.WriteString(m.styles.Graph.Render(chart) + "\n")
		}
	}

	s.WriteString("\n" + m.styles.Title.Render("events") + "\n")
	for _, line := range m.opts.Feed.Log() {
		s.WriteString(m.styles.Subtle.Render(line) + "\n")
	}
	return s.String()
}
