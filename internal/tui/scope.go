package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/icco/keysynth/internal/audio"
)

// frameMsg is delivered once per display frame while the scope redraws.
type frameMsg time.Time

// tickMsg drives release detection and the gain meter. It keeps running
// while the scope is stopped.
type tickMsg time.Time

// frameLoop re-schedules itself every interval until stopped.
type frameLoop struct {
	interval time.Duration
	running  bool
	msg      func(time.Time) tea.Msg
}

func newFrameLoop(fps int, msg func(time.Time) tea.Msg) *frameLoop {
	if fps <= 0 {
		fps = 30
	}
	return &frameLoop{interval: time.Second / time.Duration(fps), msg: msg}
}

// start marks the loop running and schedules the first frame. It returns
// nil if the loop is already running.
func (l *frameLoop) start() tea.Cmd {
	if l.running {
		return nil
	}
	l.running = true
	return l.next()
}

// next schedules the following frame, or nothing once stopped.
func (l *frameLoop) next() tea.Cmd {
	if !l.running {
		return nil
	}
	return tea.Tick(l.interval, l.msg)
}

func (l *frameLoop) stop() { l.running = false }

const (
	scopeWidth  = 64
	scopeHeight = 12
)

// scope draws the analyser's time-domain samples as a connected line.
type scope struct {
	width, height int
	samples       []byte
	rows          []string
}

func newScope(width, height int) *scope {
	return &scope{
		width:   width,
		height:  height,
		samples: make([]byte, audio.FFTSize/2),
	}
}

// update samples the analyser and redraws the grid.
func (s *scope) update(a *audio.Analyser) {
	n := a.ByteTimeDomain(s.samples)
	s.rows = plotWaveform(s.samples[:n], s.width, s.height)
}

func (s *scope) view(border lipgloss.Color) string {
	rows := s.rows
	if rows == nil {
		rows = plotWaveform(nil, s.width, s.height)
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Render(strings.Join(rows, "\n"))
}

const (
	plotPath  = '•'
	plotJoin  = '│'
	plotAxis  = '─'
	plotBlank = ' '
)

// plotWaveform scales byte samples (128 = zero) onto a width×height grid,
// positive values upwards, joining consecutive columns with vertical
// strokes. An empty input plots silence.
func plotWaveform(samples []byte, width, height int) []string {
	grid := make([][]rune, height)
	mid := rowFor(128, height)
	for y := range grid {
		grid[y] = make([]rune, width)
		for x := range grid[y] {
			if y == mid {
				grid[y][x] = plotAxis
			} else {
				grid[y][x] = plotBlank
			}
		}
	}

	prev := -1
	for x := 0; x < width; x++ {
		v := byte(128)
		if len(samples) > 0 {
			v = samples[x*len(samples)/width]
		}
		y := rowFor(v, height)
		if prev >= 0 && prev != y {
			lo, hi := prev, y
			if lo > hi {
				lo, hi = hi, lo
			}
			for r := lo + 1; r < hi; r++ {
				grid[r][x] = plotJoin
			}
		}
		grid[y][x] = plotPath
		prev = y
	}

	rows := make([]string, height)
	for y := range grid {
		rows[y] = string(grid[y])
	}
	return rows
}

func rowFor(v byte, height int) int {
	y := int(v) * height / 256
	return height - 1 - y
}
