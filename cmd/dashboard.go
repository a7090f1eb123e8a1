package main

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Martin-Hayot/auctionhub/pkg/types"
	"github.com/Martin-Hayot/auctionhub/pkg/utils"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const (
	logLines = 15
	// maxBufferedLines bounds how much log history the logs view keeps.
	maxBufferedLines = 500
)

var (
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))
)

// activeLister is the part of the store the dashboard reads.
type activeLister interface {
	ListActiveAuctions(ctx context.Context, now time.Time) ([]types.Auction, error)
}

// logBuffer collects log output for the logs view. Writes come from the
// server goroutines while the UI reads.
// Only the last maxBufferedLines complete lines are kept.
type logBuffer struct {
	mu      sync.Mutex
	lines   []string
	partial []byte
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rest := p
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		b.lines = append(b.lines, string(b.partial)+string(rest[:i]))
		b.partial = b.partial[:0]
		rest = rest[i+1:]
	}
	b.partial = append(b.partial, rest...)

	if over := len(b.lines) - maxBufferedLines; over > 0 {
		b.lines = append(b.lines[:0:0], b.lines[over:]...)
	}
	return len(p), nil
}

// Lines returns a copy of the buffered lines, including an unterminated last line.
func (b *logBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.lines)+1)
	out = append(out, b.lines...)
	if len(b.partial) > 0 {
		out = append(out, string(b.partial))
	}
	return out
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Every(1*time.Minute, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type model struct {
	store     activeLister
	now       func() time.Time
	table     table.Model
	viewport  viewport.Model
	logBuffer *logBuffer
	logs      []string
	showTable bool
	quitting  bool
}

func (m model) Init() tea.Cmd {
	return tick()
}

func newDashboard(store activeLister, logs *logBuffer) model {
	columns := []table.Column{
		{Title: "ID", Width: 6},
		{Title: "TITLE", Width: 32},
		{Title: "PRICE", Width: 14},
		{Title: "BIDS", Width: 6},
		{Title: "TIME LEFT", Width: 14},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(10),
		table.WithFocused(true),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	vp := viewport.New(100, logLines)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)

	m := model{
		store:     store,
		now:       time.Now,
		table:     t,
		viewport:  vp,
		logBuffer: logs,
		showTable: true,
	}
	m.refreshRows()
	return m
}

func (m *model) refreshRows() {
	now := m.now()
	auctions, err := m.store.ListActiveAuctions(context.Background(), now)
	if err != nil {
		log.Error("Error getting auctions", "error", err)
		return
	}

	rows := make([]table.Row, 0, len(auctions))
	for _, auction := range auctions {
		rows = append(rows, table.Row{
			strconv.FormatInt(auction.ID, 10),
			auction.Title,
			utils.FormatPrice(auction.StartingPrice),
			strconv.Itoa(auction.BidsCount),
			utils.FormatTimeLeft(auction.EndTime, now),
		})
	}
	m.table.SetRows(rows)
}

func (m *model) refreshLogs() {
	if m.logBuffer == nil {
		return
	}
	m.logs = m.logBuffer.Lines()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tickMsg:
		if m.showTable {
			m.refreshRows()
		} else {
			m.refreshLogs()
		}
		cmds = append(cmds, tick())

	case tea.KeyMsg:
		switch msg.String() {
		case "up":
			if !m.showTable {
				m.viewport.LineUp(1)
			}
		case "down":
			if !m.showTable {
				m.viewport.LineDown(1)
			}
		case "r":
			m.refreshRows()
			m.refreshLogs()
		case "tab":
			m.showTable = !m.showTable
			if m.showTable {
				m.refreshRows()
			} else {
				m.refreshLogs()
			}
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	}

	if m.showTable {
		m.table, cmd = m.table.Update(msg)
	} else {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if m.quitting {
		return "Bye!\n"
	}
	help := helpStyle.Render("• tab: switch modes • r: refresh • q: exit\n")
	if m.showTable {
		return baseStyle.Render(m.table.View()) + "\n" + help
	}

	styledLogs := utils.ColorizeLogs(append([]string(nil), m.logs...))
	if len(styledLogs) > logLines {
		styledLogs = styledLogs[len(styledLogs)-logLines:]
	}
	m.viewport.SetContent(strings.Join(styledLogs, "\n"))
	return m.viewport.View() + "\n" + help
}
