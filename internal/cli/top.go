package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/citetree/citetree/internal/executor"
)

// topCommand creates the top command, a live monitor of the query pool on
// a running citetree server.
func (c *CLI) topCommand() *cobra.Command {
	var (
		baseURL  string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Monitor active queries on a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			model := newTopModel(baseURL, interval)
			_, err := tea.NewProgram(model, tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "base URL of the server")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "poll interval")

	return cmd
}

// queryRow is one outstanding query as shown in the monitor table.
type queryRow struct {
	ID          string
	Status      string
	ElapsedMs   float64
	Description string
}

type pollMsg struct {
	queries []queryRow
	stats   executor.Snapshot
	err     error
}

type tickMsg time.Time

// topModel is the bubbletea model for the query monitor.
type topModel struct {
	baseURL  string
	interval time.Duration
	queries  []queryRow
	stats    executor.Snapshot
	err      error
}

func newTopModel(baseURL string, interval time.Duration) topModel {
	return topModel{baseURL: strings.TrimRight(baseURL, "/"), interval: interval}
}

func (m topModel) Init() tea.Cmd {
	return tea.Batch(m.poll, m.tick())
}

func (m topModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.poll, m.tick())
	case pollMsg:
		m.queries = msg.queries
		m.stats = msg.stats
		m.err = msg.err
	}
	return m, nil
}

func (m topModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("citetree queries"))
	b.WriteString("  ")
	b.WriteString(StyleDim.Render(m.baseURL))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("q quit"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(StyleWarning.Render(fmt.Sprintf("poll failed: %v", m.err)))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n\n",
		StyleDim.Render("submitted"), StyleNumber.Render(fmt.Sprintf("%d", m.stats.Submitted)),
		StyleDim.Render("succeeded"), StyleNumber.Render(fmt.Sprintf("%d", m.stats.Succeeded)),
		StyleDim.Render("timed out"), StyleNumber.Render(fmt.Sprintf("%d", m.stats.TimedOut)),
		StyleDim.Render("cancelled"), StyleNumber.Render(fmt.Sprintf("%d", m.stats.Cancelled))))

	if len(m.queries) == 0 {
		b.WriteString(StyleDim.Render("no active queries"))
		b.WriteString("\n")
		return b.String()
	}

	rows := make([][]string, 0, len(m.queries))
	for _, q := range m.queries {
		rows = append(rows, []string{
			q.ID, q.Status, fmt.Sprintf("%.0fms", q.ElapsedMs), q.Description,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("ID", "Status", "Elapsed", "Description").
		Rows(rows...)
	b.WriteString(t.Render())
	b.WriteString("\n")
	return b.String()
}

func (m topModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// poll fetches the active query list and counters, longest-running first.
func (m topModel) poll() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), m.interval)
	defer cancel()

	var queriesBody struct {
		Queries map[string]struct {
			Description string  `json:"description"`
			ElapsedMs   float64 `json:"elapsedMs"`
			Status      string  `json:"status"`
		} `json:"queries"`
	}
	if err := getJSON(ctx, m.baseURL+"/api/queries", &queriesBody); err != nil {
		return pollMsg{err: err}
	}

	var statsBody struct {
		Queries executor.Snapshot `json:"queries"`
	}
	if err := getJSON(ctx, m.baseURL+"/api/stats", &statsBody); err != nil {
		return pollMsg{err: err}
	}

	queries := make([]queryRow, 0, len(queriesBody.Queries))
	for id, q := range queriesBody.Queries {
		queries = append(queries, queryRow{
			ID:          id,
			Status:      q.Status,
			ElapsedMs:   q.ElapsedMs,
			Description: q.Description,
		})
	}
	sort.Slice(queries, func(i, j int) bool { return queries[i].ElapsedMs > queries[j].ElapsedMs })

	return pollMsg{queries: queries, stats: statsBody.Queries}
}

func getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
