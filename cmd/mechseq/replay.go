package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/mechseq/pkg/trace"
)

type ReplayCommand struct {
	Every   int  `long:"every" default:"1" description:"Show every Nth tick"`
	Changes bool `long:"changes" description:"Only show ticks whose status differs from the previous one"`
	Args    struct {
		File string `positional-arg-name:"FILE" required:"yes"`
	} `positional-args:"yes"`
}

func (c *ReplayCommand) Execute(args []string) error {
	r, err := trace.Open(c.Args.File)
	if err != nil {
		return fmt.Errorf("open trace: %w", err)
	}
	defer r.Close()

	recs, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("read trace: %w", err)
	}

	rows := replayRows(recs, max(c.Every, 1), c.Changes)

	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
	cmdStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Tick", "Time", "Command", "Status", "Error").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case col == 2:
				return cmdStyle
			case col == 4:
				return errStyle
			}
			return cellStyle
		})

	fmt.Println(headerStyle.Render(c.Args.File))
	fmt.Println(t.Render())
	fmt.Println(dimStyle.Render(fmt.Sprintf("%d ticks, %d shown", len(recs), len(rows))))
	return nil
}

// replayRows selects every nth record, plus every record carrying a command
// or error. With changes set, records repeating the previous status are dropped.
func replayRows(recs []trace.Record, every int, changes bool) [][]string {
	var rows [][]string
	var last string
	for i, rec := range recs {
		status := strings.Join(rec.Status, " | ")
		notable := rec.Command != "" || rec.Error != ""
		switch {
		case changes && status == last && !notable:
			continue
		case !changes && i%every != 0 && !notable:
			continue
		}
		last = status
		rows = append(rows, []string{
			fmt.Sprintf("%d", rec.Tick),
			rec.Time.Format("15:04:05.000"),
			rec.Command,
			status,
			rec.Error,
		})
	}
	return rows
}
