package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"go.olrik.dev/chorus/internal/core"
	"go.olrik.dev/chorus/internal/db"
	"go.olrik.dev/chorus/internal/ident"
)

const historyLimit = 20

// runHistory prints recent daemon sessions, restricted to one command
// identity when a command is present on the invocation.
func runHistory(cfg *core.Configuration, args []string) error {
	if !cfg.History.Enabled {
		return fmt.Errorf("session history is disabled in %s", core.ConfigFileName)
	}

	database, err := db.Open(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	defer database.Close()

	endpointID := ""
	if len(args) > 0 {
		endpointID = ident.Resolve(ident.Command{Path: args[0], Args: args[1:]})
	}

	sessions, err := database.RecentSessions(endpointID, historyLimit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No recorded sessions")
		return nil
	}

	fmt.Println(renderSessions(sessions))
	return nil
}

func renderSessions(sessions []db.Session) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Started", "Command", "PID", "Duration", "Exit", "Output"})

	for _, s := range sessions {
		duration := "running"
		exit := "-"
		if s.EndedAt != nil {
			duration = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		if s.ExitCode != nil {
			exit = strconv.Itoa(*s.ExitCode)
		}
		tw.AppendRow(table.Row{
			s.StartedAt.Local().Format(time.DateTime),
			s.Command,
			s.PID,
			duration,
			exit,
			humanize.IBytes(uint64(s.OutputBytes)),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	return tw.Render()
}
