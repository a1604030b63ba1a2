package main

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"PageWatcher/internal/domain"
	"PageWatcher/internal/usecase"
)

func renderListing(w io.Writer, listing []usecase.Listing) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "URL", "Rule", "Last checked"})

	for _, l := range listing {
		checked := "never"
		if l.LastCheckedAt != nil {
			checked = l.LastCheckedAt.Local().Format(time.DateTime)
		}
		t.AppendRow(table.Row{l.Position, l.URL, l.Rule, checked})
	}

	t.Render()
}

func renderOutcomes(w io.Writer, outcomes []domain.CheckOutcome) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"URL", "Result", "Detail"})

	for _, o := range outcomes {
		result, detail := "", ""
		if o.Event != nil {
			result = string(o.Event.Kind)
			detail = o.Event.Reason
		}
		if o.Err != nil && detail == "" {
			detail = o.Err.Error()
		}
		t.AppendRow(table.Row{o.Resource.URL, result, detail})
	}

	t.Render()
}
