package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// statusText colors run and service statuses alike.
func statusText(status string) string {
	switch status {
	case string(model.SyncCompleted), string(model.ServiceSucceeded):
		return green(status)
	case string(model.SyncPartial), string(model.SyncRunning):
		return yellow(status)
	case string(model.SyncFailed):
		return red(status)
	case string(model.ServiceMocked):
		return cyan(status)
	default:
		return status
	}
}

func relativeTime(t *time.Time) string {
	if t == nil {
		return faint("never")
	}
	return humanize.Time(*t)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return faint("no")
}

func printRun(w io.Writer, run *model.SyncRun) {
	fmt.Fprintf(w, "run %s: %s (%s)\n", run.ID, statusText(string(run.Status)), run.Message)
	if len(run.Results) == 0 {
		return
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "SERVICE\tSTATUS\tCOUNT\tREMOVED\tATTEMPTS\tERROR")
	for _, r := range run.Results {
		errText := r.Error
		if r.ErrorKind != "" {
			errText = fmt.Sprintf("[%s] %s", r.ErrorKind, r.Error)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", r.Service, statusText(string(r.Status)), r.Count, r.Removed, r.Attempts, errText)
	}
	_ = tw.Flush()
}

func printAccounts(w io.Writer, accounts []model.Account) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tREGION\tACTIVE\tCREDENTIALS\tLAST SYNC")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Region, yesNo(a.IsActive), yesNo(a.HasCredentials), relativeTime(a.LastSync))
	}
	_ = tw.Flush()
}

func printResources(w io.Writer, resources []model.Resource) {
	tw := newTable(w)
	fmt.Fprintln(tw, "SERVICE\tID\tNAME\tREGION\tSTATUS\tLAST SEEN")
	for _, r := range resources {
		status := string(r.Status)
		if r.Status == model.ResourceRemoved {
			status = faint(status)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Kind, r.ExternalID, r.Name, r.Region, status, humanize.Time(r.LastSeenAt))
	}
	_ = tw.Flush()
}

func printRuns(w io.Writer, runs []model.SyncRun) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tSTATUS\tSYNCED\tMESSAGE")
	for _, r := range runs {
		duration := "-"
		if r.EndedAt != nil {
			duration = r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, humanize.Time(r.StartedAt), duration, statusText(string(r.Status)), humanize.Comma(int64(r.Synced())), r.Message)
	}
	_ = tw.Flush()
}
