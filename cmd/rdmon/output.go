package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rdmonitor/rdmon/app"
	"github.com/rdmonitor/rdmon/domain/settings"
	"github.com/rdmonitor/rdmon/domain/traffic"
)

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
	warnMark  = "\033[33m!\033[0m"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderTraffic prints the window summary followed by the host list.
// Hosts at or above the warning threshold are flagged.
func renderTraffic(out io.Writer, v app.TrafficView, prefs settings.Preferences, now time.Time) {
	fmt.Fprintf(out, "Mode: %s", v.Mode)
	if !v.UpdatedAt.IsZero() {
		fmt.Fprintf(out, "  (updated %s)", humanize.RelTime(v.UpdatedAt, now, "ago", "from now"))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WINDOW\tUSAGE\tSTATUS")
	fmt.Fprintln(w, "------\t-----\t------")
	for _, l := range traffic.Labels() {
		status := v.Summary.State(l).String()
		if err := v.Summary.Err(l); err != nil {
			status = err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", l.Title(), traffic.FormatBytes(v.Summary.Bytes(l)), status)
	}
	w.Flush()
	fmt.Fprintln(out)

	switch {
	case v.HostsErr != nil:
		fmt.Fprintf(out, "%s Hosts unavailable: %v\n", crossMark, v.HostsErr)
		return
	case len(v.Hosts) == 0:
		fmt.Fprintln(out, "No host usage reported.")
		return
	}

	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HOST\tUSED\tLIMIT\tUSED %\t")
	fmt.Fprintln(w, "----\t----\t-----\t------\t")
	for _, h := range v.Hosts {
		flag := ""
		if prefs.OverWarning(h.UsedPercent()) {
			flag = warnMark
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%s\n",
			h.Host, traffic.FormatGB(h.UsedGB), traffic.FormatGB(h.LimitGB), h.UsedPercent(), flag)
	}
	w.Flush()
}

// renderDetails prints one row per day, newest first.
func renderDetails(out io.Writer, d app.Details) {
	fmt.Fprintf(out, "%s to %s: %s\n\n", d.Window.StartDate(), d.Window.EndDate(), traffic.FormatBytes(d.TotalBytes))
	if len(d.Days) == 0 {
		fmt.Fprintln(out, "No traffic in this period.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTOTAL\tHOSTS")
	fmt.Fprintln(w, "----\t-----\t-----")
	for _, day := range d.Days {
		hosts := make([]string, 0, len(day.Hosts))
		for _, h := range day.Hosts {
			hosts = append(hosts, fmt.Sprintf("%s %s", h.Name, traffic.FormatBytes(h.Bytes)))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", day.Date, traffic.FormatBytes(day.TotalBytes), strings.Join(hosts, ", "))
	}
	w.Flush()
}

// renderConnection prints the self-test outcome and the account, if known.
func renderConnection(out io.Writer, st app.ConnectionStatus) {
	mark := checkMark
	if !st.Connected {
		mark = crossMark
	}
	fmt.Fprintf(out, "%s %s\n", mark, st.Message)

	p := st.Profile
	if p.Username == "" {
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  Username:\t%s\n", p.Username)
	if p.Type != "" {
		fmt.Fprintf(w, "  Account:\t%s\n", p.Type)
	}
	if p.Expiration != "" {
		fmt.Fprintf(w, "  Expires:\t%s\n", p.Expiration)
	}
	fmt.Fprintf(w, "  Points:\t%s (%s convertible)\n", humanize.Comma(p.Points), humanize.Comma(p.ConvertiblePoints()))
	w.Flush()
}
