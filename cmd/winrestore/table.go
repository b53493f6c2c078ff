package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/1broseidon/winrestore/internal/ipc"
)

// terminalWidth returns the stdout width, or 0 when stdout is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return w
}

// truncate shortens s to max runes. max <= 0 disables truncation.
func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// writeCacheTable prints one row per cached window. Long geometry signatures
// are cut to a third of width.
func writeCacheTable(w io.Writer, data *ipc.CacheData, width int, pal palette) error {
	if len(data.Arrangements) == 0 {
		_, err := fmt.Fprintln(w, "no cached layouts")
		return err
	}

	sigWidth := 0
	if width > 0 {
		sigWidth = width / 3
	}

	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ARRANGEMENT\tPID\tWINDOW\tBOUNDS")
	for _, arr := range data.Arrangements {
		sig := truncate(arr.Signature, sigWidth)
		if arr.Current {
			sig = "* " + sig
		}
		if len(arr.Processes) == 0 {
			fmt.Fprintf(tw, "%s\t-\t-\t-\n", sig)
			continue
		}
		for _, p := range arr.Processes {
			for _, win := range p.Windows {
				bounds := "placeholder"
				if !win.Placeholder {
					bounds = fmt.Sprintf("%dx%d+%d+%d", win.Width, win.Height, win.X, win.Y)
				}
				fmt.Fprintf(tw, "%s\t%d\t0x%x\t%s\n", sig, p.PID, win.ID, bounds)
			}
		}
	}
	return flushTable(w, tw, &buf, pal)
}

func writeSpacesTable(w io.Writer, data *ipc.SpacesData, now time.Time, pal palette) error {
	if len(data.Spaces) == 0 {
		_, err := fmt.Fprintln(w, "no known desktops")
		return err
	}
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MARKER\tSTATE\tLAST SEEN")
	for _, sp := range data.Spaces {
		ago := now.Sub(sp.LastSeen).Truncate(time.Second)
		fmt.Fprintf(tw, "0x%x\t%s\t%s ago\n", sp.ID, sp.State, ago)
	}
	return flushTable(w, tw, &buf, pal)
}

func flushTable(w io.Writer, tw *tabwriter.Writer, buf *bytes.Buffer, pal palette) error {
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, pal.colorTable(buf.String()))
	return err
}
