package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// formatPorts renders the port table in the requested format.
func formatPorts(ports []portEntry, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(ports)
	case formatTable:
		return formatPortsTable(ports), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatPortsTable(ports []portEntry) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "PORT\tBOUND")
	for _, p := range ports {
		fmt.Fprintf(w, "%d\t%v\n", p.Port, p.Bound)
	}

	w.Flush()

	return b.String()
}

// formatSockets renders the bound/connected socket list in the requested
// format.
func formatSockets(sockets []socketEntry, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(sockets)
	case formatTable:
		return formatSocketsTable(sockets), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatSocketsTable(sockets []socketEntry) string {
	if len(sockets) == 0 {
		return "No sockets bound.\n"
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "PORT\tSTATE")
	for _, s := range sockets {
		fmt.Fprintf(w, "%d\t%s\n", s.Port, s.State)
	}

	w.Flush()

	return b.String()
}

func formatJSONValue(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json: %w", err)
	}

	return string(b) + "\n", nil
}
