// Package report renders a harness's recorded deliveries as a Markdown
// table and, optionally, as HTML.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
)

// Row is one rendered delivery. Callers building a report from an
// engine.Harness[E, T] flatten its Delivery[E, T] values into Rows, since
// the report package itself stays free of the engine's generic type
// parameters.
type Row struct {
	EventID  string
	Topic    string
	Sender   string
	Receiver string
}

// RenderMarkdown renders rows as a Markdown table, titled.
func RenderMarkdown(title string, rows []Row) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "| event | topic | sender | receiver |\n")
	fmt.Fprintf(&b, "|---|---|---|---|\n")

	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			r.EventID, r.Topic, r.Sender, r.Receiver)
	}

	return b.String()
}

// RenderHTML converts Markdown (e.g. RenderMarkdown's output) to an HTML
// fragment.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("report: render html: %w", err)
	}
	return buf.String(), nil
}
