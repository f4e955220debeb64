package main

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
)

func TestPrintTableWrapsCharacteristics(t *testing.T) {
	traits := strings.Repeat("heat tolerant grazer ", 10)

	var buf bytes.Buffer
	printTable(&buf, table.Row{"Breed", "Type", "Origin", "Characteristics"},
		[]table.Row{{"Gir Cow", "cattle", "India", traits}},
		table.ColumnConfig{Name: "Characteristics", WidthMax: traitsWidth})

	out := buf.String()
	if !strings.HasPrefix(out, "+") {
		t.Fatalf("expected ASCII borders for a non-terminal writer, got:\n%s", out)
	}
	requireContains(t, out, "Gir Cow")

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) < 6 {
		t.Fatalf("expected the characteristics cell to wrap, got %d lines:\n%s", len(lines), out)
	}
	for _, line := range lines {
		if n := utf8.RuneCountInString(line); n > traitsWidth+40 {
			t.Fatalf("line is %d runes wide:\n%s", n, line)
		}
	}
}

func TestPrintFieldsHasNoHeader(t *testing.T) {
	var buf bytes.Buffer
	printFields(&buf, [][2]string{
		{"Breed", "Gir Cow"},
		{"Confidence", "70%"},
	})

	out := buf.String()
	var confidence string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "Confidence") {
			confidence = line
		}
	}
	if !strings.Contains(confidence, "70%") {
		t.Fatalf("expected label and value on one line, got:\n%s", out)
	}
	// Four lines: top border, two records, bottom border.
	if got := strings.Count(strings.TrimRight(out, "\n"), "\n") + 1; got != 4 {
		t.Fatalf("expected 4 lines without a header block, got %d:\n%s", got, out)
	}
}
