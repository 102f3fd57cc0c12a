package render

import (
	"strings"
	"testing"
)

func TestMarkdown(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		contains []string
		absent   []string
	}{
		{name: "empty", in: ""},
		{name: "emphasis", in: "Printer **jammed**", contains: []string{"<strong>jammed</strong>"}},
		{name: "gfm table", in: "| a | b |\n|---|---|\n| 1 | 2 |", contains: []string{"<table>"}},
		{name: "strikethrough", in: "~~old~~", contains: []string{"<del>old</del>"}},
		{name: "raw html dropped", in: "<script>alert(1)</script>", absent: []string{"<script>"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Markdown(tc.in)
			if err != nil {
				t.Fatalf("Markdown: %v", err)
			}
			for _, want := range tc.contains {
				if !strings.Contains(out, want) {
					t.Fatalf("output %q missing %q", out, want)
				}
			}
			for _, bad := range tc.absent {
				if strings.Contains(out, bad) {
					t.Fatalf("output %q contains %q", out, bad)
				}
			}
		})
	}
}
