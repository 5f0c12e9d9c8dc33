package service

import (
	"strings"
	"testing"
)

func TestNormalizeDocumentTextPlain(t *testing.T) {
	got := normalizeDocumentText("report.txt", "  line one\r\nline two\r\n")
	if got != "line one\nline two" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}

func TestNormalizeDocumentTextMarkdown(t *testing.T) {
	markdown := "# Emissions\n\nScope 1 emissions **decreased** by 12%.\n\n- fleet electrification\n- renewable power\n"
	got := normalizeDocumentText("report.md", markdown)
	if strings.Contains(got, "#") || strings.Contains(got, "**") || strings.Contains(got, "- ") {
		t.Fatalf("markdown syntax leaked into output: %q", got)
	}
	for _, want := range []string{"Emissions", "decreased", "fleet electrification", "renewable power"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
}

func TestNormalizeDocumentTextMarkdownCodeBlock(t *testing.T) {
	markdown := "Intro paragraph.\n\n```\nco2_total = scope1 + scope2\n```\n"
	got := normalizeDocumentText("notes.markdown", markdown)
	if !strings.Contains(got, "co2_total = scope1 + scope2") {
		t.Fatalf("code block content dropped: %q", got)
	}
	if strings.Contains(got, "```") {
		t.Fatalf("code fence leaked: %q", got)
	}
}

func TestNormalizeDocumentTextExtensionCase(t *testing.T) {
	got := normalizeDocumentText("REPORT.MD", "# Title\n")
	if got != "Title" {
		t.Fatalf("expected flattened heading, got %q", got)
	}
}
