// Package observability provides logging setup and formatted output for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/resume-tailor/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintJob outputs the job's status, position and outcome
func (p *Printer) PrintJob(job *types.Job) {
	if job == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Tenant:     %s\n", job.TenantID))
	sb.WriteString(fmt.Sprintf("Job:        %s\n", job.JobID))
	sb.WriteString(fmt.Sprintf("Status:     %s\n", job.Status))
	if job.LastStage != "" {
		sb.WriteString(fmt.Sprintf("Last stage: %s\n", job.LastStage))
	}
	if job.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("Duration:   %s\n", job.CompletedAt.Sub(job.CreatedAt).Round(time.Millisecond)))
	}

	if job.Result != nil {
		sb.WriteString("\n")
		if job.Result.DocxRef != "" {
			sb.WriteString(fmt.Sprintf("DOCX: %s\n", job.Result.DocxRef))
		}
		if job.Result.PdfRef != "" {
			sb.WriteString(fmt.Sprintf("PDF:  %s\n", job.Result.PdfRef))
		}
	}
	if job.Error != nil {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("Failed in %s:\n", job.Error.Stage))
		sb.WriteString(fmt.Sprintf("  %s\n", job.Error.Message))
	}

	p.printBox("TAILORING JOB", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintReport outputs the validation verdict, coverage and change log
func (p *Printer) PrintReport(report *types.ValidationReport) {
	if report == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Status:   %s\n", report.Status))
	sb.WriteString(fmt.Sprintf("Coverage: %.0f%% (%d covered, %d missing)\n",
		report.KeywordCoverage.Score*100, len(report.KeywordCoverage.Covered), len(report.KeywordCoverage.Missing)))

	writeList(&sb, "Missing keywords:", report.KeywordCoverage.Missing)
	writeList(&sb, "Missing sections:", report.MissingSections)
	writeList(&sb, "Introduced entities:", report.IntroducedEntities)

	if len(report.ChangeLog) > 0 {
		sb.WriteString("\nChange log:\n")
		for _, entry := range report.ChangeLog {
			sb.WriteString(fmt.Sprintf("  • %s: %s\n", entry.Change, entry.Details))
		}
	}

	p.printBox("VALIDATION REPORT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDraft outputs the draft's sections in render order
func (p *Printer) PrintDraft(draft *types.Draft) {
	if draft == nil || len(draft.Sections) == 0 {
		return
	}

	var sb strings.Builder
	for _, name := range draft.Sections.OrderedNames() {
		entries := draft.Sections[name].Entries()
		sb.WriteString(fmt.Sprintf("%s (%d)\n", name, len(entries)))
		count := min(len(entries), 3)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  %s\n", entries[i]))
		}
		if len(entries) > 3 {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(entries)-3))
		}
	}
	if len(draft.Degradations) > 0 {
		sb.WriteString("\nDegraded stages:\n")
		for _, d := range draft.Degradations {
			sb.WriteString(fmt.Sprintf("  ⚠ %s: %s\n", d.Stage, d.Reason))
		}
	}

	p.printBox("TAILORED DRAFT", strings.TrimSuffix(sb.String(), "\n"))
}

func writeList(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("\n" + heading + "\n")
	count := min(len(items), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", items[i]))
	}
	if len(items) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-maxItemsToShow))
	}
}
