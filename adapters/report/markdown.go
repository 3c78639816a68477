package report

import (
	"fmt"
	"strconv"
	"strings"

	"gosuperior/domain/superior"
	"gosuperior/ports"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

const missing = "-"

// MarkdownRenderer renders a result as a Markdown document.
type MarkdownRenderer struct{}

// HTMLRenderer renders the Markdown document to a standalone HTML page.
type HTMLRenderer struct {
	Title string
}

var (
	_ ports.RendererPort = MarkdownRenderer{}
	_ ports.RendererPort = HTMLRenderer{}
)

func (MarkdownRenderer) ContentType() string { return "text/markdown; charset=utf-8" }

func (MarkdownRenderer) Render(result *superior.Result) ([]byte, error) {
	if result == nil || result.GxE == nil {
		return nil, fmt.Errorf("nothing to render: result has no probability matrix")
	}
	return []byte(Markdown(result)), nil
}

func (HTMLRenderer) ContentType() string { return "text/html; charset=utf-8" }

func (h HTMLRenderer) Render(result *superior.Result) ([]byte, error) {
	md, err := MarkdownRenderer{}.Render(result)
	if err != nil {
		return nil, err
	}

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	title := h.Title
	if title == "" {
		title = "Probability of superior performance"
	}
	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML(md, p, renderer), nil
}

// Markdown builds the report body.
func Markdown(result *superior.Result) string {
	var sb strings.Builder

	direction := "higher is better"
	if !result.Spec.Increase {
		direction = "lower is better"
	}
	sb.WriteString("# Probability of superior performance\n\n")
	fmt.Fprintf(&sb, "- Run: `%s`\n", result.RunID)
	fmt.Fprintf(&sb, "- Selection intensity: %s (%s)\n", formatNumber(result.Spec.Intensity), direction)
	fmt.Fprintf(&sb, "- Posterior samples: %d\n", result.Samples)
	fmt.Fprintf(&sb, "- Genotypes: %d, environments: %d", len(result.Genotypes), len(result.Environments))
	if result.HasRegions() {
		fmt.Fprintf(&sb, ", regions: %d", len(result.Regions))
	}
	sb.WriteString("\n")
	if !result.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, "- Created: %s\n", result.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(&sb, "\nCells marked `%s` were not observed in the trial.\n", missing)

	sb.WriteString("\n## Within environments\n\n")
	writeMatrix(&sb, result.GxE)

	if result.GxR != nil {
		sb.WriteString("\n## Within regions\n\n")
		writeMatrix(&sb, result.GxR)
	}

	if len(result.Marginal) > 0 || len(result.MainEffects) > 0 {
		sb.WriteString("\n## Across the trial\n\n")
		sb.WriteString("| genotype | probability | mean | sd | q05 | q95 |\n")
		sb.WriteString("|---|---|---|---|---|---|\n")
		summaries := make(map[string]superior.EffectSummary, len(result.MainEffects))
		for _, s := range result.MainEffects {
			summaries[s.Genotype] = s
		}
		for j, g := range result.Genotypes {
			prob := missing
			if j < len(result.Marginal) {
				prob = formatCell(result.Marginal[j])
			}
			s, ok := summaries[g]
			if !ok {
				fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s |\n", g, prob, missing, missing, missing, missing)
				continue
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s |\n", g, prob,
				formatNumber(s.Mean), formatNumber(s.StdDev), formatNumber(s.Q05), formatNumber(s.Q95))
		}
	}

	return sb.String()
}

func writeMatrix(sb *strings.Builder, m *superior.Matrix) {
	sb.WriteString("| genotype |")
	for _, c := range m.Columns {
		fmt.Fprintf(sb, " %s |", c)
	}
	sb.WriteString("\n|---|")
	sb.WriteString(strings.Repeat("---|", len(m.Columns)))
	sb.WriteString("\n")
	for i, r := range m.Rows {
		fmt.Fprintf(sb, "| %s |", r)
		for j := range m.Columns {
			fmt.Fprintf(sb, " %s |", formatCell(m.At(i, j)))
		}
		sb.WriteString("\n")
	}
}

func formatCell(c superior.Cell) string {
	if !c.Valid {
		return missing
	}
	return formatNumber(c.Value)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
