package report

import (
	"strings"
	"testing"

	"gosuperior/domain/superior"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportResult() *superior.Result {
	gxe := superior.NewMatrix([]string{"A", "B"}, []string{"E1", "E2"})
	gxe.Set(0, 0, 1)
	gxe.Set(0, 1, 0.25)
	gxe.Set(1, 1, 0.5)
	gxr := superior.NewMatrix([]string{"A", "B"}, []string{"North"})
	gxr.Set(0, 0, 0.625)

	return &superior.Result{
		RunID:        "run-1",
		Spec:         superior.SelectionSpec{Intensity: 0.5, Increase: false},
		Samples:      200,
		Genotypes:    []string{"A", "B"},
		Environments: []string{"E1", "E2"},
		Regions:      []string{"North"},
		GxE:          gxe,
		GxR:          gxr,
		Marginal:     []superior.Cell{superior.Prob(0.75), superior.Prob(0.25)},
		MainEffects: []superior.EffectSummary{
			{Genotype: "A", Mean: 1.5, StdDev: 0.2, Q05: 1.1, Q95: 1.9},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(reportResult())

	assert.Contains(t, md, "- Selection intensity: 0.500 (lower is better)")
	assert.Contains(t, md, "- Genotypes: 2, environments: 2, regions: 1")
	assert.Contains(t, md, "| genotype | E1 | E2 |\n|---|---|---|\n")
	assert.Contains(t, md, "| A | 1.000 | 0.250 |")
	assert.Contains(t, md, "| B | - | 0.500 |")
	assert.Contains(t, md, "## Within regions")
	assert.Contains(t, md, "| A | 0.750 | 1.500 | 0.200 | 1.100 | 1.900 |")
	assert.Contains(t, md, "| B | 0.250 | - | - | - | - |")
}

func TestMarkdown_WithoutRegions(t *testing.T) {
	result := reportResult()
	result.GxR = nil
	result.Regions = nil

	md := Markdown(result)
	assert.NotContains(t, md, "Within regions")
	assert.NotContains(t, md, "regions:")
}

func TestHTMLRenderer(t *testing.T) {
	out, err := HTMLRenderer{Title: "Trial 7"}.Render(reportResult())
	require.NoError(t, err)

	page := string(out)
	assert.True(t, strings.Contains(page, "<title>Trial 7</title>"), page)
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<td>0.625</td>")
	assert.Equal(t, "text/html; charset=utf-8", HTMLRenderer{}.ContentType())
}

func TestRender_RequiresMatrix(t *testing.T) {
	_, err := MarkdownRenderer{}.Render(&superior.Result{})
	assert.Error(t, err)
	_, err = HTMLRenderer{}.Render(nil)
	assert.Error(t, err)
}
