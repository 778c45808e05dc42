// Package report renders experiment leaderboards as Markdown and HTML.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/montanaflynn/stats"

	"automl/domain/run"
)

// Summary aggregates the scores of the ranked runs.
type Summary struct {
	Runs     int     `json:"runs"`
	Degraded int     `json:"degraded"`
	Best     float64 `json:"best"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	StdDev   float64 `json:"std_dev"`
}

// Leaderboard is the ranked view of one experiment.
type Leaderboard struct {
	Experiment string               `json:"experiment"`
	Ranked     run.RankedResults    `json:"ranked"`
	Degraded   []run.Run            `json:"degraded,omitempty"`
	Summary    Summary              `json:"summary"`
	Production *run.RegisteredModel `json:"production,omitempty"`
}

// NewLeaderboard ranks runs. production may be nil.
func NewLeaderboard(experiment string, runs []run.Run, production *run.RegisteredModel) Leaderboard {
	lb := Leaderboard{
		Experiment: experiment,
		Ranked:     run.Rank(runs),
		Production: production,
	}
	for _, r := range runs {
		if r.Degraded() {
			lb.Degraded = append(lb.Degraded, r)
		}
	}

	scores := make(stats.Float64Data, len(lb.Ranked))
	for i, r := range lb.Ranked {
		scores[i] = r.Score
	}
	lb.Summary = Summary{Runs: len(runs), Degraded: len(lb.Degraded)}
	if len(scores) > 0 {
		lb.Summary.Best, _ = scores.Max()
		lb.Summary.Mean, _ = scores.Mean()
		lb.Summary.Median, _ = scores.Median()
		lb.Summary.StdDev, _ = scores.StandardDeviationPopulation()
	}
	return lb
}

// Markdown renders the leaderboard as a GitHub-flavoured table.
func (lb Leaderboard) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Leaderboard: %s\n\n", lb.Experiment)

	if len(lb.Ranked) == 0 {
		b.WriteString("No models were trained.\n")
	} else {
		b.WriteString("| Rank | Architecture | f1_macro | Run | Params |\n")
		b.WriteString("|---:|---|---:|---|---|\n")
		for i, r := range lb.Ranked {
			marker := ""
			if lb.Production != nil && lb.Production.RunID == r.ID {
				marker = " (production)"
			}
			fmt.Fprintf(&b, "| %d | %s%s | %.4f | `%s` | %s |\n",
				i+1, r.Architecture, marker, r.Score, r.ID, formatParams(r.Params))
		}
		fmt.Fprintf(&b, "\nBest %.4f, mean %.4f, median %.4f, std %.4f over %d ranked runs.\n",
			lb.Summary.Best, lb.Summary.Mean, lb.Summary.Median, lb.Summary.StdDev, len(lb.Ranked))
	}

	if len(lb.Degraded) > 0 {
		b.WriteString("\n## Failed runs\n\n")
		for _, r := range lb.Degraded {
			fmt.Fprintf(&b, "- **%s** (`%s`): %s\n", r.Architecture, r.ID, failureText(r))
		}
	}
	return b.String()
}

// HTML renders the Markdown form to a standalone HTML page.
func (lb Leaderboard) HTML() []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(lb.Markdown()))
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "Leaderboard: " + lb.Experiment,
	})
	return markdown.Render(doc, renderer)
}

func formatParams(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		v := params[k]
		if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1e15 {
			v = int64(f)
		}
		if v == nil {
			v = "none"
		}
		parts[i] = fmt.Sprintf("%s=%v", k, v)
	}
	return strings.Join(parts, ", ")
}

func failureText(r run.Run) string {
	if r.Error != "" {
		return strings.ReplaceAll(r.Error, "\n", " ")
	}
	return string(r.Status)
}
