// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"fmt"
	"text/template"
)

// systemPrompt frames every analysis request.
const systemPrompt = "You are a helpful research assistant specializing in academic literature analysis. Always respond in the requested format."

// relevancePromptTmpl scores one paper against the research question.
var relevancePromptTmpl = template.Must(template.New("relevance").Parse(`You are a research assistant helping to evaluate the relevance of a scientific paper to a specific research question.

Research Question: {{.Question}}
Domain: {{.Domain}}

Paper Title: {{.Title}}
Abstract: {{.Abstract}}

Evaluate how relevant this paper is to the research question. Consider:
1. Direct relevance to the topic
2. Methodological relevance
3. Theoretical relevance
4. Potential for providing insights

Respond in JSON format:
{
    "relevance_score": <float between 0 and 1>,
    "explanation": "<brief explanation of relevance>",
    "key_aspects": ["<relevant aspect 1>", "<relevant aspect 2>", ...]
}`))

// findingsPromptTmpl extracts structured findings from one paper.
var findingsPromptTmpl = template.Must(template.New("findings").Parse(`You are a research assistant extracting key findings from a scientific paper.

Research Question: {{.Question}}
Domain: {{.Domain}}

Paper Title: {{.Title}}
Abstract: {{.Abstract}}

Extract the key findings from this paper. For each finding, provide:
1. The main claim or finding
2. The evidence supporting it
3. Any limitations mentioned

Respond in JSON format:
{
    "key_findings": [
        {
            "finding": "<main finding>",
            "evidence": "<supporting evidence>",
            "limitations": "<any limitations>"
        }
    ],
    "methodology": "<brief description of methods used>",
    "sample_size": "<sample size if mentioned>",
    "reasoning": "<your step-by-step reasoning for identifying these findings>"
}`))

// synthesisPromptTmpl identifies cross-paper themes, contradictions, gaps,
// and consensus.
var synthesisPromptTmpl = template.Must(template.New("synthesis").Parse(`You are a research assistant synthesizing findings across multiple papers for a literature review.

Research Question: {{.Question}}
Domain: {{.Domain}}

Papers and their key findings:
{{.PapersSummary}}

Analyze these papers together and identify:
1. Common themes
2. Contradictory findings
3. Research gaps
4. Areas of consensus

For each insight, explain your reasoning step by step.

Respond in JSON format:
{
    "themes": [
        {
            "theme": "<identified theme>",
            "supporting_papers": ["<paper title 1>", "<paper title 2>"],
            "reasoning": "<how you identified this theme>"
        }
    ],
    "contradictions": [
        {
            "topic": "<topic of contradiction>",
            "positions": ["<position 1>", "<position 2>"],
            "papers": ["<paper 1>", "<paper 2>"],
            "reasoning": "<how these contradict>"
        }
    ],
    "gaps": [
        {
            "gap": "<identified research gap>",
            "reasoning": "<why this is a gap>"
        }
    ],
    "consensus": [
        {
            "finding": "<area of agreement>",
            "papers": ["<supporting papers>"],
            "strength": "<strong/moderate/weak>"
        }
    ]
}`))

// reviewPromptTmpl composes the final prose review.
var reviewPromptTmpl = template.Must(template.New("review").Parse(`You are an expert academic writer helping to create a literature review section for a peer-reviewed article.

Research Question: {{.Question}}
Domain: {{.Domain}}

Papers Analyzed:
{{.PapersSummary}}

Key Themes Identified:
{{.Themes}}

Research Gaps:
{{.Gaps}}

Areas of Consensus:
{{.Consensus}}

Contradictions Found:
{{.Contradictions}}

Write a comprehensive literature review section that:
1. Introduces the research question and its importance
2. Organizes findings thematically
3. Critically analyzes the literature
4. Identifies gaps and future directions
5. Maintains academic tone and style

The review should be suitable for inclusion in a peer-reviewed article. Include proper in-text citations using author-date format.

At the end, include a "Chain of Thought" section explaining how you organized and synthesized the literature.
`))

// renderPrompt executes tmpl with data, panicking only on programmer error
// (all templates are parsed at init).
func renderPrompt(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
