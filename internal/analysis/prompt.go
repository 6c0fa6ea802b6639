// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"bytes"
	"strings"
	"text/template"
	"time"

	"github.com/pdiddy/reality-check/pkg/types"
)

var funcs = template.FuncMap{
	"inc":      func(i int) int { return i + 1 },
	"excerpt":  excerpt,
	"fallback": orDefault,
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "unknown"
		}
		return t.Format("2006-01-02")
	},
	"join": strings.Join,
}

// credibilityPromptTmpl asks for a JSON credibility assessment of the
// question against the top sources.
var credibilityPromptTmpl = template.Must(template.New("credibility").Funcs(funcs).Parse(`As an expert fact-checker and information analyst, evaluate the credibility of the following content based on the provided sources.

Content to analyze:
"{{.Question}}"

Sources:
{{range $i, $s := .Sources}}
{{inc $i}}. {{fallback $s.Title "No title"}}
   - Source: {{fallback $s.Source "Unknown"}}
   - URL: {{fallback $s.URL "No URL"}}
   - Excerpt: {{excerpt (fallback $s.Content "No content") 300}}
{{end}}
Provide analysis in the following JSON format:
{
  "credibility_score": 0.0-1.0,
  "confidence_level": "high|medium|low",
  "key_findings": ["finding1", "finding2", "finding3"],
  "source_reliability": {
    "high": ["source1", "source2"],
    "medium": ["source3"],
    "low": ["source4"]
  },
  "consensus": "strong_agreement|moderate_agreement|mixed|conflicting",
  "red_flags": ["flag1", "flag2"],
  "verification_needed": ["claim1", "claim2"],
  "summary": "Brief summary of the analysis"
}

Be thorough but concise. Focus on factual accuracy, source quality, and potential biases. Respond with the JSON object only.
`))

// responsePromptTmpl asks for the conversational answer.
var responsePromptTmpl = template.Must(template.New("response").Funcs(funcs).Parse(`You are "Reality Check," an assistant that helps people navigate information by providing balanced, thoughtful analysis.

User Question: "{{.Question}}"

Search Results ({{len .Results}} sources found):
{{range $i, $r := .Results}}
{{inc $i}}. {{$r.Title}}
   - Source: {{$r.Source}} (Credibility: {{printf "%.2f" $r.CredibilityScore}}/1.0)
   - Published: {{date $r.PublishDate}}
   - Key excerpt: {{if $r.Highlights.Content}}{{join $r.Highlights.Content "..."}}{{else}}{{excerpt $r.Content 200}}{{end}}
   - URL: {{$r.URL}}
{{- if $r.Verdict}}
   - Fact-check verdict: {{$r.Verdict}}
{{- end}}
{{end}}
Previous conversation context:
{{if .History}}{{range .History}}{{.Role}}: {{.Content}}
{{end}}{{else}}None
{{end}}
Instructions:
1. Provide a thoughtful, balanced response that acknowledges complexity
2. Reference specific sources when making claims
3. If evidence is mixed, explain the different perspectives clearly
4. Include credibility assessment of sources when relevant
5. Be conversational but authoritative
6. If you can't find sufficient information, be transparent about limitations
7. Suggest follow-up questions if appropriate
8. Use "I found X studies/articles..." to show your search process
9. Never claim absolute certainty - use phrases like "evidence suggests" or "according to reliable sources"
10. If the topic is controversial, present multiple viewpoints fairly

Response format: Provide a natural, conversational response (not JSON). Be engaging but factual.
`))

// followUpPromptTmpl asks for three follow-up questions as a JSON array.
var followUpPromptTmpl = template.Must(template.New("followup").Funcs(funcs).Parse(`Based on this conversation about fact-checking and information verification, suggest 3 relevant follow-up questions the user might want to ask.

Conversation:
{{range .Messages}}{{.Role}}: {{.Content}}
{{end}}
Generate 3 questions that would help the user dig deeper into the topic, explore related claims, or understand different aspects of the issue.

Format as a JSON array: ["Question 1?", "Question 2?", "Question 3?"]
`))

// biasPromptTmpl asks for a JSON bias assessment of one text.
var biasPromptTmpl = template.Must(template.New("bias").Funcs(funcs).Parse(`Analyze the following text for potential bias, inflammatory language, or misleading information.

Text: "{{.Text}}"
Source: {{fallback .Source "Unknown"}}

Provide analysis in JSON format:
{
  "bias_score": 0.0-1.0,
  "bias_types": ["political", "commercial", "confirmation", "etc"],
  "inflammatory_language": ["word1", "phrase2"],
  "emotional_indicators": ["urgent", "shocking", "etc"],
  "missing_context": ["important context that's missing"],
  "balanced_assessment": "brief assessment"
}
`))

type credibilityData struct {
	Question string
	Sources  []types.SearchResult
}

type responseData struct {
	Question string
	Results  []types.SearchResult
	History  []types.Message
}

type followUpData struct {
	Messages []types.Message
}

type biasData struct {
	Text   string
	Source string
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// excerpt returns at most n runes of s, marking a cut with "...".
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
