package oracle

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/ielts-sim/exam-service/internal/models"
	"github.com/ielts-sim/exam-service/internal/utils"
)

const geminiModel = "gemini-1.5-flash"

// GeminiOracle scores writing and speaking submissions with Gemini,
// asking for a strict line-oriented rubric it can parse back.
type GeminiOracle struct {
	model  *genai.GenerativeModel
	logger utils.Logger
}

// NewGeminiOracle builds the Gemini-backed evaluator. An empty API key
// yields an oracle whose Evaluate always returns ErrUnavailable, so the
// objective sections keep working without a key.
func NewGeminiOracle(ctx context.Context, apiKey string, logger utils.Logger) (*GeminiOracle, error) {
	if apiKey == "" {
		logger.Warn("GEMINI_API_KEY is not set, subjective sections cannot be scored")
		return &GeminiOracle{logger: logger}, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	return &GeminiOracle{model: client.GenerativeModel(geminiModel), logger: logger}, nil
}

func (o *GeminiOracle) Evaluate(ctx context.Context, req *Request) (*Result, error) {
	if o.model == nil {
		return nil, ErrUnavailable
	}

	prompt := buildPrompt(req)
	resp, err := o.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		o.logger.Error("Gemini evaluation failed", "section", req.Section, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	result, err := parseRubric(text, CriteriaFor(req.Section))
	if err != nil {
		o.logger.Error("Failed to parse Gemini rubric", "section", req.Section, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result, nil
}

func buildPrompt(req *Request) string {
	var b strings.Builder

	if req.Section == models.SectionSpeaking {
		b.WriteString("You are an experienced IELTS speaking examiner. Evaluate the transcript of a candidate's spoken responses.\n\n")
	} else {
		b.WriteString("You are an experienced IELTS writing examiner. Evaluate the candidate's written responses.\n\n")
	}

	for i, task := range req.TaskPrompts {
		fmt.Fprintf(&b, "Task %d:\n---\n%s\n---\n\n", i+1, task)
	}

	b.WriteString("Candidate's response:\n---\n")
	b.WriteString(req.CandidateText)
	b.WriteString("\n---\n\n")

	criteria := CriteriaFor(req.Section)
	b.WriteString("Score each criterion from 0.0 to 9.0 in 0.5 steps, then give an overall band, strengths, and areas for improvement.\n")
	b.WriteString("Respond with exactly this format, one item per line:\n")
	for _, c := range criteria {
		fmt.Fprintf(&b, "%s: <score>\n", c)
	}
	b.WriteString("overall: <band>\n")
	b.WriteString("strengths: <one paragraph>\n")
	b.WriteString("improvements: <one paragraph>\n")

	return b.String()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}

// parseRubric reads the line-oriented "key: value" rubric back out of
// the model response. Every criterion and the overall band must be
// present and numeric; anything else is an oracle failure.
func parseRubric(text string, criteria []string) (*Result, error) {
	fields := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(key, "-")))
		key = strings.Trim(key, "* ")
		if _, exists := fields[key]; !exists {
			fields[key] = strings.TrimSpace(value)
		}
	}

	result := &Result{Criteria: make(map[string]float64, len(criteria))}
	for _, c := range criteria {
		raw, ok := fields[c]
		if !ok {
			return nil, fmt.Errorf("rubric is missing criterion %q", c)
		}
		score, err := parseScore(raw)
		if err != nil {
			return nil, fmt.Errorf("criterion %q: %w", c, err)
		}
		result.Criteria[c] = score
	}

	overallRaw, ok := fields["overall"]
	if !ok {
		return nil, fmt.Errorf("rubric is missing the overall band")
	}
	overall, err := parseScore(overallRaw)
	if err != nil {
		return nil, fmt.Errorf("overall band: %w", err)
	}
	result.OverallBand = overall

	result.Strengths = fields["strengths"]
	result.Improvements = fields["improvements"]
	return result, nil
}

// parseScore extracts the leading numeric token, tolerating trailing
// commentary like "6.5 (good control of cohesion)".
func parseScore(raw string) (float64, error) {
	token := raw
	if parts := strings.Fields(raw); len(parts) > 0 {
		token = parts[0]
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(token), 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse score %q", raw)
	}
	return clampBand(v), nil
}
