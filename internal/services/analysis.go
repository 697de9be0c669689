package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// AnalysisService is the boundary to the AI compliance analyzer. It
// holds no tenant or persistence state; callers own authorization and
// storage of the findings.
type AnalysisService struct {
	client *openai.Client
}

// Finding is one gap reported by the analyzer.
type Finding struct {
	Requirement string `json:"requirement"`
	Status      string `json:"status"`
	Severity    string `json:"severity"`
	Note        string `json:"note"`
}

func NewAnalysisService(apiKey string) *AnalysisService {
	return &AnalysisService{
		client: openai.NewClient(apiKey),
	}
}

// AnalyzeDocument checks the given document text against a compliance
// framework and extracts findings.
func (s *AnalysisService) AnalyzeDocument(ctx context.Context, framework, text string) ([]Finding, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("OpenAI client not initialized")
	}

	prompt := fmt.Sprintf(`You are a compliance audit assistant. Review the following document against the %s framework.

Document:
%s

Return a JSON array of findings in this exact shape:
[
  {
    "requirement": "the framework requirement concerned",
    "status": "met | partially_met | not_met",
    "severity": "low | medium | high",
    "note": "short explanation of the gap or evidence"
  }
]

Rules:
- Return an empty array [] if the document raises no findings
- Return JSON only, no prose around it`, framework, text)

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: openai.GPT4o,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.2,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content

	var findings []Finding
	if err := json.Unmarshal([]byte(content), &findings); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w (response: %s)", err, content)
	}
	return findings, nil
}
