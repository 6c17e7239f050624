package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/app"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
)

// Generator asks a text-generation endpoint for quiz questions.
type Generator struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewGenerator(endpoint, apiKey string, timeout time.Duration) *Generator {
	return &Generator{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

var _ app.QuestionGenerator = (*Generator)(nil)

type generateRequest struct {
	Prompt            string   `json:"prompt"`
	ExistingQuestions []string `json:"existingQuestions,omitempty"`
}

type generateResponse struct {
	Questions []domain.Question `json:"questions"`
}

// GenerateQuestions sends the prompt plus the prompts of existing questions so
// the model avoids duplicates.
func (g *Generator) GenerateQuestions(ctx context.Context, prompt string, existing []domain.Question) ([]domain.Question, error) {
	body := generateRequest{Prompt: strings.TrimSpace(prompt)}
	for _, q := range existing {
		body.ExistingQuestions = append(body.ExistingQuestions, q.Question)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("generate questions: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode generated questions: %w", err)
	}
	return out.Questions, nil
}
