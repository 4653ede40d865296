// Package questions implements the question provider facade (C7): a
// circuit-breaker-protected HTTP client against a Gemini-compatible
// generateContent endpoint, falling back to a static reserve bank whenever
// the upstream is unavailable, slow, or returns invalid content. Grounded
// on the teacher's gobreaker-wrapped client idiom (internal/v1/bus,
// internal/v1/summary) now applied over plain HTTP+JSON instead of gRPC,
// since this pack carries no generated stubs for a question-generation
// service.
package questions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ovidtrivia/quizroom/internal/v1/metrics"
	"github.com/ovidtrivia/quizroom/internal/v1/room"
	"github.com/sony/gobreaker"
)

// Result is the outcome of a Generate call.
type Result struct {
	Questions []room.Question
	Source    string // "ai" | "fallback"
	Reason    string // populated when Source == "fallback"
}

const geminiBaseURL = "https://generativelanguage.googleapis.com"

// Provider generates trivia questions for a topic, falling back to a
// static reserve bank on any upstream failure.
type Provider struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	timeout    time.Duration
	cb         *gobreaker.CircuitBreaker
}

// NewProvider constructs a Provider. apiKey may be empty, in which case
// every call goes straight to the fallback bank (no upstream configured).
func NewProvider(apiKey, model string, timeoutSeconds int) *Provider {
	return newProvider(apiKey, model, timeoutSeconds, geminiBaseURL)
}

func newProvider(apiKey, model string, timeoutSeconds int, baseURL string) *Provider {
	st := gobreaker.Settings{
		Name:        "questions",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("questions").Set(stateVal)
		},
	}

	return &Provider{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		timeout:    time.Duration(timeoutSeconds) * time.Second,
		cb:         gobreaker.NewCircuitBreaker(st),
	}
}

// Generate produces 2*perTeam questions for topic. It always returns at
// least that many entries, substituting from the reserve bank wherever the
// upstream result is short, invalid, or unreachable.
func (p *Provider) Generate(ctx context.Context, topic string, perTeam int) Result {
	need := 2 * perTeam
	if p.apiKey == "" {
		metrics.QuestionsGenerated.WithLabelValues("fallback").Add(float64(need))
		return Result{
			Questions: reserveBank(topic, need),
			Source:    "fallback",
			Reason:    "no question provider configured",
		}
	}

	generated, err := p.callUpstream(ctx, topic, need)
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("questions").Inc()
		}
		slog.Warn("question generation failed, using reserve bank", "topic", topic, "error", err)
		metrics.QuestionsGenerated.WithLabelValues("fallback").Add(float64(need))
		return Result{
			Questions: reserveBank(topic, need),
			Source:    "fallback",
			Reason:    err.Error(),
		}
	}

	valid := make([]room.Question, 0, len(generated))
	for _, q := range generated {
		if isValid(q) {
			valid = append(valid, q)
		}
	}
	if len(valid) >= need {
		metrics.QuestionsGenerated.WithLabelValues("ai").Add(float64(need))
		return Result{Questions: valid[:need], Source: "ai"}
	}

	slog.Warn("question generation returned partial results, padding from reserve bank",
		"topic", topic, "got", len(valid), "need", need)
	padded := append(valid, reserveBank(topic, need-len(valid))...)
	metrics.QuestionsGenerated.WithLabelValues("ai").Add(float64(len(valid)))
	metrics.QuestionsGenerated.WithLabelValues("fallback").Add(float64(need - len(valid)))
	return Result{
		Questions: padded,
		Source:    "fallback",
		Reason:    "upstream returned fewer valid questions than required",
	}
}

// Check reports the provider's health for the readiness probe (A3/health).
// It never calls upstream: a provider with no API key configured is reported
// as "not_configured" (the fallback bank still serves every request), and an
// open circuit is reported as "degraded" without blocking on the timeout.
func (p *Provider) Check(_ context.Context) string {
	if p.apiKey == "" {
		return "not_configured"
	}
	if p.cb.State() == gobreaker.StateOpen {
		return "degraded"
	}
	return "healthy"
}

func isValid(q room.Question) bool {
	if strings.TrimSpace(q.Text) == "" {
		return false
	}
	for _, o := range q.Options {
		if strings.TrimSpace(o) == "" {
			return false
		}
	}
	return q.CorrectOption >= 0 && q.CorrectOption <= 3
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// generatedQuestion is the JSON shape we instruct the model to emit inside
// its text response.
type generatedQuestion struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
}

func (p *Provider) callUpstream(ctx context.Context, topic string, need int) ([]room.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.cb.Execute(func() (interface{}, error) {
		return p.doRequest(ctx, topic, need)
	})
	if err != nil {
		return nil, err
	}
	return result.([]room.Question), nil
}

func (p *Provider) doRequest(ctx context.Context, topic string, need int) ([]room.Question, error) {
	prompt := fmt.Sprintf(
		"Generate exactly %d multiple-choice trivia questions about %q. "+
			"Respond with a JSON array only, each entry shaped as "+
			`{"text":string,"options":[4 strings],"correctOption":0-3 index}.`,
		need, topic,
	)

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf(
		"%s/v1beta/models/%s:generateContent?key=%s",
		p.baseURL, p.model, p.apiKey,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("question provider returned status %d", resp.StatusCode)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("question provider returned no candidates")
	}

	var generated []generatedQuestion
	text := parsed.Candidates[0].Content.Parts[0].Text
	if err := json.Unmarshal([]byte(text), &generated); err != nil {
		return nil, fmt.Errorf("failed to parse generated questions: %w", err)
	}

	out := make([]room.Question, 0, len(generated))
	for _, g := range generated {
		q := toRoomQuestion(g)
		q.QuestionID = newQuestionID()
		out = append(out, q)
	}
	return out, nil
}

func toRoomQuestion(g generatedQuestion) room.Question {
	q := room.Question{Text: g.Text, CorrectOption: g.CorrectOption}
	for i := 0; i < 4 && i < len(g.Options); i++ {
		q.Options[i] = g.Options[i]
	}
	return q
}
