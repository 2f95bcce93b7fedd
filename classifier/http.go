package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	c "github.com/patrickmn/go-cache"
	"github.com/zapflow/zapflow/config"
	"github.com/zapflow/zapflow/logger"
	"go.uber.org/zap"
)

const cooldownKey = "classifier_cooldown"

type HttpClassifier struct {
	endpoint      string
	apiKey        string
	client        *http.Client
	minConfidence float64
	cooldown      time.Duration
	suppression   *c.Cache
}

var _ Classifier = new(HttpClassifier)

func NewHttpClassifier(cfg config.ClassifierConfig) *HttpClassifier {
	timeout := time.Duration(cfg.TimeoutSeconds * float64(time.Second))
	if timeout <= 0 {
		timeout = 4500 * time.Millisecond
	}
	return &HttpClassifier{
		endpoint:      cfg.Endpoint,
		apiKey:        cfg.ApiKey,
		client:        &http.Client{Timeout: timeout},
		minConfidence: cfg.MinConfidence,
		cooldown:      time.Duration(cfg.CooldownMinutes) * time.Minute,
		suppression:   c.New(c.NoExpiration, time.Minute),
	}
}

type upstreamRequest struct {
	Prompt string `json:"prompt"`
}

type verdict struct {
	SelectedFlowId  string  `json:"selected_flow_id"`
	SelectedRouteId string  `json:"selected_route_id"`
	Confidence      float64 `json:"confidence"`
	Reason          string  `json:"reason"`
}

func (hc *HttpClassifier) Classify(ctx context.Context, message string, candidates []Candidate) *Result {
	if len(hc.endpoint) == 0 || len(candidates) == 0 {
		return nil
	}
	if _, suppressed := hc.suppression.Get(cooldownKey); suppressed {
		return nil
	}
	body, err := json.Marshal(upstreamRequest{Prompt: buildInstruction(message, candidates)})
	if err != nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hc.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	if len(hc.apiKey) > 0 {
		req.Header.Set("Authorization", "Bearer "+hc.apiKey)
	}
	resp, err := hc.client.Do(req)
	if err != nil {
		logger.Debug("classifier unavailable", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || isQuotaError(resp.StatusCode, string(raw)) {
		logger.Warn("classifier quota exhausted, suppressing", zap.Duration("cooldown", hc.cooldown))
		hc.suppression.Set(cooldownKey, time.Now(), hc.cooldown)
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		logger.Debug("classifier http error", zap.Int("status", resp.StatusCode))
		return nil
	}
	v, ok := parseVerdict(string(raw))
	if !ok {
		return nil
	}
	return hc.evaluate(v, candidates)
}

func (hc *HttpClassifier) evaluate(v verdict, candidates []Candidate) *Result {
	id := v.SelectedFlowId
	if len(id) == 0 {
		id = v.SelectedRouteId
	}
	switch strings.ToLower(strings.TrimSpace(id)) {
	case "", "none", "no_match", "null":
		return &Result{Status: NO_MATCH, Confidence: v.Confidence, Reason: v.Reason}
	}
	offered := false
	for _, cand := range candidates {
		if cand.Id == id {
			offered = true
			break
		}
	}
	if !offered {
		return &Result{Status: INDETERMINATE, Confidence: v.Confidence, Reason: "id not among candidates"}
	}
	if v.Confidence < hc.minConfidence {
		return &Result{Status: INDETERMINATE, Id: id, Confidence: v.Confidence, Reason: v.Reason}
	}
	return &Result{Status: SELECTED, Id: id, Confidence: v.Confidence, Reason: v.Reason}
}

func buildInstruction(message string, candidates []Candidate) string {
	var b strings.Builder
	b.WriteString("Classify the user message into one of the candidates. ")
	b.WriteString("Answer with strict JSON {\"selected_flow_id\": string or \"none\", \"confidence\": number 0-1, \"reason\": string}.\n")
	b.WriteString("Message: ")
	b.WriteString(message)
	b.WriteString("\nCandidates:\n")
	for _, cand := range candidates {
		b.WriteString("- id=")
		b.WriteString(cand.Id)
		if len(cand.Label) > 0 {
			b.WriteString(" label=")
			b.WriteString(cand.Label)
		}
		if len(cand.Sample) > 0 {
			b.WriteString(" phrases=")
			b.WriteString(cand.Sample)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func isQuotaError(status int, body string) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	lower := strings.ToLower(body)
	return strings.Contains(lower, "quota") || strings.Contains(lower, "rate limit")
}

// parseVerdict extracts the strict-JSON verdict from an upstream reply that
// may wrap it in an envelope, prose or a fenced code block.
func parseVerdict(raw string) (verdict, bool) {
	var envelope struct {
		Text    string `json:"text"`
		Content string `json:"content"`
	}
	candidates := []string{raw}
	if err := json.Unmarshal([]byte(raw), &envelope); err == nil {
		if len(envelope.Text) > 0 {
			candidates = append([]string{envelope.Text}, candidates...)
		}
		if len(envelope.Content) > 0 {
			candidates = append([]string{envelope.Content}, candidates...)
		}
	}
	for _, text := range candidates {
		if obj, ok := extractJsonObject(text); ok {
			var v verdict
			if err := json.Unmarshal([]byte(obj), &v); err == nil {
				return v, true
			}
		}
	}
	return verdict{}, false
}

func extractJsonObject(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			s = rest[:end]
		} else {
			s = rest
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	candidate := s[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}
