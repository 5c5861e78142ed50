package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"

	"fixmycity-be/metrics"
)

// Issue categories the model is asked to choose from.
const (
	CategoryPothole           = "pothole"
	CategoryGarbage           = "garbage"
	CategoryDamageStreetlight = "damagestreetlight"
	CategoryWaterlog          = "waterlog"
	CategoryOther             = "other"
)

// Values returned when the model reports the image is not a civic issue.
const (
	NotACivicIssue = "Not a civic issue"
	NoAuthority    = "none"
)

const promptTemplate = `You are a civic issue classifier for a city grievance portal.
Look at the attached photo together with the citizen's description and decide which one civic issue category it shows.

Citizen description: %s

Categories and their visual criteria:
- "pothole": broken or cratered road surface, asphalt damage, sunken patches on a street.
- "garbage": litter, waste piles, overflowing bins, dumped trash in a public place.
- "damagestreetlight": broken, bent, fallen or non-functional street light poles or lamps.
- "waterlog": standing water, flooded street, drainage overflow, waterlogged area.
- "other": a civic issue that clearly does not fit the four categories above.

Department routing table (assigned_authority must follow it exactly):
waterlog -> drainage
damagestreetlight -> streetlight
pothole -> road
garbage -> garbage
other -> head

Reply with a single pure JSON object and nothing else:
{"issue_type": "<category>", "assigned_authority": "<department>"}

If the image is not a civic issue at all (a selfie, a meme, an indoor scene, unrelated content), reply instead with:
{"error": "<one short sentence saying why this is not a civic issue>"}`

// Result is the outcome of a classification attempt. The classifier never
// fails its caller: any upstream failure degrades to the fixed fallback.
type Result struct {
	IssueType         string `json:"issue_type"`
	AssignedAuthority string `json:"assigned_authority"`
	Error             string `json:"error,omitempty"`
}

// NotCivic reports whether the model explicitly rejected the image as not a
// civic issue. This is the only result that blocks issue creation.
func (r *Result) NotCivic() bool {
	return r.IssueType == NotACivicIssue
}

// DepartmentFor maps an issue category to the responsible department. Total:
// unknown categories route to the head authority.
func DepartmentFor(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case CategoryWaterlog:
		return "drainage"
	case CategoryDamageStreetlight:
		return "streetlight"
	case CategoryPothole:
		return "road"
	case CategoryGarbage:
		return "garbage"
	default:
		return "head"
	}
}

func fallbackResult() *Result {
	return &Result{IssueType: CategoryOther, AssignedAuthority: "head"}
}

// Service classifies issue reports through the hosted multimodal model.
type Service struct {
	gemini *GeminiClient
	http   *http.Client
}

// New builds a classifier service around a Gemini client.
func New(gemini *GeminiClient) *Service {
	return &Service{
		gemini: gemini,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Classify fetches the image, asks the model for a category, and maps it to
// a department. Availability beats precision here: if the image fetch, the
// model call, or the reply parsing fails, the caller gets {other, head}
// instead of an error.
func (s *Service) Classify(ctx context.Context, imageURL, description string) *Result {
	start := time.Now()
	result := s.classify(ctx, imageURL, description)

	outcome := "ok"
	switch {
	case result.NotCivic():
		outcome = "not_civic"
	case result.Error != "":
		outcome = "fallback"
	}
	metrics.ClassificationsTotal.WithLabelValues(outcome).Inc()
	metrics.ClassificationDuration.Observe(time.Since(start).Seconds())
	return result
}

func (s *Service) classify(ctx context.Context, imageURL, description string) *Result {
	imageData, err := s.fetchImage(ctx, imageURL)
	if err != nil {
		log.WithError(err).Warn("classifier: image fetch failed, using fallback")
		r := fallbackResult()
		r.Error = err.Error()
		return r
	}

	prompt := fmt.Sprintf(promptTemplate, description)
	reply, err := s.gemini.AnalyzeImage(ctx, imageData, prompt)
	if err != nil {
		log.WithError(err).Warn("classifier: model call failed, using fallback")
		r := fallbackResult()
		r.Error = err.Error()
		return r
	}

	parsed, err := parseReply(reply)
	if err != nil {
		log.WithError(err).Warn("classifier: unparsable model reply, using fallback")
		r := fallbackResult()
		r.Error = err.Error()
		return r
	}
	return parsed
}

func (s *Service) fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("image fetch failed (status %d)", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// parseReply extracts the first balanced {...} block from the model reply
// and decodes it. Models wrap JSON in markdown fences or prose often enough
// that decoding the raw reply directly is not an option.
func parseReply(reply string) (*Result, error) {
	jsonBlock := extractJSONBlock(reply)
	if jsonBlock == "" {
		return nil, fmt.Errorf("no JSON object in model reply")
	}

	var answer struct {
		IssueType         string `json:"issue_type"`
		AssignedAuthority string `json:"assigned_authority"`
		Error             string `json:"error"`
	}
	if err := json.Unmarshal([]byte(jsonBlock), &answer); err != nil {
		return nil, fmt.Errorf("failed to parse model reply: %w", err)
	}

	if answer.Error != "" {
		return &Result{
			IssueType:         NotACivicIssue,
			AssignedAuthority: NoAuthority,
			Error:             answer.Error,
		}, nil
	}
	if answer.IssueType == "" {
		return nil, fmt.Errorf("model reply has no issue_type")
	}

	category := strings.ToLower(strings.TrimSpace(answer.IssueType))
	return &Result{
		IssueType:         category,
		AssignedAuthority: DepartmentFor(category),
	}, nil
}

// extractJSONBlock returns the first balanced top-level {...} block in s,
// tolerating surrounding prose and markdown fences. Returns "" if none.
func extractJSONBlock(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
