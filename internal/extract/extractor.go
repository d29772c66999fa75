// Package extract owns the LLM-response trust boundary: it prompts the
// text-generation service for place and date expressions and turns the
// untrusted reply into a validated, ordered date range.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jonboulle/clockwork"

	"weather-agent/internal/common/logger"
	"weather-agent/internal/dates"
	"weather-agent/internal/llm"
)

// Result carries the extracted place and the resolved, ordered date range.
// The zero value is the empty (failed-extraction) sentinel.
type Result struct {
	Place     string `json:"place"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	IsRange   bool   `json:"is_range"`
}

// Empty reports whether extraction produced nothing usable.
func (r Result) Empty() bool {
	return r.Place == ""
}

type Extractor struct {
	llm         llm.Client
	clock       clockwork.Clock
	temperature float64
	logger      logger.Logger
}

func New(client llm.Client, clock clockwork.Clock, temperature float64, log logger.Logger) *Extractor {
	return &Extractor{
		llm:         client,
		clock:       clock,
		temperature: temperature,
		logger:      log.With(map[string]interface{}{"component": "extractor"}),
	}
}

// jsonPattern greedily captures the first {...} block, newlines included.
var jsonPattern = regexp.MustCompile(`(?s)\{.*\}`)

type replyPayload struct {
	Place         string `json:"place"`
	StartDateExpr string `json:"start_date_expr"`
	EndDateExpr   string `json:"end_date_expr"`
	IsRange       bool   `json:"is_range"`
}

// Extract derives place and date expressions from the question and resolves
// them into an ordered ISO date range. Malformed or adversarial reply text
// yields the empty Result with a nil error; only transport-level failures of
// the LLM call return an error.
func (e *Extractor) Extract(ctx context.Context, question string) (Result, error) {
	ref := e.clock.Now()

	reply, err := e.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: e.systemPrompt(ref.Format("2006-01-02"))},
		{Role: llm.RoleUser, Content: question},
	}, e.temperature)
	if err != nil {
		return Result{}, err
	}

	payload, ok := parseReply(reply)
	if !ok || strings.TrimSpace(payload.Place) == "" {
		e.logger.Warn("no usable extraction in reply", map[string]interface{}{
			"replyLength": len(reply),
		})
		return Result{}, nil
	}

	startExpr := payload.StartDateExpr
	if startExpr == "" {
		startExpr = "today"
	}
	endExpr := payload.EndDateExpr
	if endExpr == "" {
		endExpr = "today"
	}

	startDate := dates.Resolve(startExpr, ref)
	endDate := dates.Resolve(endExpr, ref)

	// ISO dates order lexicographically.
	if startDate > endDate {
		startDate, endDate = endDate, startDate
	}

	e.logger.Info("extraction resolved", map[string]interface{}{
		"place":     payload.Place,
		"startDate": startDate,
		"endDate":   endDate,
	})

	return Result{
		Place:     strings.TrimSpace(payload.Place),
		StartDate: startDate,
		EndDate:   endDate,
		IsRange:   payload.IsRange,
	}, nil
}

// parseReply applies the two-stage parse: first the JSON-shaped substring,
// then the whole reply.
func parseReply(reply string) (replyPayload, bool) {
	var payload replyPayload

	if match := jsonPattern.FindString(reply); match != "" {
		if err := json.Unmarshal([]byte(match), &payload); err == nil {
			return payload, true
		}
	}

	if err := json.Unmarshal([]byte(reply), &payload); err == nil {
		return payload, true
	}

	return replyPayload{}, false
}

func (e *Extractor) systemPrompt(today string) string {
	return fmt.Sprintf(
		"You are a date and location extraction assistant. Today's date is %s. "+
			"Extract the location and time information from weather questions. "+
			"For date ranges, identify both start and end dates. "+
			"Return ONLY a valid JSON object with this exact structure:\n"+
			"{\n"+
			"  \"place\": \"location name\",\n"+
			"  \"start_date_expr\": \"date expression\",\n"+
			"  \"end_date_expr\": \"date expression\",\n"+
			"  \"is_range\": true/false\n"+
			"}\n\n"+
			"Rules:\n"+
			"- Handle both past and future dates\n"+
			"- Max forecasting range is 15 days in the future\n"+
			"- Max historical range is 15 days in the past\n"+
			"- For ambiguous 'month' queries return an empty JSON\n"+
			"- If only one date/time is mentioned, use it for both start and end\n"+
			"- For 'next X days', start = 'today', end = 'in X days'\n"+
			"- For 'last X days', start = 'X days ago', end = 'yesterday'\n"+
			"- For 'this week', use 'today' to 'next sunday'\n"+
			"- For 'last week', use 'last monday' to 'last sunday'\n"+
			"- For 'tomorrow', start and end = 'tomorrow'\n"+
			"- For 'yesterday', start and end = 'yesterday'\n"+
			"- Always include a place, even if you need to infer it\n"+
			"- Keep date expressions natural (e.g., '3 days ago', 'yesterday', 'in 2 days')\n"+
			"- If the location or date is missing, return an empty JSON\n",
		today,
	)
}
