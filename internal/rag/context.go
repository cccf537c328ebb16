package rag

import (
	"strings"
	"unicode/utf8"

	"github.com/akolanti/PdfQA/internal/domain/commonModels"
	"github.com/akolanti/PdfQA/internal/rag/llm"
	"github.com/akolanti/PdfQA/internal/rag/vectorDB"
)

const ellipsis = "..."

// truncate cuts s to limit runes and marks the cut.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + ellipsis
}

// pairHistory folds chronological messages into (user, assistant) turns.
// An assistant message without a preceding open user turn becomes ("", reply); with a
// window of one this is the expected shape, not a gap.
func pairHistory(msgs []commonModels.Message, budget int) []commonModels.HistoryTurn {
	turns := make([]commonModels.HistoryTurn, 0, len(msgs))
	for _, m := range msgs {
		content := truncate(m.Content, budget)
		switch m.Role {
		case commonModels.RoleUser:
			turns = append(turns, commonModels.HistoryTurn{User: content})
		case commonModels.RoleAssistant:
			if n := len(turns); n > 0 && turns[n-1].Assistant == "" && turns[n-1].User != "" {
				turns[n-1].Assistant = content
				continue
			}
			turns = append(turns, commonModels.HistoryTurn{Assistant: content})
		}
	}
	return turns
}

func matchTexts(matches []vectorDB.Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Metadata.Content)
	}
	return out
}

// collectSources truncates each label, keeps the first limit of them, then drops duplicates.
// The cap is applied before deduplication so fewer than limit labels may come back.
func collectSources(matches []vectorDB.Match, labelMax int, limit int) []string {
	labels := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Metadata.Source == "" {
			continue
		}
		labels = append(labels, truncate(m.Metadata.Source, labelMax))
	}
	if len(labels) > limit {
		labels = labels[:limit]
	}

	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// estimateTokens is words x multiplier. It is an estimate for the usage audit, not a tokenizer.
func (s *service) estimateTokens(texts ...string) int {
	words := 0
	for _, t := range texts {
		words += len(strings.Fields(t))
	}
	return int(float64(words) * s.opts.TokenMultiplier)
}

func (s *service) estimateUsage(sessionId string, req llm.Request, gen llm.Generation) commonModels.TokenUsage {
	inputs := make([]string, 0, 1+2*len(req.History)+len(req.Context))
	inputs = append(inputs, req.Question)
	for _, turn := range req.History {
		inputs = append(inputs, turn.User, turn.Assistant)
	}
	inputs = append(inputs, req.Context...)

	in := s.estimateTokens(inputs...)
	out := s.estimateTokens(gen.Text)
	return commonModels.TokenUsage{
		SessionId:    sessionId,
		Model:        gen.Model,
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  in + out,
	}
}
