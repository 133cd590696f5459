package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParse marks replies whose text payload could not be decoded as JSON even
// after recovery.
var ErrParse = errors.New("model reply is not valid JSON")

// ValidationError reports a structurally invalid model reply. No part of such
// a reply is ever applied to game state.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid model reply: " + strings.Join(e.Problems, "; ")
}

// ModelResponse is the validated structured reply for one turn. It is only
// ever produced by ParseModelResponse; nothing downstream re-inspects the raw
// payload.
type ModelResponse struct {
	Narrative        string
	DashboardUpdates map[string]any
	SuggestedActions []string
	Indicators       map[string]any
	XPAwarded        int
	UnlockedShardID  string

	// Raw is the re-serialized JSON appended verbatim to the ledger.
	Raw string
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ParseModelResponse decodes and validates the model's text payload. If a
// direct parse fails it attempts recovery from a fenced code block, then from
// the substring between the first '{' and the last '}'.
func ParseModelResponse(raw string) (*ModelResponse, error) {
	obj, err := decodeWithRecovery(raw)
	if err != nil {
		return nil, err
	}

	var problems []string
	resp := &ModelResponse{
		DashboardUpdates: map[string]any{},
		Indicators:       map[string]any{},
		SuggestedActions: []string{},
	}

	if v, ok := obj["narrative"]; !ok {
		problems = append(problems, `missing "narrative"`)
	} else if s, ok := v.(string); !ok {
		problems = append(problems, `"narrative" must be a string`)
	} else {
		resp.Narrative = s
	}

	if v, ok := obj["dashboard_updates"]; !ok {
		problems = append(problems, `missing "dashboard_updates"`)
	} else if m, ok := v.(map[string]any); !ok {
		problems = append(problems, `"dashboard_updates" must be an object`)
	} else {
		resp.DashboardUpdates = m
	}

	if v, ok := obj["suggested_actions"]; !ok {
		problems = append(problems, `missing "suggested_actions"`)
	} else if list, ok := v.([]any); !ok {
		problems = append(problems, `"suggested_actions" must be an array`)
	} else {
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				problems = append(problems, fmt.Sprintf(`"suggested_actions"[%d] must be a string`, i))
				continue
			}
			resp.SuggestedActions = append(resp.SuggestedActions, s)
		}
	}

	if v, ok := obj["xp_awarded"]; ok {
		if n, ok := v.(float64); !ok {
			problems = append(problems, `"xp_awarded" must be a number`)
		} else {
			resp.XPAwarded = int(n)
		}
	}

	if v, ok := obj["indicators"]; ok {
		if m, ok := v.(map[string]any); !ok {
			problems = append(problems, `"indicators" must be an object`)
		} else {
			resp.Indicators = m
		}
	}

	if v, ok := obj["unlocked_shard_id"]; ok {
		if s, ok := v.(string); ok {
			resp.UnlockedShardID = s
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	reserialized, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("re-serialize reply: %w", err)
	}
	resp.Raw = string(reserialized)
	return resp, nil
}

func decodeWithRecovery(raw string) (map[string]any, error) {
	candidates := []string{strings.TrimSpace(raw)}
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		candidates = append(candidates, raw[start:end+1])
	}
	for _, c := range candidates {
		var obj map[string]any
		if err := json.Unmarshal([]byte(c), &obj); err == nil {
			return obj, nil
		}
	}
	return nil, ErrParse
}
