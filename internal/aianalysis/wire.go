package aianalysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var errNoJSONObject = errors.New("no json object found in response")

// Wire tags use normalized keys: lower case with '_', '-' and spaces removed.
type analysisWire struct {
	OverallAssessment           looseString  `json:"overallassessment"`
	DetailedAnalyses            []detailWire `json:"detailedanalyses"`
	DetailedAnalysis            []detailWire `json:"detailedanalysis"`
	ComprehensiveRecommendation looseString  `json:"comprehensiverecommendation"`
	RiskScore                   any          `json:"riskscore"`
	RiskLevel                   looseString  `json:"risklevel"`
}

type detailWire struct {
	Category       looseString `json:"category"`
	DataValue      looseString `json:"datavalue"`
	Analysis       looseString `json:"analysis"`
	Impact         looseString `json:"impact"`
	Recommendation looseString `json:"recommendation"`
	Severity       looseString `json:"severity"`
}

func (d detailWire) empty() bool {
	for _, v := range []looseString{d.Category, d.DataValue, d.Analysis, d.Impact, d.Recommendation, d.Severity} {
		if strings.TrimSpace(string(v)) != "" {
			return false
		}
	}
	return true
}

type recommendationsWire struct {
	CategoryRecommendations []categoryWire `json:"categoryrecommendations"`
	Recommendations         []categoryWire `json:"recommendations"`
	DietPlan                looseString    `json:"dietplan"`
	ExercisePlan            looseString    `json:"exerciseplan"`
	LifestyleAdjustments    looseString    `json:"lifestyleadjustments"`
	MonitoringAdvice        looseString    `json:"monitoringadvice"`
	WarningSigns            looseList      `json:"warningsigns"`
}

type categoryWire struct {
	Category    looseString `json:"category"`
	Priority    looseString `json:"priority"`
	Description looseString `json:"description"`
	ActionItems looseList   `json:"actionitems"`
}

// looseString accepts any JSON scalar or array where a string is expected.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	switch data[0] {
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
	case '[':
		var items looseList
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if text := strings.TrimSpace(string(item)); text != "" {
				parts = append(parts, text)
			}
		}
		*s = looseString(strings.Join(parts, "; "))
	default:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		switch typed := v.(type) {
		case bool:
			*s = looseString(strconv.FormatBool(typed))
		case float64:
			*s = looseString(strconv.FormatFloat(typed, 'f', -1, 64))
		default:
			*s = looseString(data)
		}
	}
	return nil
}

// looseList accepts a JSON array or a single value.
type looseList []looseString

func (l *looseList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '[' {
		var items []looseString
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var single looseString
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*l = looseList{single}
	return nil
}

// decodeNormalized extracts the JSON object from raw model text, normalizes
// its keys and decodes it into dst.
func decodeNormalized(raw string, dst any) error {
	object, err := extractJSONObject(raw)
	if err != nil {
		return err
	}
	var tree any
	if err := json.Unmarshal([]byte(object), &tree); err != nil {
		return fmt.Errorf("decode response json: %w", err)
	}
	normalized, err := json.Marshal(normalizeKeys(tree))
	if err != nil {
		return fmt.Errorf("re-encode response json: %w", err)
	}
	if err := json.Unmarshal(normalized, dst); err != nil {
		return fmt.Errorf("response json does not match schema: %w", err)
	}
	return nil
}

func normalizeKeys(node any) any {
	switch v := node.(type) {
	case map[string]any:
		// Keys that normalize to the same name are resolved in sorted order;
		// a snake_case spelling wins over any other.
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		chosen := make(map[string]string, len(v))
		out := make(map[string]any, len(v))
		for _, key := range keys {
			norm := normalizeKey(key)
			if prev, seen := chosen[norm]; seen && (isSnakeCase(prev) || !isSnakeCase(key)) {
				continue
			}
			chosen[norm] = key
			out[norm] = normalizeKeys(v[key])
		}
		return out
	case []any:
		for i := range v {
			v[i] = normalizeKeys(v[i])
		}
		return v
	default:
		return v
	}
}

func isSnakeCase(key string) bool {
	for _, r := range key {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return key != ""
}

func normalizeKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(key)) {
		switch r {
		case '_', '-', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// extractJSONObject tolerates code fences and prose around the payload. It
// tries the widest {...} span first and then each balanced object in order.
func extractJSONObject(raw string) (string, error) {
	text := stripCodeFences(raw)
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first < 0 || last <= first {
		return "", errNoJSONObject
	}
	if candidate := text[first : last+1]; json.Valid([]byte(candidate)) {
		return candidate, nil
	}
	for start := first; start >= 0 && start < len(text); {
		if end := matchingBrace(text, start); end > start {
			if candidate := text[start : end+1]; json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
		next := strings.Index(text[start+1:], "{")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", errNoJSONObject
}

func matchingBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func stripCodeFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.Contains(text, "```") {
		return text
	}
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}
