package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"vizinsight/models"
)

// rowKeys are tried in order when looking for the result rows.
var rowKeys = []string{"data", "queryData", "rows"}

const maxDecodeDepth = 4

// Normalize turns an inference response body into an InferenceResult. The
// body may be JSON-encoded more than once and may wrap the answer in a
// "data" envelope. Anything it cannot make sense of yields empty values.
func Normalize(body []byte) models.InferenceResult {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return models.InferenceResult{}
	}
	return normalizeValue(v)
}

func normalizeValue(v any) models.InferenceResult {
	obj := unwrapEnvelope(decodeNested(v, 0), 0)
	if obj == nil {
		return models.InferenceResult{}
	}

	res := models.InferenceResult{
		Answer: stringField(obj, "answer"),
		SQL:    stringField(obj, "sql"),
	}
	for _, key := range rowKeys {
		if rows, ok := decodeNested(obj[key], 0).([]any); ok {
			res.Data = rows
			break
		}
	}
	return res
}

// decodeNested decodes strings that themselves hold JSON objects or arrays.
func decodeNested(v any, depth int) any {
	s, ok := v.(string)
	if !ok || depth >= maxDecodeDepth {
		return v
	}
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, `"`) {
		return v
	}
	var inner any
	if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
		return v
	}
	return decodeNested(inner, depth+1)
}

// unwrapEnvelope descends into "data" while the current object carries
// neither an answer nor SQL and "data" holds another object.
func unwrapEnvelope(v any, depth int) map[string]any {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	if depth >= maxDecodeDepth {
		return obj
	}
	_, hasAnswer := obj["answer"]
	_, hasSQL := obj["sql"]
	if hasAnswer || hasSQL {
		return obj
	}
	if inner, ok := decodeNested(obj["data"], 0).(map[string]any); ok {
		return unwrapEnvelope(inner, depth+1)
	}
	return obj
}

func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64, bool:
		return fmt.Sprint(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
