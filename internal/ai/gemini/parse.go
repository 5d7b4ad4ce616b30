package gemini

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"

	"github.com/spigell/roommate-matcher/internal/matcherr"
)

const responseSchema = `{
  "type": "object",
  "required": ["score", "explanation"],
  "properties": {
    "score": {"type": "number"},
    "explanation": {"type": "string"}
  }
}`

var (
	schema = mustCompileSchema(responseSchema)

	scorePattern       = regexp.MustCompile(`(?i)"?score"?\s*[:=]\s*"?(-?\d+(?:\.\d+)?)`)
	explanationPattern = regexp.MustCompile(`(?is)"?explanation"?\s*[:=]\s*"((?:[^"\\]|\\.)*)"`)
)

type notesResponse struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

func mustCompileSchema(raw string) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("compile notes response schema: %v", err))
	}
	return compiled
}

// parseResponse reads the model output. Documents that match the schema are decoded strictly;
// anything else goes through a best-effort pattern extraction before giving up.
func parseResponse(raw string) (*notesResponse, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, &matcherr.MalformedResponseError{Reason: "empty response", Raw: raw}
	}

	var strictErr error
	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		strictErr = fmt.Errorf("decode json: %w", err)
	} else if err := validateDocument(data); err != nil {
		strictErr = err
	} else {
		resp, err := decodeDocument(data)
		if err == nil {
			return resp, nil
		}
		strictErr = err
	}

	if resp, ok := extractLoose(cleaned); ok {
		return resp, nil
	}

	return nil, &matcherr.MalformedResponseError{Reason: strictErr.Error(), Raw: raw}
}

func validateDocument(data map[string]any) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return fmt.Errorf("validate response: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("response does not match schema: %s", strings.Join(problems, "; "))
}

func decodeDocument(data map[string]any) (*notesResponse, error) {
	var resp notesResponse
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &resp,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	resp.Explanation = strings.TrimSpace(resp.Explanation)
	return &resp, nil
}

func extractLoose(raw string) (*notesResponse, bool) {
	match := scorePattern.FindStringSubmatch(raw)
	if len(match) != 2 {
		return nil, false
	}
	score, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil, false
	}

	resp := &notesResponse{Score: score}
	if expl := explanationPattern.FindStringSubmatch(raw); len(expl) == 2 {
		if unquoted, err := strconv.Unquote(`"` + expl[1] + `"`); err == nil {
			resp.Explanation = strings.TrimSpace(unquoted)
		} else {
			resp.Explanation = strings.TrimSpace(expl[1])
		}
	}
	return resp, true
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	// Drop chatter around the object.
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start > 0 && end > start {
		raw = raw[start : end+1]
	}
	return raw
}
