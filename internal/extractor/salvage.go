package extractor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeCandidates parses the model's reply into raw payload maps. It strips
// markdown fencing first, then falls back to salvaging the longest valid
// prefix of a truncated array before giving up.
func decodeCandidates(text string) ([]map[string]any, error) {
	cleaned := stripFences(text)
	if cleaned == "" {
		return nil, nil
	}

	var payloads []map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payloads); err == nil {
		return payloads, nil
	}

	// Some replies come back as a bare object instead of a one-element array.
	if strings.HasPrefix(cleaned, "{") {
		var single map[string]any
		if err := json.Unmarshal([]byte(cleaned), &single); err == nil {
			return []map[string]any{single}, nil
		}
	}

	salvaged, ok := salvageArray(cleaned)
	if !ok {
		return nil, fmt.Errorf("unparseable model output (%d bytes)", len(cleaned))
	}
	if err := json.Unmarshal([]byte(salvaged), &payloads); err != nil {
		return nil, fmt.Errorf("salvaged output still invalid: %w", err)
	}
	return payloads, nil
}

// stripFences removes a markdown code fence wrapper (``` or ```json) and any
// prose surrounding the array itself.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		if idx := strings.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// salvageArray recovers the longest prefix of a JSON array that ends on a
// complete top-level element. It returns false when not even one element
// survived truncation.
func salvageArray(s string) (string, bool) {
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	lastComplete := -1

	for i := start + 1; i < len(s); i++ {
		c := s[i]
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				lastComplete = i
			}
		}
	}

	if lastComplete < 0 {
		// Nothing closed; an empty array is still a valid zero-show reply.
		if strings.TrimSpace(s[start+1:]) == "" {
			return "[]", true
		}
		return "", false
	}
	return s[start:lastComplete+1] + "]", true
}
