package routing

import (
	"strconv"
	"strings"
)

// parsedRouting is the result variant for LLM routing responses:
// either a usable decision or a fallback with the reason parsing gave up.
type parsedRouting struct {
	Project      string
	Confidence   float64
	Reasoning    string
	Alternatives []string

	Fallback       bool
	FallbackReason string
}

// parseRoutingResponse extracts the four labeled lines the routing
// prompt asks for. Unknown labels are ignored. Missing or malformed
// required fields produce a fallback variant, never an error.
func parseRoutingResponse(content string) parsedRouting {
	var result parsedRouting
	haveProject, haveConfidence := false, false

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "PROJECT:"):
			result.Project = strings.TrimSpace(strings.TrimPrefix(line, "PROJECT:"))
			haveProject = result.Project != ""
		case strings.HasPrefix(line, "CONFIDENCE:"):
			raw := strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE:"))
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fallbackRouting("unparseable confidence " + strconv.Quote(raw))
			}
			result.Confidence = ClampConfidence(value)
			haveConfidence = true
		case strings.HasPrefix(line, "REASONING:"):
			result.Reasoning = strings.TrimSpace(strings.TrimPrefix(line, "REASONING:"))
		case strings.HasPrefix(line, "ALTERNATIVES:"):
			raw := strings.TrimSpace(strings.TrimPrefix(line, "ALTERNATIVES:"))
			if raw != "" && !strings.EqualFold(raw, "none") {
				for _, alt := range strings.Split(raw, ",") {
					if alt = strings.TrimSpace(alt); alt != "" {
						result.Alternatives = append(result.Alternatives, alt)
					}
				}
			}
		}
	}

	if !haveProject {
		return fallbackRouting("response missing PROJECT line")
	}
	if !haveConfidence {
		return fallbackRouting("response missing CONFIDENCE line")
	}
	return result
}

func fallbackRouting(reason string) parsedRouting {
	return parsedRouting{Fallback: true, FallbackReason: reason}
}
