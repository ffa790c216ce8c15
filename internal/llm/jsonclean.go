package llm

import "strings"

// CleanJSON strips markdown fences and surrounding prose from a model reply,
// keeping the outermost JSON object or array.
func CleanJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```JSON")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	objStart := strings.Index(content, "{")
	arrStart := strings.Index(content, "[")
	start, closer := objStart, "}"
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		start, closer = arrStart, "]"
	}
	if start < 0 {
		return content
	}
	end := strings.LastIndex(content, closer)
	if end <= start {
		return content
	}
	return content[start : end+1]
}
