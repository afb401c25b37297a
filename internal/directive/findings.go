package directive

import (
	"regexp"
	"strings"

	"gistloop/internal/findings"
)

// reFinding matches "- [TAG] text" bullets, tolerating "*" bullets and bold
// markup around the tag.
var reFinding = regexp.MustCompile(`(?m)^[ \t]*[-*•][ \t]*\**[ \t]*\[([A-Za-z_]+)\][ \t]*\**[ \t:]*(.+?)[ \t]*$`)

// ParseFindings returns the tagged findings of a response in order. Lines
// with unknown tags are ignored. It does not depend on the marker.
func ParseFindings(response string) []findings.Finding {
	var out []findings.Finding
	for _, m := range reFinding.FindAllStringSubmatch(response, -1) {
		tag, ok := findings.ParseTag(m[1])
		if !ok {
			continue
		}
		text := strings.TrimSpace(strings.Trim(m[2], "*"))
		if text == "" {
			continue
		}
		out = append(out, findings.Finding{Tag: tag, Text: text})
	}
	return out
}
