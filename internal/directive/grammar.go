// Package directive parses the information requests and key findings a
// model embeds in its free-form answers.
//
// Grammar, matched case-insensitively:
//
//	marker    = "**Next Steps**" | a line holding only "Next Steps" with optional markup
//	search    = "[I need to search for keywords:" { "<keyword>" text "</keyword>" } "]"
//	files     = ( "[I need content of files:" | "[I need access files:" ) { "<file>" text "</file>" } "]"
//	packages  = "[I need info about packages:" { "<package>" text "</package>" } "]"
//	finding   = ( "-" | "*" ) "[" TAG "]" text
//
// Parsing never fails. Anything that does not match is ignored, a missing
// "]" extends a directive to the end of its line (file requests continue
// onto later lines until a "]" or another directive), and a missing closing tag ends the token at
// the next "<", ",", "]" or end of line.
package directive

import (
	"regexp"
	"strings"
)

// Kind identifies a directive shape.
type Kind int

const (
	KindSearch Kind = iota
	KindFiles
	KindPackages
)

func (k Kind) tag() string {
	switch k {
	case KindSearch:
		return "keyword"
	case KindFiles:
		return "file"
	default:
		return "package"
	}
}

var (
	reMarkerInline = regexp.MustCompile(`(?i)\*\*\s*next\s+steps\s*:?\s*\*\*`)
	reMarkerLine   = regexp.MustCompile(`(?im)^[ \t#>*_]*next\s+steps[ \t*_]*:?[ \t*_]*$`)

	reAnyTag = regexp.MustCompile(`</?[A-Za-z_]+>`)
	reOpener = regexp.MustCompile(`(?i)\[\s*I\s+need\s+(to\s+search(?:\s+for\s+keywords?)?|content\s+of\s+files|access\s+files|info\s+about\s+packages)\s*:*`)
)

func kindOf(opener string) Kind {
	o := strings.ToLower(opener)
	switch {
	case strings.Contains(o, "search"):
		return KindSearch
	case strings.Contains(o, "packages"):
		return KindPackages
	default:
		return KindFiles
	}
}

// Requests are the deduplicated tokens of every directive in a response,
// grouped by kind in first-seen order.
type Requests struct {
	Keywords []string
	Files    []string
	Packages []string
}

// Empty reports whether no directive was recognized.
func (r Requests) Empty() bool {
	return len(r.Keywords) == 0 && len(r.Files) == 0 && len(r.Packages) == 0
}

// Result splits a response into the answer and what it asks for next.
type Result struct {
	// Clean is the response before the last marker, or the whole response
	// when there is no marker.
	Clean     string
	HasMarker bool
	Requests  Requests
}

// Extract locates the last marker and parses the directives after it.
func Extract(response string) Result {
	clean, section, ok := SplitNextSteps(response)
	if !ok {
		return Result{Clean: response}
	}
	return Result{Clean: clean, HasMarker: true, Requests: ParseRequests(section)}
}

// SplitNextSteps splits at the last marker occurrence.
func SplitNextSteps(response string) (clean, section string, ok bool) {
	start, end := -1, -1
	for _, re := range []*regexp.Regexp{reMarkerInline, reMarkerLine} {
		locs := re.FindAllStringIndex(response, -1)
		if len(locs) == 0 {
			continue
		}
		last := locs[len(locs)-1]
		if last[0] > start {
			start, end = last[0], last[1]
		}
	}
	if start < 0 {
		return response, "", false
	}
	return strings.TrimRight(response[:start], " \t\r\n"), response[end:], true
}

// ParseRequests recognizes directives anywhere in section.
func ParseRequests(section string) Requests {
	var r Requests
	seen := map[Kind]map[string]struct{}{
		KindSearch: {}, KindFiles: {}, KindPackages: {},
	}
	add := func(k Kind, tok string) {
		key := tok
		if k == KindSearch {
			key = strings.ToLower(tok)
		}
		if _, dup := seen[k][key]; dup {
			return
		}
		seen[k][key] = struct{}{}
		switch k {
		case KindSearch:
			r.Keywords = append(r.Keywords, tok)
		case KindFiles:
			r.Files = append(r.Files, tok)
		case KindPackages:
			r.Packages = append(r.Packages, tok)
		}
	}

	lines := strings.Split(section, "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		locs := reOpener.FindAllStringSubmatchIndex(line, -1)
		for j, loc := range locs {
			kind := kindOf(line[loc[2]:loc[3]])
			segEnd := len(line)
			if j+1 < len(locs) {
				segEnd = locs[j+1][0]
			}
			body := line[loc[1]:segEnd]
			if cut := strings.Index(body, "]"); cut >= 0 {
				body = body[:cut]
			} else if kind == KindFiles && j == len(locs)-1 {
				// File lists may wrap onto following lines until "]" or
				// the next directive, which is then parsed on its own.
				for i+1 < len(lines) && !reOpener.MatchString(lines[i+1]) {
					i++
					next := lines[i]
					if cut := strings.Index(next, "]"); cut >= 0 {
						body += "\n" + next[:cut]
						break
					}
					body += "\n" + next
				}
			}
			for _, tok := range tokens(body, kind.tag()) {
				add(kind, tok)
			}
		}
	}
	return r
}

// tokens returns the <tag>...</tag> values of body. Without any tag the
// body is read as a comma-separated list.
func tokens(body, tag string) []string {
	openTag, closeTag := "<"+tag+">", "</"+tag+">"
	lower := strings.ToLower(body)
	if len(lower) != len(body) {
		lower = body
	}
	var out []string
	if !strings.Contains(lower, openTag) {
		body = reAnyTag.ReplaceAllString(body, "")
		for _, part := range strings.FieldsFunc(body, func(r rune) bool { return r == ',' || r == '\n' }) {
			if tok := cleanToken(part); tok != "" {
				out = append(out, tok)
			}
		}
		return out
	}
	for pos := 0; ; {
		idx := strings.Index(lower[pos:], openTag)
		if idx < 0 {
			break
		}
		start := pos + idx + len(openTag)
		end := strings.Index(lower[start:], closeTag)
		reopen := strings.Index(lower[start:], openTag)
		next := start + end + len(closeTag)
		if end < 0 || (reopen >= 0 && reopen < end) {
			end = strings.IndexAny(body[start:], "<,]\n")
			if end < 0 {
				end = len(body) - start
			}
			next = start + end
		}
		if tok := cleanToken(body[start : start+end]); tok != "" {
			out = append(out, tok)
		}
		pos = next
	}
	return out
}

func cleanToken(s string) string {
	return strings.Trim(strings.TrimSpace(s), "`'\"*")
}
