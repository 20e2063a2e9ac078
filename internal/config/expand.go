package config

import "strings"

// ExpandMake substitutes $(projectroot) and $(args) into the make
// command template. If the template doesn't mention $(args), the
// caller's args are appended, space-joined, so the template still
// receives them without every project having to remember the token.
func ExpandMake(template, projectRoot string, args []string) string {
	joined := strings.Join(args, " ")

	expanded := strings.ReplaceAll(template, "$(projectroot)", projectRoot)
	if strings.Contains(expanded, "$(args)") {
		return strings.ReplaceAll(expanded, "$(args)", joined)
	}
	if joined == "" {
		return expanded
	}
	return expanded + " " + joined
}
