package executor

import "regexp"

// referenceRE matches $NAME where NAME has the shape of a secret name.
// Lowercase and mixed-case tokens ($home, $Path) are ordinary shell
// variables and never match.
var referenceRE = regexp.MustCompile(`\$([A-Z][A-Z0-9_]*)\b`)

// ParseSecretReferences returns the distinct secret names referenced in
// command, in order of first appearance.
func ParseSecretReferences(command string) []string {
	matches := referenceRE.FindAllStringSubmatch(command, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
