package scheduler

import "strings"

// ParseWaves parses a priority-wave expression: waves separated by ';',
// connector names within a wave by ','. Empty names are dropped.
func ParseWaves(expr string) [][]string {
	var waves [][]string
	for _, group := range strings.Split(expr, ";") {
		var wave []string
		for _, name := range strings.Split(group, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				wave = append(wave, name)
			}
		}
		if len(wave) > 0 {
			waves = append(waves, wave)
		}
	}
	return waves
}

// OrderByWaves orders the due set: names in earlier waves first, in listed
// order, then names in no wave in their original due-set order.
func OrderByWaves(due []string, waves [][]string) []string {
	dueSet := make(map[string]bool, len(due))
	for _, name := range due {
		dueSet[name] = true
	}

	ordered := make([]string, 0, len(due))
	placed := make(map[string]bool, len(due))
	for _, wave := range waves {
		for _, name := range wave {
			if dueSet[name] && !placed[name] {
				ordered = append(ordered, name)
				placed[name] = true
			}
		}
	}
	for _, name := range due {
		if !placed[name] {
			ordered = append(ordered, name)
			placed[name] = true
		}
	}
	return ordered
}
