// Package resolver turns raw wikilink text into a node id by fuzzy
// suffix-path matching: the full link path must be a suffix of the
// candidate id's path.
package resolver

import (
	"path"
	"strings"
)

// Resolve matches link text against candidate node ids. A candidate is
// eligible only when every component of the link matches the candidate's
// trailing components; among eligible candidates the tie-break is fewest
// path components, then lexical order. Returns false when the link is
// unusable or nothing matches.
func Resolve(link string, candidates []string) (string, bool) {
	comps := splitLink(link)
	if len(comps) == 0 {
		return "", false
	}

	best := ""
	bestComps := 0
	for _, id := range candidates {
		idComps := strings.Split(id, "/")
		if !hasSuffix(idComps, comps) {
			continue
		}
		if best == "" ||
			len(idComps) < bestComps ||
			(len(idComps) == bestComps && id < best) {
			best = id
			bestComps = len(idComps)
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// Score counts how many trailing components of the candidate match the
// link, walking from the end and stopping at the first mismatch.
func Score(link, candidate string) int {
	comps := splitLink(link)
	idComps := strings.Split(candidate, "/")
	score := 0
	for i := 0; i < len(comps) && i < len(idComps); i++ {
		if comps[len(comps)-1-i] != idComps[len(idComps)-1-i] {
			break
		}
		score++
	}
	return score
}

func hasSuffix(idComps, linkComps []string) bool {
	if len(linkComps) > len(idComps) {
		return false
	}
	offset := len(idComps) - len(linkComps)
	for i, c := range linkComps {
		if idComps[offset+i] != c {
			return false
		}
	}
	return true
}

// splitLink normalizes link text into path components: leading ./ and ../
// segments are stripped and the extension is dropped from the final
// component. Empty, whitespace-only and dot-only links yield nil.
func splitLink(link string) []string {
	text := strings.TrimSpace(link)
	for {
		if strings.HasPrefix(text, "./") {
			text = text[2:]
		} else if strings.HasPrefix(text, "../") {
			text = text[3:]
		} else {
			break
		}
	}
	if text == "" || text == "." || text == ".." {
		return nil
	}

	parts := strings.Split(text, "/")
	comps := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || p == "." || p == ".." {
			continue
		}
		comps = append(comps, p)
	}
	if len(comps) == 0 {
		return nil
	}

	last := comps[len(comps)-1]
	if stripped := strings.TrimSuffix(last, path.Ext(last)); stripped != "" {
		comps[len(comps)-1] = stripped
	}
	return comps
}
