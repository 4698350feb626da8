// Package codec converts between the on-disk markdown note format and the
// in-memory node value. Decoding never fails: malformed frontmatter is
// recorded as a parse-error marker on the document and the body is kept.
package codec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"treeline/internal/engine/graph"
)

// Document is the decoded form of one note file, before wikilinks are
// resolved against the graph.
type Document struct {
	Title      string
	Body       string
	Links      []graph.Link
	Color      string
	Position   *graph.Position
	IsContext  bool
	Extra      []graph.Field
	ParseError string
}

var (
	wikiLinkRE   = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)
	listPrefixRE = regexp.MustCompile(`^\s*-\s*([^\[\]]*?)\s*\[\[`)
	headingRE    = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*$`)
	// A bare hex color would otherwise parse as an empty value plus a YAML
	// comment.
	bareHexColorRE = regexp.MustCompile(`(?m)^(color:[ \t]*)(#[0-9A-Fa-f]{3,8})[ \t]*$`)
)

// Decode parses frontmatter, body and wikilinks.
func Decode(content []byte) Document {
	var doc Document

	front, body, hasFront := splitFrontmatter(string(content))
	if hasFront {
		decodeFrontmatter(front, &doc)
	} else {
		body = string(content)
	}

	doc.Body, doc.Links = extractLinks(body)

	if doc.Title == "" {
		for _, line := range strings.Split(doc.Body, "\n") {
			if m := headingRE.FindStringSubmatch(line); m != nil {
				doc.Title = m[1]
				break
			}
		}
	}

	return doc
}

func splitFrontmatter(content string) (front, body string, ok bool) {
	if !strings.HasPrefix(content, "---\n") && content != "---" {
		return "", content, false
	}
	rest := strings.TrimPrefix(content, "---\n")
	// An empty block has no newline before its closing fence.
	if rest == "---" {
		return "", "", true
	}
	if after, found := strings.CutPrefix(rest, "---\n"); found {
		return "", after, true
	}
	if idx := strings.Index(rest, "\n---\n"); idx >= 0 {
		return rest[:idx], rest[idx+len("\n---\n"):], true
	}
	if strings.HasSuffix(rest, "\n---") {
		return strings.TrimSuffix(rest, "\n---"), "", true
	}
	return "", content, false
}

func decodeFrontmatter(front string, doc *Document) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(bareHexColorRE.ReplaceAllString(front, `$1"$2"`)), &root); err != nil {
		doc.ParseError = fmt.Sprintf("frontmatter: %v", err)
		return
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		if strings.TrimSpace(front) != "" {
			doc.ParseError = "frontmatter: not a mapping"
		}
		return
	}

	mapping := root.Content[0]
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i].Value
		val := mapping.Content[i+1]
		switch key {
		case "color":
			doc.Color = val.Value
		case "position":
			doc.Position = decodePosition(val)
		case "context":
			doc.IsContext = val.Value == "true"
		case "title":
			// Frontmatter titles win over the first heading, and round-trip
			// through the passthrough fields.
			doc.Title = val.Value
			doc.Extra = append(doc.Extra, graph.Field{Key: key, Value: val.Value})
		default:
			doc.Extra = append(doc.Extra, graph.Field{Key: key, Value: renderValue(val)})
		}
	}
}

func decodePosition(val *yaml.Node) *graph.Position {
	if val.Kind != yaml.MappingNode {
		return nil
	}
	var pos graph.Position
	seen := 0
	for i := 0; i+1 < len(val.Content); i += 2 {
		f, err := strconv.ParseFloat(val.Content[i+1].Value, 64)
		if err != nil {
			continue
		}
		switch val.Content[i].Value {
		case "x":
			pos.X = f
			seen++
		case "y":
			pos.Y = f
			seen++
		}
	}
	if seen == 0 {
		return nil
	}
	return &pos
}

func renderValue(val *yaml.Node) string {
	if val.Kind == yaml.ScalarNode {
		return val.Value
	}
	out, err := yaml.Marshal(val)
	if err != nil {
		return val.Value
	}
	return strings.TrimRight(string(out), "\n")
}

// extractLinks pulls every wikilink out of the body. Lines that consist
// only of an optional "- label" list marker plus links are the trailing
// link list; they are removed from the body. Inline links elsewhere are
// extracted but their line is kept.
func extractLinks(body string) (string, []graph.Link) {
	var links []graph.Link
	seen := make(map[graph.Link]bool)
	kept := make([]string, 0)

	for _, line := range strings.Split(body, "\n") {
		matches := wikiLinkRE.FindAllStringSubmatch(line, -1)
		if len(matches) == 0 {
			kept = append(kept, line)
			continue
		}

		label := ""
		if m := listPrefixRE.FindStringSubmatch(line); m != nil {
			label = strings.TrimSpace(m[1])
		}
		for _, m := range matches {
			link := graph.Link{Text: strings.TrimSpace(m[1]), Label: label}
			if link.Text == "" || seen[link] {
				continue
			}
			seen[link] = true
			links = append(links, link)
		}

		residual := wikiLinkRE.ReplaceAllString(line, "")
		residual = strings.TrimSpace(residual)
		residual = strings.TrimSpace(strings.TrimPrefix(residual, "-"))
		if residual != label {
			kept = append(kept, line)
		}
	}

	return strings.TrimRight(strings.Join(kept, "\n"), "\n"), links
}

// Encode serializes a node back to the on-disk format: frontmatter (only
// when at least one field is set), body, then one link line per edge.
// Labels are re-emitted so they survive a round trip; unresolved links are
// written back too so they are not lost on save.
func Encode(n *graph.Node) []byte {
	var b strings.Builder

	if n.Color != "" || n.Position != nil || n.IsContext || len(n.Extra) > 0 {
		b.WriteString("---\n")
		if n.Color != "" {
			// Hex colors go out unquoted; Decode re-quotes them before the
			// YAML pass.
			b.WriteString("color: " + n.Color + "\n")
		}
		if n.Position != nil {
			b.WriteString("position:\n")
			b.WriteString("  x: " + formatFloat(n.Position.X) + "\n")
			b.WriteString("  y: " + formatFloat(n.Position.Y) + "\n")
		}
		if n.IsContext {
			b.WriteString("context: true\n")
		}
		for _, f := range n.Extra {
			writeField(&b, f)
		}
		b.WriteString("---\n")
	}

	if n.Body != "" {
		b.WriteString(n.Body)
		b.WriteString("\n")
	}

	for _, e := range n.Edges {
		// Prefer the raw wikilink text so saving never rewrites how the
		// user spelled the link; engine-created edges carry only the id.
		target := e.Text
		if target == "" {
			target = e.TargetID
		}
		writeLinkLine(&b, target, e.Label)
	}
	for _, l := range n.Unresolved {
		writeLinkLine(&b, l.Text, l.Label)
	}

	return []byte(b.String())
}

func writeLinkLine(b *strings.Builder, target, label string) {
	if label != "" {
		b.WriteString("- " + label + " [[" + target + "]]\n")
	} else {
		b.WriteString("[[" + target + "]]\n")
	}
}

func writeField(b *strings.Builder, f graph.Field) {
	if strings.Contains(f.Value, "\n") {
		b.WriteString(f.Key + ":\n")
		for _, line := range strings.Split(f.Value, "\n") {
			b.WriteString("  " + line + "\n")
		}
		return
	}
	b.WriteString(f.Key + ": " + quoteIfNeeded(f.Value) + "\n")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func quoteIfNeeded(v string) string {
	if v == "" {
		return `""`
	}
	if v != strings.TrimSpace(v) || strings.ContainsAny(v, ":#{}[],&*!|>'\"%@`") {
		return strconv.Quote(v)
	}
	switch v {
	case "null", "~", "true", "false", "yes", "no":
		return strconv.Quote(v)
	}
	return v
}
