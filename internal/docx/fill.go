package docx

import "strings"

// FillResult reports which placeholder keys received a value and which were
// present in the document without a matching value.
type FillResult struct {
	Applied   []string
	Unmatched []string
}

type fillAcc struct {
	applied   []string
	unmatched []string
	done      map[string]bool
}

// Fill writes values into the matching field controls of d. Keys are compared
// after NormalizeTag, case-insensitively. SIGN controls are left untouched and
// a filled control is not descended into.
func Fill(d *Document, values map[string]string) FillResult {
	norm := make(map[string]string, len(values))
	for k, v := range values {
		norm[strings.ToLower(NormalizeTag(k))] = v
	}

	acc := Fold(d, fillAcc{done: make(map[string]bool)}, func(acc fillAcc, n *Node) (fillAcc, bool) {
		if n.Kind() != KindPlaceholder {
			return acc, true
		}
		tag := n.Tag()
		if IsSignTag(tag) {
			return acc, false
		}
		key := NormalizeTag(tag)
		if key == "" {
			return acc, true
		}
		lk := strings.ToLower(key)
		v, ok := norm[lk]
		if !ok {
			if !acc.done[lk] {
				acc.done[lk] = true
				acc.unmatched = append(acc.unmatched, key)
			}
			return acc, true
		}
		n.setText(v)
		if !acc.done[lk] {
			acc.done[lk] = true
			acc.applied = append(acc.applied, key)
		}
		return acc, false
	})
	return FillResult{Applied: acc.applied, Unmatched: acc.unmatched}
}

// InjectTokens replaces the content of the SIGN controls of d, in appearance
// order, with tokens[0], tokens[1], ... and returns how many were placed.
// Surplus tokens stay unplaced; surplus controls keep their content.
func InjectTokens(d *Document, tokens []string) int {
	anchors := Fold(d, []*Node(nil), func(acc []*Node, n *Node) ([]*Node, bool) {
		if n.Kind() == KindPlaceholder && IsSignTag(n.Tag()) {
			return append(acc, n), false
		}
		return acc, true
	})
	placed := 0
	for i, n := range anchors {
		if i >= len(tokens) {
			break
		}
		n.setText(tokens[i])
		placed++
	}
	return placed
}
