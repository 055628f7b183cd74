package docx

import "strings"

// Field is a data placeholder found by Scan.
type Field struct {
	Key   string
	Label string
	Order int
}

// ScanResult holds the placeholders of a document split into data fields and
// signature anchors. Anchors are counted in appearance order.
type ScanResult struct {
	Fields      []Field
	AnchorCount int
}

type scanAcc struct {
	fields  []Field
	seen    map[string]bool
	anchors int
}

// Scan classifies every content control of d. SIGN controls become anchors and
// their interior is not visited; other non-empty tags become fields, keyed
// case-insensitively with the first occurrence winning.
func Scan(d *Document) ScanResult {
	acc := Fold(d, scanAcc{seen: make(map[string]bool)}, func(acc scanAcc, n *Node) (scanAcc, bool) {
		if n.Kind() != KindPlaceholder {
			return acc, true
		}
		tag := n.Tag()
		if IsSignTag(tag) {
			acc.anchors++
			return acc, false
		}
		key := NormalizeTag(tag)
		if key == "" {
			return acc, true
		}
		lk := strings.ToLower(key)
		if !acc.seen[lk] {
			acc.seen[lk] = true
			label := strings.TrimSpace(n.Alias())
			if label == "" {
				label = key
			}
			acc.fields = append(acc.fields, Field{Key: key, Label: label, Order: len(acc.fields) + 1})
		}
		return acc, true
	})
	return ScanResult{Fields: acc.fields, AnchorCount: acc.anchors}
}
