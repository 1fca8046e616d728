// SPDX-License-Identifier: MIT

package ocel

// Derivation is the deduplicated set of type definitions to create for a
// parsed log.
type Derivation struct {
	ObjectTypes []TypeDecl `json:"objectTypes"`
	EventTypes  []TypeDecl `json:"eventTypes"`
}

// Derive reduces the declarations of a document to the creation set:
// first-occurrence order is preserved, later duplicates are dropped
// silently, including their attributes.
func Derive(doc *Document) Derivation {
	return Derivation{
		ObjectTypes: dedupe(doc.ObjectTypes),
		EventTypes:  dedupe(doc.EventTypes),
	}
}

func dedupe(decls []TypeDecl) []TypeDecl {
	seen := make(map[string]struct{}, len(decls))
	out := make([]TypeDecl, 0, len(decls))
	for _, d := range decls {
		if _, dup := seen[d.Name]; dup {
			continue
		}
		seen[d.Name] = struct{}{}
		out = append(out, d)
	}
	return out
}
