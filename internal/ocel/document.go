// SPDX-License-Identifier: MIT

// Package ocel parses OCEL 2.0 JSON event logs and derives the type schemas
// they declare.
package ocel

import (
	"encoding/json"
	"fmt"
)

// AttributeDecl is a single attribute declaration on a type.
type AttributeDecl struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypeDecl is an object or event type declaration as written in the log.
type TypeDecl struct {
	Name       string          `json:"name"`
	Attributes []AttributeDecl `json:"attributes"`
}

// Document is the subset of an OCEL 2.0 log relevant to type derivation.
// Object and event instances and their relations are intentionally not
// modelled; only type schemas are created downstream.
type Document struct {
	ObjectTypes []TypeDecl `json:"objectTypes"`
	EventTypes  []TypeDecl `json:"eventTypes"`
}

// Parse decodes raw log bytes into a Document. Either type list may be
// absent; a log declaring no types at all is still valid OCEL.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse OCEL document: %w", err)
	}
	for i, t := range doc.ObjectTypes {
		if t.Name == "" {
			return nil, fmt.Errorf("object type %d has no name", i)
		}
	}
	for i, t := range doc.EventTypes {
		if t.Name == "" {
			return nil, fmt.Errorf("event type %d has no name", i)
		}
	}
	return &doc, nil
}
