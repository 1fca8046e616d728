// SPDX-License-Identifier: MIT

package celonis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/ocel-tools/ocelbridge/internal/log"
	"github.com/ocel-tools/ocelbridge/internal/metrics"
	"github.com/ocel-tools/ocelbridge/internal/ocel"
)

// attributeTypes maps OCEL attribute types to platform column types. Unknown
// OCEL types fall back to the string column type with a warning.
var attributeTypes = map[string]string{
	"string":   "CT_UTF8_STRING",
	"integer":  "CT_LONG",
	"datetime": "CT_INSTANT",
	"float":    "CT_DOUBLE",
	"boolean":  "CT_BOOLEAN",
}

const objectTypeColor = "#4608B3"

// field is one column of a type schema as the platform expects it.
type field struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	DataType  string `json:"dataType"`
}

type typePayload struct {
	Name          string     `json:"name"`
	Tags          []string   `json:"tags"`
	Description   string     `json:"description"`
	Fields        []field    `json:"fields"`
	Relationships []struct{} `json:"relationships"`
	Categories    []category `json:"categories"`
	Color         string     `json:"color,omitempty"`
}

type category struct {
	Metadata categoryMetadata `json:"metadata"`
	Values   []categoryValue  `json:"values"`
}

type categoryMetadata struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

type categoryValue struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Namespace   string `json:"namespace"`
	Description string `json:"description"`
}

// defaultCategories tags every created type into the curriculum process
// category the workspace expects.
var defaultCategories = []category{{
	Metadata: categoryMetadata{Name: "Processes", Namespace: "celonis"},
	Values: []categoryValue{{
		Name:        "curriculum",
		DisplayName: "curriculum",
		Namespace:   "custom",
		Description: "",
	}},
}}

type platformError struct {
	Errors []struct {
		ErrorCode string `json:"errorCode"`
	} `json:"errors"`
}

// CreateObjectTypes submits one schema per declaration to the workspace.
// A type the workspace already has is skipped with a warning; any other
// refusal aborts the run.
func (c *Client) CreateObjectTypes(ctx context.Context, decls []ocel.TypeDecl) error {
	return c.createTypes(ctx, decls, "objects", false)
}

// CreateEventTypes is CreateObjectTypes for event schemas. Event types
// additionally always carry a Time column.
func (c *Client) CreateEventTypes(ctx context.Context, decls []ocel.TypeDecl) error {
	return c.createTypes(ctx, decls, "events", true)
}

func (c *Client) createTypes(ctx context.Context, decls []ocel.TypeDecl, kind string, requireTime bool) error {
	endpoint := fmt.Sprintf("%s/bl/api/v1/types/%s?environment=%s", c.teamBase, kind, c.env)
	singular := strings.TrimSuffix(kind, "s")

	for _, decl := range decls {
		payload := c.buildPayload(decl, kind, requireTime)

		start := time.Now()
		err := c.postType(ctx, endpoint, payload)
		metrics.PlatformRequest("create_"+kind, start, err)

		switch {
		case err == nil:
			metrics.TypeCreated(kind)
			c.logInfo(fmt.Sprintf("Created %s type '%s'", singular, payload.Name))
		case isAlreadyExists(err):
			c.logWarning(fmt.Sprintf("'%s' already exists; skipping", payload.Name))
		default:
			return fmt.Errorf("create %s type %q: %w", singular, payload.Name, err)
		}
	}
	return nil
}

// buildPayload shapes one declaration into the platform schema: mapped
// column types, a guaranteed ID column, a Time column on event types, the
// standard color on object types, and sanitized names throughout.
func (c *Client) buildPayload(decl ocel.TypeDecl, kind string, requireTime bool) typePayload {
	name := c.sanitizeName(decl.Name)

	fields := make([]field, 0, len(decl.Attributes)+2)
	for _, attr := range decl.Attributes {
		dt, ok := attributeTypes[attr.Type]
		if !ok {
			c.logWarning(fmt.Sprintf("Attribute '%s' has unknown type '%s'; using string", attr.Name, attr.Type))
			dt = "CT_UTF8_STRING"
		}
		fields = append(fields, field{Name: attr.Name, Namespace: "custom", DataType: dt})
	}
	if !hasField(fields, "ID") {
		fields = append(fields, field{Name: "ID", Namespace: "custom", DataType: "CT_UTF8_STRING"})
	}
	if requireTime && !hasField(fields, "Time") {
		fields = append(fields, field{Name: "Time", Namespace: "custom", DataType: "CT_INSTANT"})
	}
	for i := range fields {
		fields[i].Name = c.sanitizeFieldName(fields[i].Name)
	}

	p := typePayload{
		Name:          name,
		Tags:          []string{},
		Description:   "",
		Fields:        fields,
		Relationships: []struct{}{},
		Categories:    defaultCategories,
	}
	if kind == "objects" {
		p.Color = objectTypeColor
	}
	return p
}

func hasField(fields []field, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// sanitizeName forces a leading letter and strips everything but letters and
// digits, warning on every mutation so the session log shows what changed.
func (c *Client) sanitizeName(raw string) string {
	var b strings.Builder
	runes := []rune(raw)
	if len(runes) == 0 || !unicode.IsLetter(runes[0]) {
		b.WriteRune('A')
		c.logWarning(fmt.Sprintf("Name '%s' must start with a letter; prefixing 'A'", raw))
	}
	for _, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			c.logWarning(fmt.Sprintf("Stripping invalid '%c' from '%s'", r, raw))
		}
	}
	return b.String()
}

// sanitizeFieldName applies the same rules to column names.
func (c *Client) sanitizeFieldName(raw string) string {
	name := raw
	runes := []rune(name)
	if len(runes) == 0 || !unicode.IsLetter(runes[0]) {
		name = "A" + name
		c.logWarning(fmt.Sprintf("Field name invalid start; became '%s'", name))
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned != name {
		c.logWarning(fmt.Sprintf("Field '%s' cleaned to '%s'", name, cleaned))
	}
	return cleaned
}

type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("platform returned status %d: %s", e.status, e.body)
}

func isAlreadyExists(err error) bool {
	ae, ok := err.(*apiError)
	if !ok || ae.status != http.StatusBadRequest {
		return false
	}
	var pe platformError
	if json.Unmarshal([]byte(ae.body), &pe) != nil {
		return false
	}
	return len(pe.Errors) > 0 && pe.Errors[0].ErrorCode == "ALREADY_EXISTS"
}

func (c *Client) postType(ctx context.Context, endpoint string, payload typePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode type payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.xsrfHeader != "" {
		req.Header.Set("X-Xsrf-Token", c.xsrfHeader)
	}

	res, err := c.redir.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	resBody, err := readBody(res)
	if err != nil {
		return err
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.logger.Warn().
			Int("status", res.StatusCode).
			Str(log.FieldTypeName, payload.Name).
			Msg("type creation refused")
		return &apiError{status: res.StatusCode, body: resBody}
	}
	return nil
}

// readBody drains a response with a sanity bound; platform responses of
// interest are small.
func readBody(res *http.Response) (string, error) {
	b, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	return string(b), nil
}
