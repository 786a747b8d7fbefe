/*
Copyright 2026 The Harbase Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package normalize

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
)

// GraphQLOp is one extracted GraphQL operation: its type, optional
// name, and the top-level field names selected.
type GraphQLOp struct {
	OperationType string // "query", "mutation", or "subscription"
	OperationName string
	Fields        []string
	BatchIndex    *int // set when the request body was a batch array
}

type graphqlRequest struct {
	Query         string          `json:"query"`
	OperationName string          `json:"operationName"`
	Variables     json.RawMessage `json:"variables"`
}

// opHeaderRe captures "query Name" / "mutation Name" / "subscription
// Name" at the start of a GraphQL document, ignoring variable
// definitions in parens.
var opHeaderRe = regexp.MustCompile(`(?is)^\s*(query|mutation|subscription)\b\s*([A-Za-z_][A-Za-z0-9_]*)?`)

// selectionFieldRe pulls top-level field names out of the first { }
// selection set. This is a pragmatic scanner, not a full GraphQL
// parser: it is sufficient for spec.md §4.2's "top-level field names"
// requirement and tolerates aliases ("alias: field") and arguments.
var selectionFieldRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// ExtractGraphQL parses body as one GraphQL request, or a batch array
// of them (spec.md §7 supplemental), returning nil, nil if body does
// not look like a GraphQL request at all (no top-level "query" string).
func ExtractGraphQL(body []byte) ([]GraphQLOp, error) {
	trimmed := leadingNonSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var batch []graphqlRequest
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, nil
		}
		var ops []GraphQLOp
		for i, req := range batch {
			if op, ok := extractOne(req); ok {
				idx := i
				op.BatchIndex = &idx
				ops = append(ops, op)
			}
		}
		return ops, nil
	}

	var req graphqlRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, nil
	}
	op, ok := extractOne(req)
	if !ok {
		return nil, nil
	}
	return []GraphQLOp{op}, nil
}

func extractOne(req graphqlRequest) (GraphQLOp, bool) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return GraphQLOp{}, false
	}
	opType := "query"
	opName := req.OperationName
	if m := opHeaderRe.FindStringSubmatch(query); m != nil {
		opType = strings.ToLower(m[1])
		if opName == "" {
			opName = m[2]
		}
	}
	return GraphQLOp{
		OperationType: opType,
		OperationName: opName,
		Fields:        topLevelFields(query),
	}, true
}

// topLevelFields returns the field names selected at depth 1 of the
// first brace-delimited selection set in query.
func topLevelFields(query string) []string {
	start := strings.IndexByte(query, '{')
	if start < 0 {
		return nil
	}
	depth, parens := 0, 0
	var body strings.Builder
	for i := start; i < len(query); i++ {
		// argument lists ("field(x: 1)") are dropped whole, braces included
		switch {
		case query[i] == '(':
			parens++
			continue
		case query[i] == ')' && parens > 0:
			parens--
			continue
		case parens > 0:
			continue
		}
		switch query[i] {
		case '{':
			depth++
			if depth == 1 {
				continue
			}
		case '}':
			depth--
			if depth == 0 {
				i = len(query)
				continue
			}
		}
		if depth == 1 {
			body.WriteByte(query[i])
		} else if depth > 1 {
			// skip nested selection sets entirely; only top-level names matter
			continue
		}
	}

	var fields []string
	seen := map[string]bool{}
	for _, chunk := range strings.FieldsFunc(body.String(), func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	}) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" || strings.HasPrefix(chunk, "#") {
			continue
		}
		// strip alias ("alias: field"); arguments were dropped above
		if idx := strings.IndexByte(chunk, ':'); idx >= 0 {
			chunk = chunk[idx+1:]
		}
		for _, m := range selectionFieldRe.FindAllString(chunk, -1) {
			if seen[m] {
				continue
			}
			seen[m] = true
			fields = append(fields, m)
		}
	}
	return fields
}

func leadingNonSpace(b []byte) []byte {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\n' || b[i] == '\r') {
		i++
	}
	return b[i:]
}
