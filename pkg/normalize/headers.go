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
	"strings"

	"harbase.dev/harbase/pkg/har"
)

// canonicalHeaders renders a HAR header list as a JSON object mapping
// lowercased header name to value, last-wins, except that a name
// repeated by the producer is preserved as a JSON array of its values
// in document order (spec.md §4.2).
func canonicalHeaders(pairs []har.NameValuePair) json.RawMessage {
	if len(pairs) == 0 {
		return nil
	}
	order := make([]string, 0, len(pairs))
	values := make(map[string][]string, len(pairs))
	for _, p := range pairs {
		name := strings.ToLower(p.Name)
		if _, seen := values[name]; !seen {
			order = append(order, name)
		}
		values[name] = append(values[name], p.Value)
	}
	obj := make(map[string]any, len(order))
	for _, name := range order {
		vs := values[name]
		if len(vs) == 1 {
			obj[name] = vs[0]
		} else {
			obj[name] = vs
		}
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil
	}
	return data
}

// canonicalCookies renders a HAR cookie/NameValuePair list as a JSON
// array of {name, value, ...} objects, preserving duplicates as the
// producer supplied them.
func canonicalCookies(pairs []har.NameValuePair) json.RawMessage {
	if len(pairs) == 0 {
		return nil
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return nil
	}
	return data
}
