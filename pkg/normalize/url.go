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
	"net/url"
	"strings"
)

// urlComponents is the (host, path, query) split of a request URL. All
// three are nil when parsing fails, per spec.md §3 — the raw URL is
// kept verbatim on the entry row in that case.
type urlComponents struct {
	host, path, query string
	ok                bool
}

func splitURL(raw string) urlComponents {
	u, err := url.Parse(raw)
	if err != nil {
		return urlComponents{}
	}
	return urlComponents{
		host:  strings.ToLower(u.Hostname()),
		path:  u.Path,
		query: strings.TrimPrefix(u.RawQuery, "?"),
		ok:    true,
	}
}
