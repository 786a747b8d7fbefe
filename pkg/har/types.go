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

// Package har defines the HAR 1.2 (with HAR 1.3 / vendor extension)
// document shape and a streaming reader over it. Unknown keys at every
// nesting level are preserved verbatim in an Extensions bag instead of
// being dropped, so a round trip through export never loses vendor
// fields such as _resourceType or _priority.
package har

import "encoding/json"

// Creator describes the log.creator or log.browser object.
type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Comment string `json:"comment,omitempty"`
}

// LogHeader holds everything in the HAR log object except pages and
// entries, which the Reader yields separately so the whole document is
// never resident in memory at once.
type LogHeader struct {
	Version    string                     `json:"version"`
	Creator    Creator                    `json:"creator"`
	Browser    *Creator                   `json:"browser,omitempty"`
	Comment    string                     `json:"comment,omitempty"`
	Extensions map[string]json.RawMessage `json:"-"`
}

// Page corresponds to one element of log.pages.
type Page struct {
	StartedDateTime string                     `json:"startedDateTime"`
	ID              string                     `json:"id"`
	Title           string                     `json:"title"`
	PageTimings     PageTimings                `json:"pageTimings"`
	Comment         string                     `json:"comment,omitempty"`
	Extensions      map[string]json.RawMessage `json:"-"`
}

// PageTimings corresponds to page.pageTimings.
type PageTimings struct {
	OnContentLoad *float64                   `json:"onContentLoad,omitempty"`
	OnLoad        *float64                   `json:"onLoad,omitempty"`
	Comment       string                     `json:"comment,omitempty"`
	Extensions    map[string]json.RawMessage `json:"-"`
}

// NameValuePair models header, cookie, and query-string entries.
type NameValuePair struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Path    string `json:"path,omitempty"`
	Domain  string `json:"domain,omitempty"`
	Expires string `json:"expires,omitempty"`
	HTTPOnly *bool  `json:"httpOnly,omitempty"`
	Secure   *bool  `json:"secure,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// PostData corresponds to request.postData.
type PostData struct {
	MimeType   string                     `json:"mimeType"`
	Params     []NameValuePair            `json:"params,omitempty"`
	Text       string                     `json:"text,omitempty"`
	Comment    string                     `json:"comment,omitempty"`
	Extensions map[string]json.RawMessage `json:"-"`
}

// Request corresponds to entry.request.
type Request struct {
	Method      string                     `json:"method"`
	URL         string                     `json:"url"`
	HTTPVersion string                     `json:"httpVersion"`
	Cookies     []NameValuePair            `json:"cookies"`
	Headers     []NameValuePair            `json:"headers"`
	QueryString []NameValuePair            `json:"queryString"`
	PostData    *PostData                  `json:"postData,omitempty"`
	HeadersSize int64                      `json:"headersSize"`
	BodySize    int64                      `json:"bodySize"`
	Comment     string                     `json:"comment,omitempty"`
	Extensions  map[string]json.RawMessage `json:"-"`
}

// Content corresponds to response.content.
type Content struct {
	Size        int64                      `json:"size"`
	Compression int64                      `json:"compression,omitempty"`
	MimeType    string                     `json:"mimeType"`
	Text        string                     `json:"text,omitempty"`
	Encoding    string                     `json:"encoding,omitempty"`
	Comment     string                     `json:"comment,omitempty"`
	Extensions  map[string]json.RawMessage `json:"-"`
}

// Response corresponds to entry.response.
type Response struct {
	Status      int                        `json:"status"`
	StatusText  string                     `json:"statusText"`
	HTTPVersion string                     `json:"httpVersion"`
	Cookies     []NameValuePair            `json:"cookies"`
	Headers     []NameValuePair            `json:"headers"`
	Content     Content                    `json:"content"`
	RedirectURL string                     `json:"redirectURL"`
	HeadersSize int64                      `json:"headersSize"`
	BodySize    int64                      `json:"bodySize"`
	Comment     string                     `json:"comment,omitempty"`
	Extensions  map[string]json.RawMessage `json:"-"`
}

// Timings corresponds to entry.timings.
type Timings struct {
	Blocked    float64                    `json:"blocked,omitempty"`
	DNS        float64                    `json:"dns,omitempty"`
	Connect    float64                    `json:"connect,omitempty"`
	Send       float64                    `json:"send"`
	Wait       float64                    `json:"wait"`
	Receive    float64                    `json:"receive"`
	SSL        float64                    `json:"ssl,omitempty"`
	Comment    string                     `json:"comment,omitempty"`
	Extensions map[string]json.RawMessage `json:"-"`
}

// Entry corresponds to one element of log.entries.
type Entry struct {
	PageRef         string                     `json:"pageref,omitempty"`
	StartedDateTime string                     `json:"startedDateTime"`
	Time            float64                    `json:"time"`
	Request         Request                    `json:"request"`
	Response        Response                   `json:"response"`
	Cache           json.RawMessage            `json:"cache,omitempty"`
	Timings         Timings                    `json:"timings"`
	ServerIPAddress string                     `json:"serverIPAddress,omitempty"`
	Connection      string                     `json:"connection,omitempty"`
	Comment         string                     `json:"comment,omitempty"`
	Extensions      map[string]json.RawMessage `json:"-"`
}

// knownKeys is shared by every UnmarshalJSON below: decode twice, once
// into the typed shadow struct and once into a raw map, then subtract
// the known keys so Extensions holds exactly the unrecognized ones
// (including underscore-prefixed vendor fields like _resourceType).
func splitExtensions(data []byte, known map[string]bool) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for k := range raw {
		if known[k] {
			delete(raw, k)
		}
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}

func (l *LogHeader) UnmarshalJSON(data []byte) error {
	type shadow LogHeader
	var s shadow
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = LogHeader(s)
	ext, err := splitExtensions(data, map[string]bool{"version": true, "creator": true, "browser": true, "comment": true, "pages": true, "entries": true})
	if err != nil {
		return err
	}
	l.Extensions = ext
	return nil
}

func (p *Page) UnmarshalJSON(data []byte) error {
	type shadow Page
	var s shadow
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = Page(s)
	ext, err := splitExtensions(data, map[string]bool{"startedDateTime": true, "id": true, "title": true, "pageTimings": true, "comment": true})
	if err != nil {
		return err
	}
	p.Extensions = ext
	return nil
}

func (pt *PageTimings) UnmarshalJSON(data []byte) error {
	type shadow PageTimings
	var s shadow
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*pt = PageTimings(s)
	ext, err := splitExtensions(data, map[string]bool{"onContentLoad": true, "onLoad": true, "comment": true})
	if err != nil {
		return err
	}
	pt.Extensions = ext
	return nil
}

func (pd *PostData) UnmarshalJSON(data []byte) error {
	type shadow PostData
	var s shadow
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*pd = PostData(s)
	ext, err := splitExtensions(data, map[string]bool{"mimeType": true, "params": true, "text": true, "comment": true})
	if err != nil {
		return err
	}
	pd.Extensions = ext
	return nil
}

func (r *Request) UnmarshalJSON(data []byte) error {
	type shadow Request
	var s shadow
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = Request(s)
	ext, err := splitExtensions(data, map[string]bool{
		"method": true, "url": true, "httpVersion": true, "cookies": true,
		"headers": true, "queryString": true, "postData": true,
		"headersSize": true, "bodySize": true, "comment": true,
	})
	if err != nil {
		return err
	}
	r.Extensions = ext
	return nil
}

func (c *Content) UnmarshalJSON(data []byte) error {
	type shadow Content
	var s shadow
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = Content(s)
	ext, err := splitExtensions(data, map[string]bool{"size": true, "compression": true, "mimeType": true, "text": true, "encoding": true, "comment": true})
	if err != nil {
		return err
	}
	c.Extensions = ext
	return nil
}

func (r *Response) UnmarshalJSON(data []byte) error {
	type shadow Response
	var s shadow
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = Response(s)
	ext, err := splitExtensions(data, map[string]bool{
		"status": true, "statusText": true, "httpVersion": true, "cookies": true,
		"headers": true, "content": true, "redirectURL": true,
		"headersSize": true, "bodySize": true, "comment": true,
	})
	if err != nil {
		return err
	}
	r.Extensions = ext
	return nil
}

func (t *Timings) UnmarshalJSON(data []byte) error {
	type shadow Timings
	var s shadow
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = Timings(s)
	ext, err := splitExtensions(data, map[string]bool{
		"blocked": true, "dns": true, "connect": true, "send": true,
		"wait": true, "receive": true, "ssl": true, "comment": true,
	})
	if err != nil {
		return err
	}
	t.Extensions = ext
	return nil
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	type shadow Entry
	var s shadow
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*e = Entry(s)
	ext, err := splitExtensions(data, map[string]bool{
		"pageref": true, "startedDateTime": true, "time": true, "request": true,
		"response": true, "cache": true, "timings": true, "serverIPAddress": true,
		"connection": true, "comment": true,
	})
	if err != nil {
		return err
	}
	e.Extensions = ext
	return nil
}
