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

package har

import (
	"encoding/json"
	"fmt"

	"github.com/go-faster/jx"
)

// walkDocument descends into the top-level object looking for "log",
// without assuming it is the only or the first key, and without ever
// holding the whole document in memory: jx tokenizes structure and this
// package only fully decodes one page or one entry at a time.
func (r *Reader) walkDocument() error {
	d := jx.Decode(r.cr, 64*1024)

	var sawLog bool
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "log" {
			return d.Skip()
		}
		sawLog = true
		return r.walkLog(d)
	})
	if err != nil {
		return err
	}
	if !sawLog {
		return &ParseError{Offset: r.cr.n, Reason: `missing top-level "log" object`}
	}
	return nil
}

func (r *Reader) walkLog(d *jx.Decoder) error {
	ext := map[string]json.RawMessage{}
	var sawEntries bool

	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "version":
			s, err := d.Str()
			if err != nil {
				return err
			}
			r.header.Version = s
			return nil
		case "creator":
			raw, err := d.Raw()
			if err != nil {
				return err
			}
			return json.Unmarshal(raw, &r.header.Creator)
		case "browser":
			raw, err := d.Raw()
			if err != nil {
				return err
			}
			var b Creator
			if err := json.Unmarshal(raw, &b); err != nil {
				return err
			}
			r.header.Browser = &b
			return nil
		case "comment":
			s, err := d.Str()
			if err != nil {
				return err
			}
			r.header.Comment = s
			return nil
		case "pages":
			return d.Arr(func(d *jx.Decoder) error {
				raw, err := d.Raw()
				if err != nil {
					return err
				}
				var p Page
				if err := json.Unmarshal(raw, &p); err != nil {
					return &ParseError{Offset: r.cr.n, Reason: fmt.Sprintf("page: %v", err)}
				}
				return r.publish(item{kind: kindPage, page: &p})
			})
		case "entries":
			sawEntries = true
			return d.Arr(func(d *jx.Decoder) error {
				raw, err := d.Raw()
				if err != nil {
					return err
				}
				var e Entry
				if err := json.Unmarshal(raw, &e); err != nil {
					return &ParseError{Offset: r.cr.n, Reason: fmt.Sprintf("entry: %v", err)}
				}
				return r.publish(item{kind: kindEntry, entr: &e})
			})
		default:
			raw, err := d.Raw()
			if err != nil {
				return err
			}
			ext[key] = json.RawMessage(raw)
			return nil
		}
	})
	if err != nil {
		return err
	}
	if len(ext) > 0 {
		r.header.Extensions = ext
	}
	if !sawEntries {
		return &ParseError{Offset: r.cr.n, Reason: "log.entries array is missing"}
	}
	return nil
}
