package api

import "strings"

// resolvePath walks a decoded JSON document by a dot-path like
// "data.text", one object field per segment. It fails closed: a missing
// segment or a non-object intermediate yields ok=false rather than a
// partially-resolved value.
func resolvePath(doc any, path string) (any, bool) {
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		m, isObj := cur.(map[string]any)
		if !isObj {
			return nil, false
		}
		v, present := m[seg]
		if !present {
			return nil, false
		}
		cur = v
	}
	return cur, true
}
