package recovery

import (
	"net/url"
	"strings"
)

// linkMarkers precede {uid}/{token} in a delivered reset link.
var linkMarkers = []string{"reset-password", "password-reset-confirm"}

// ParseLink extracts the user id and reset token from a link such as
// https://portal.example/reset-password/MjE/c4k2-9f1e.../ . A bare path works too.
func ParseLink(raw string) (Binding, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Binding{}, false
	}

	segs := splitPath(u.EscapedPath())
	for i, s := range segs {
		if !isMarker(s) {
			continue
		}
		if len(segs) != i+3 {
			return Binding{}, false
		}
		uid, err1 := url.PathUnescape(segs[i+1])
		tok, err2 := url.PathUnescape(segs[i+2])
		if err1 != nil || err2 != nil {
			return Binding{}, false
		}
		b := Binding{UserID: uid, Token: tok}
		return b, b.valid()
	}
	return Binding{}, false
}

func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isMarker(s string) bool {
	for _, m := range linkMarkers {
		if strings.EqualFold(s, m) {
			return true
		}
	}
	return false
}
