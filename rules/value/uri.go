package value

import (
	"net"
	"net/url"
	"strings"
)

// Uri is a parsed URI as produced by PARSE_URL and by RETURN_ENDPOINT's url
// string. Only the properties named in §4.8 of the engine's contract are
// exposed to GET_PROPERTY; anything else resolves to null at the call site.
type Uri struct {
	Raw    string
	Scheme string
	Host   string
	Port   string
	Path   string
}

// ParseURI parses s into a Uri. It never errors: malformed input is
// reported by returning ok=false so that PARSE_URL can push null instead of
// failing the whole evaluation.
func ParseURI(s string) (*Uri, bool) {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	host := u.Hostname()
	if host == "" {
		return nil, false
	}
	return &Uri{
		Raw:    s,
		Scheme: strings.ToLower(u.Scheme),
		Host:   host,
		Port:   u.Port(),
		Path:   u.EscapedPath(),
	}, true
}

// Authority is host, optionally ":"+port, with no userinfo.
func (u *Uri) Authority() string {
	if u.Port == "" {
		return u.Host
	}
	return u.Host + ":" + u.Port
}

// NormalizedPath canonicalises Path per endpoint rules: empty becomes "/",
// a leading "/" is ensured, and a trailing "/" is ensured.
func (u *Uri) NormalizedPath() string {
	p := u.Path
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p = p + "/"
	}
	return p
}

// IsIP reports whether the host is an IPv4 or bracketed IPv6 literal.
func (u *Uri) IsIP() bool {
	host := u.Host
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	return net.ParseIP(host) != nil
}

// GetProperty implements GET_PROPERTY's Uri fast path: scheme, path,
// normalizedPath, authority, isIp are defined; any other name is null.
func (u *Uri) GetProperty(name string) (Value, bool) {
	switch name {
	case "scheme":
		return Str(u.Scheme), true
	case "path":
		return Str(u.Path), true
	case "normalizedPath":
		return Str(u.NormalizedPath()), true
	case "authority":
		return Str(u.Authority()), true
	case "isIp":
		return Bool(u.IsIP()), true
	default:
		return Null(), false
	}
}
