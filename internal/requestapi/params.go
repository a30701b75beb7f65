package requestapi

import (
	"fmt"
	"net/url"
	"strings"
)

// Params is the query-parameter shape accepted by [Client.Get] and
// [Client.GetAsync]. Exactly three concrete shapes exist:
//
//   - [Map] merges with the client's configured defaults (caller wins on
//     key conflicts; nil-valued entries are dropped after the merge).
//   - [Pairs] is an ordered key/value list passed through verbatim — the
//     caller has opted out of default merging, typically to repeat a key
//     or to control parameter order.
//   - [Raw] is a pre-encoded query string passed through uninterpreted.
//
// A nil Params uses the configured defaults (minus nil-valued entries).
type Params interface {
	isParams()
}

// Map is an unordered parameter mapping merged over the client defaults.
type Map map[string]any

func (Map) isParams() {}

// Pairs is an ordered list of key/value parameters, sent as-is.
type Pairs [][2]string

func (Pairs) isParams() {}

// Raw is a pre-encoded query string ("a=1&b=2"), sent as-is.
type Raw string

func (Raw) isParams() {}

// encodeParams renders the effective query string for a call, applying the
// merge rules documented on [Params].
func encodeParams(p Params, defaults Map) string {
	switch v := p.(type) {
	case nil:
		return encodeMap(dropNil(defaults))
	case Map:
		merged := make(Map, len(defaults)+len(v))
		for k, val := range defaults {
			merged[k] = val
		}
		for k, val := range v {
			merged[k] = val
		}
		return encodeMap(dropNil(merged))
	case Pairs:
		return encodePairs(v)
	case Raw:
		return string(v)
	default:
		// Unreachable for shapes constructed through this package; an
		// external implementation of Params gets no interpretation.
		return ""
	}
}

// dropNil returns a copy of m without nil-valued entries. A nil default is
// a placeholder for "unset" and must not reach the wire.
func dropNil(m Map) Map {
	out := make(Map, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

func encodeMap(m Map) string {
	vals := make(url.Values, len(m))
	for k, v := range m {
		vals.Set(k, paramString(v))
	}
	return vals.Encode()
}

// encodePairs preserves the caller's ordering, which url.Values.Encode
// would destroy by sorting keys.
func encodePairs(pairs Pairs) string {
	var sb strings.Builder
	for i, kv := range pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(kv[0]))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(kv[1]))
	}
	return sb.String()
}

// paramString renders a parameter value the way the remote API expects:
// plain decimal for integers, %v for everything else.
func paramString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
