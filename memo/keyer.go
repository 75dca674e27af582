package memo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jonwraymond/reproducible/digest"
	"github.com/jonwraymond/reproducible/value"
)

// Keyer derives cache keys for memoized calls.
//
// Contract:
// - Determinism: fingerprint-equal arguments must produce the same key,
// regardless of keyword order.
// - Ignored arguments must not influence the key.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(name, identity string, args Args) (string, error)
}

// DefaultKeyer builds keys of the form
//
//	<name>:<hex digest of identity>[arg_0=<fp>,...,kwarg_<k>=<fp>,...]
//
// Positional tags keep their call order; keyword tags are sorted by name.
type DefaultKeyer struct {
	registry *value.Registry
	digest   digest.Func
}

// NewDefaultKeyer creates a keyer. Nil arguments select value.Default and
// digest.Canonical.
func NewDefaultKeyer(r *value.Registry, d digest.Func) *DefaultKeyer {
	if r == nil {
		r = value.Default
	}
	if d == nil {
		d = digest.Canonical
	}
	return &DefaultKeyer{registry: r, digest: d}
}

// Key generates the cache key for one call.
func (k *DefaultKeyer) Key(name, identity string, args Args) (string, error) {
	tags := make([]string, 0, len(args.Positional)+len(args.Keyword))

	for i, v := range args.Positional {
		fp, skip, err := k.fingerprint(v)
		if err != nil {
			return "", fmt.Errorf("memo: %s: argument %d: %w", name, i, err)
		}
		if !skip {
			tags = append(tags, "arg_"+strconv.Itoa(i)+"="+fp)
		}
	}
	for _, kw := range args.keywordNames() {
		fp, skip, err := k.fingerprint(args.Keyword[kw])
		if err != nil {
			return "", fmt.Errorf("memo: %s: keyword %q: %w", name, kw, err)
		}
		if !skip {
			tags = append(tags, "kwarg_"+kw+"="+fp)
		}
	}

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte(':')
	b.WriteString(digest.Hex(k.digest, []byte(identity)))
	b.WriteByte('[')
	b.WriteString(strings.Join(tags, ","))
	b.WriteByte(']')
	return b.String(), nil
}

func (k *DefaultKeyer) fingerprint(v any) (fp string, skip bool, err error) {
	if value.IsIgnored(v) {
		return "", true, nil
	}
	fp, err = k.registry.Fingerprint(v, k.digest)
	return fp, false, err
}

var _ Keyer = (*DefaultKeyer)(nil)
