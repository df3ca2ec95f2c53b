package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
)

// DecodeVector parses a CVSS vector string such as
// "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H".
//
// The first slash-separated token is a version marker and is discarded. Each
// remaining token must be a single KEY:VALUE pair; duplicate keys resolve to
// the last occurrence. Every recognized key present in the string appears in
// the result, mapped through codes; unrecognized codes map to
// domain.CategoryUnknown. A token without exactly one colon makes the whole
// string malformed and no values are returned.
func DecodeVector(vector string, codes domain.CodeTable) (map[domain.SubMetric]domain.Category, error) {
	tokens := strings.Split(vector, "/")
	if len(tokens) < 2 {
		return map[domain.SubMetric]domain.Category{}, nil
	}

	pairs := make(map[string]string, len(tokens)-1)
	for _, tok := range tokens[1:] {
		if strings.Count(tok, ":") != 1 {
			return nil, fmt.Errorf("%w: token %q", domain.ErrMalformedVector, tok)
		}
		k, v, _ := strings.Cut(tok, ":")
		pairs[k] = v
	}

	out := make(map[domain.SubMetric]domain.Category, len(domain.SubMetrics()))
	for _, m := range domain.SubMetrics() {
		code, ok := pairs[m.Key()]
		if !ok {
			continue
		}
		out[m] = codes.Lookup(m, code)
	}
	return out, nil
}

// EncodeVector renders values back into vector form, in sub-metric order,
// after the given prefix token. Categories with no code are skipped.
func EncodeVector(prefix string, values map[domain.SubMetric]domain.Category, codes domain.CodeTable) string {
	parts := []string{prefix}
	for _, m := range domain.SubMetrics() {
		cat, ok := values[m]
		if !ok {
			continue
		}
		code, ok := codes.Code(m, cat)
		if !ok {
			continue
		}
		parts = append(parts, m.Key()+":"+code)
	}
	return strings.Join(parts, "/")
}
