// Package properties encodes user metadata to and from the single header
// string used by the store (x-ms-properties).
//
// Wire format:
//
//	key1=base64(latin1(value1)),key2=base64(latin1(value2))
//
// Values are first encoded as ISO-8859-1 and the resulting bytes are base64
// encoded, so any value containing a rune outside Latin-1 cannot be persisted.
package properties

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/marmos91/dfsgate/pkg/fserrors"
	"golang.org/x/text/encoding/charmap"
)

// Properties maps property names to values. Keys are unique and order is
// irrelevant.
type Properties map[string]string

const (
	entrySeparator = ","
	keySeparator   = "="
)

// wireCharset is the single-byte encoding applied to values before base64.
var wireCharset = charmap.ISO8859_1

// Encode serializes props into the header form.
//
// Entries are emitted sorted by key so the output is deterministic. An empty
// mapping encodes to the empty string; callers skip the request entirely in
// that case.
//
// Returns an ErrInvalidPropertyValue error naming the offending key if a key
// is empty or contains a separator, or if a value is not representable in
// ISO-8859-1.
func Encode(props Properties) (string, error) {
	if len(props) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		if k == "" || strings.ContainsAny(k, entrySeparator+keySeparator) {
			return "", &fserrors.Error{
				Code:    fserrors.ErrInvalidPropertyValue,
				Message: fmt.Sprintf("property key %q must be non-empty and contain neither ',' nor '='", k),
			}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	encoder := wireCharset.NewEncoder()

	var b strings.Builder
	for i, key := range keys {
		raw, err := encoder.String(props[key])
		if err != nil {
			return "", &fserrors.Error{
				Code:    fserrors.ErrInvalidPropertyValue,
				Message: fmt.Sprintf("property %q is not representable in ISO-8859-1", key),
				Err:     err,
			}
		}

		if i > 0 {
			b.WriteString(entrySeparator)
		}
		b.WriteString(key)
		b.WriteString(keySeparator)
		b.WriteString(base64.StdEncoding.EncodeToString([]byte(raw)))
	}

	return b.String(), nil
}

// Decode parses the header form. Empty input yields an empty mapping.
//
// Each comma separated segment must be non-empty and contain an '='; the
// segment is split on its first '=' only, since base64 padding may add more.
// Malformed segments and undecodable base64 yield ErrInvalidFormat.
func Decode(header string) (Properties, error) {
	props := make(Properties)
	if header == "" {
		return props, nil
	}

	decoder := wireCharset.NewDecoder()

	for _, segment := range strings.Split(header, entrySeparator) {
		if segment == "" {
			return nil, invalidFormat(header, "empty property segment", nil)
		}

		key, encoded, ok := strings.Cut(segment, keySeparator)
		if !ok {
			return nil, invalidFormat(header, fmt.Sprintf("property segment %q has no '='", segment), nil)
		}

		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, invalidFormat(header, fmt.Sprintf("property %q has malformed base64 value", key), err)
		}

		value, err := decoder.Bytes(raw)
		if err != nil {
			return nil, invalidFormat(header, fmt.Sprintf("property %q cannot be decoded", key), err)
		}

		props[key] = string(value)
	}

	return props, nil
}

func invalidFormat(header, message string, cause error) error {
	return &fserrors.Error{
		Code:    fserrors.ErrInvalidFormat,
		Message: fmt.Sprintf("invalid properties header %q: %s", header, message),
		Err:     cause,
	}
}
