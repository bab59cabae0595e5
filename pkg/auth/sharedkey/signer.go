// Package sharedkey implements the store's shared-key request authentication.
//
// A request is signed by stamping it with the current date and protocol
// version, deriving a canonical string from its method, standard headers,
// x-ms-* headers and resource, and setting
//
//	Authorization: SharedKey {account}:{base64(HMAC-SHA256(key, canonical))}
//
// The canonical form must match the server's byte for byte, so every detail
// below (element order, empty slots, trimming, sorting) is load bearing.
package sharedkey

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/marmos91/dfsgate/pkg/fserrors"
)

const (
	// HeaderDate is the store's alternate date header. When present the
	// standard Date slot of the canonical string is left blank.
	HeaderDate = "x-ms-date"

	// HeaderVersion carries the protocol version.
	HeaderVersion = "x-ms-version"

	// HeaderAuthorization receives the computed credential.
	HeaderAuthorization = "Authorization"

	// TargetVersion is the protocol version every signed request declares.
	TargetVersion = "2018-03-28"

	// Scheme is the authorization scheme name.
	Scheme = "SharedKey"

	storageHeaderPrefix = "x-ms-"
)

// standardHeaders are the slots between the content type and the custom
// headers, in canonical order. The Date slot is handled separately.
var standardHeaders = []string{
	"If-Modified-Since",
	"If-Match",
	"If-None-Match",
	"If-Unmodified-Since",
	"Range",
}

// Signer signs requests for one storage account.
type Signer struct {
	account string
	key     []byte
	now     func() time.Time
}

// NewSigner creates a signer from the account name and its base64 encoded
// key, as handed out by the store.
func NewSigner(account, accountKey string) (*Signer, error) {
	if account == "" {
		return nil, fserrors.New(fserrors.ErrInvalidParameter, "account name is required")
	}

	key, err := base64.StdEncoding.DecodeString(accountKey)
	if err != nil {
		return nil, fserrors.Wrap(fserrors.ErrInvalidParameter, "account key is not valid base64", err)
	}

	return &Signer{account: account, key: key, now: time.Now}, nil
}

// WithClock returns a copy of the signer that takes the request date from now.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	c := *s
	c.now = now
	return &c
}

// Account returns the account name used in the credential.
func (s *Signer) Account() string {
	return s.account
}

// Sign replaces the request's date, version and authorization headers.
//
// A request declaring a content length below -1 is rejected with
// ErrInvalidParameter and left untouched. A length of exactly -1 means
// unknown and is accepted.
func (s *Signer) Sign(req *http.Request) error {
	if _, err := contentLength(req); err != nil {
		return err
	}

	req.Header.Del(HeaderDate)
	req.Header.Del(HeaderVersion)
	req.Header.Set(HeaderDate, s.now().UTC().Format(http.TimeFormat))
	req.Header.Set(HeaderVersion, TargetVersion)

	stringToSign, err := StringToSign(req, s.account)
	if err != nil {
		return err
	}

	req.Header.Set(HeaderAuthorization, fmt.Sprintf("%s %s:%s", Scheme, s.account, ComputeSignature(s.key, stringToSign)))
	return nil
}

// ComputeSignature returns base64(HMAC-SHA256(key, stringToSign)).
func ComputeSignature(key []byte, stringToSign string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// StringToSign derives the canonical string for req as signed by account.
func StringToSign(req *http.Request, account string) (string, error) {
	length, err := contentLength(req)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(300)
	b.WriteString(req.Method)

	appendElement(&b, req.Header.Get("Content-Encoding"))
	appendElement(&b, req.Header.Get("Content-Language"))
	if length <= 0 {
		appendElement(&b, "")
	} else {
		appendElement(&b, strconv.FormatInt(length, 10))
	}
	appendElement(&b, req.Header.Get("Content-MD5"))
	appendElement(&b, req.Header.Get("Content-Type"))

	if req.Header.Get(HeaderDate) == "" {
		appendElement(&b, req.Header.Get("Date"))
	} else {
		appendElement(&b, "")
	}

	for _, name := range standardHeaders {
		appendElement(&b, req.Header.Get(name))
	}

	appendCanonicalizedHeaders(&b, req.Header)

	resource, err := canonicalizedResource(req.URL, account)
	if err != nil {
		return "", err
	}
	appendElement(&b, resource)

	return b.String(), nil
}

func appendElement(b *strings.Builder, element string) {
	b.WriteByte('\n')
	b.WriteString(element)
}

// contentLength prefers an explicit Content-Length header and falls back to
// the request's declared length.
func contentLength(req *http.Request) (int64, error) {
	length := req.ContentLength
	if raw := req.Header.Get("Content-Length"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fserrors.Wrap(fserrors.ErrInvalidParameter, "invalid content length", err)
		}
		length = parsed
	}

	if length < -1 {
		return 0, fserrors.New(fserrors.ErrInvalidParameter, fmt.Sprintf("invalid content length %d", length))
	}
	return length, nil
}

// appendCanonicalizedHeaders writes every x-ms-* header as
// "\n{lowercase name}:{v1,v2,...}", sorted by lowercase name. Header keys
// differing only by case are merged.
func appendCanonicalizedHeaders(b *strings.Builder, header http.Header) {
	values := make(map[string][]string)
	for name, vs := range header {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, storageHeaderPrefix) {
			continue
		}
		values[lower] = append(values[lower], vs...)
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		vs := values[name]
		if len(vs) == 0 {
			continue
		}

		var element strings.Builder
		element.WriteString(name)
		for i, v := range vs {
			if i == 0 {
				element.WriteByte(':')
			} else {
				element.WriteByte(',')
			}
			v = strings.TrimLeftFunc(v, unicode.IsSpace)
			element.WriteString(strings.ReplaceAll(v, "\r\n", ""))
		}
		appendElement(b, element.String())
	}
}

// canonicalizedResource renders "/{account}{path}" followed, when the query
// carries at least one key=value pair, by "\n{key}:{sorted values}" per
// lowercase key in sorted order.
func canonicalizedResource(u *url.URL, account string) (string, error) {
	var b strings.Builder
	b.WriteByte('/')
	b.WriteString(account)
	b.WriteString(u.EscapedPath())

	if !strings.Contains(u.RawQuery, "=") {
		return b.String(), nil
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", fserrors.Wrap(fserrors.ErrInvalidParameter, "invalid query string", err)
	}

	params := make(map[string][]string, len(query))
	for key, vs := range query {
		lower := strings.ToLower(key)
		params[lower] = append(params[lower], vs...)
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		vs := params[key]
		sort.Strings(vs)
		appendElement(&b, key+":"+strings.Join(vs, ","))
	}

	return b.String(), nil
}
