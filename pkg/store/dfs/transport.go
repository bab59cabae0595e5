package dfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dfsgate/internal/logger"
	"github.com/marmos91/dfsgate/pkg/store/rest"
)

// call performs one signed exchange. path is filesystem relative ("" for
// filesystem level calls). A response status of 400 or above becomes a
// *rest.ServiceError.
func (c *Client) call(ctx context.Context, operation, method, path string, query url.Values, header http.Header, body []byte) (*rest.Result, error) {
	req, err := c.newRequest(ctx, method, path, query, header, body)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("dfs %s: rate limit wait: %w", operation, err)
	}

	if err := c.signer.Sign(req); err != nil {
		return nil, fmt.Errorf("dfs %s: sign request: %w", operation, err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(operation, 0, time.Since(start))
		return nil, fmt.Errorf("dfs %s %s: %w", method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRequest(operation, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("dfs %s %s: read response: %w", method, req.URL.Path, err)
	}

	logger.Debug("dfs %s %s -> %d (request %s)", method, req.URL.Path, resp.StatusCode, req.Header.Get(rest.HeaderClientRequestID))

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeError(resp, payload)
	}

	if len(body) > 0 {
		c.metrics.RecordBytes(operation, int64(len(body)))
	}
	if method == http.MethodGet && len(payload) > 0 {
		c.metrics.RecordBytes(operation, int64(len(payload)))
	}

	return &rest.Result{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       payload,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, header http.Header, body []byte) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + c.fileSystem + path
	u.RawPath = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("dfs: build request: %w", err)
	}

	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	req.Header.Set(rest.HeaderClientRequestID, uuid.NewString())

	return req, nil
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(resp *http.Response, payload []byte) *rest.ServiceError {
	se := &rest.ServiceError{
		StatusCode: resp.StatusCode,
		Code:       resp.Header.Get(rest.HeaderErrorCode),
		RequestID:  resp.Header.Get(rest.HeaderRequestID),
	}

	var eb errorBody
	if len(payload) > 0 && json.Unmarshal(payload, &eb) == nil && eb.Error.Code != "" {
		se.Code = eb.Error.Code
		se.Message = eb.Error.Message
	} else if len(payload) > 0 {
		se.Message = strings.TrimSpace(string(payload))
	}

	if se.Message == "" {
		se.Message = http.StatusText(resp.StatusCode)
	}
	return se
}

// flexInt64 and flexBool accept both JSON numbers/booleans and their quoted
// forms, since the service returns numeric fields as strings.
type flexInt64 struct {
	value *int64
}

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", data, err)
	}
	f.value = &v
	return nil
}

type flexBool struct {
	value *bool
}

func (f *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean %s: %w", data, err)
	}
	f.value = &v
	return nil
}

type wireEntry struct {
	Name          string    `json:"name"`
	IsDirectory   flexBool  `json:"isDirectory"`
	ContentLength flexInt64 `json:"contentLength"`
	LastModified  string    `json:"lastModified"`
	ETag          string    `json:"etag"`
}

type wireList struct {
	Paths []wireEntry `json:"paths"`
}

// decodeList parses a list body. An empty body yields a nil schema.
func decodeList(payload []byte) (*rest.ListSchema, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil
	}

	var wl wireList
	if err := json.Unmarshal(payload, &wl); err != nil {
		return nil, fmt.Errorf("dfs: decode list response: %w", err)
	}

	schema := &rest.ListSchema{Paths: make([]rest.ListEntry, 0, len(wl.Paths))}
	for _, e := range wl.Paths {
		schema.Paths = append(schema.Paths, rest.ListEntry{
			Name:          e.Name,
			IsDirectory:   e.IsDirectory.value,
			ContentLength: e.ContentLength.value,
			LastModified:  e.LastModified,
			ETag:          e.ETag,
		})
	}
	return schema, nil
}
