package step

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/roach88/stepwise/internal/execctx"
	"github.com/roach88/stepwise/internal/scenario"
)

// maxResponseBody caps how much of a response is read.
const maxResponseBody = 8 << 20

func doHTTP(ctx context.Context, call *scenario.HTTPCall, env *Env, vars *execctx.Context) (Effects, error) {
	target, err := requestURL(env.BaseURL, call, vars)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	contentType := ""
	switch {
	case call.JSON != nil:
		v, err := vars.Resolve(call.JSON)
		if err != nil {
			return nil, err
		}
		body = strings.NewReader(v.JSONString())
		contentType = "application/json"
	case call.Body != "":
		s, err := vars.Expand(call.Body)
		if err != nil {
			return nil, err
		}
		body = strings.NewReader(s)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(call.Method), target, body)
	if err != nil {
		return nil, Fault("cannot build request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range call.Headers {
		hv, err := vars.Expand(v)
		if err != nil {
			return nil, err
		}
		req.Header.Set(k, hv)
	}

	resp, err := env.client().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Failure{
			Kind:   scenario.FailureTransient,
			Detail: fmt.Sprintf("%s %s: %v", req.Method, req.URL.Path, err),
			Err:    err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, Transient("%s %s: reading response: %v", req.Method, req.URL.Path, err)
	}

	if !statusExpected(resp.StatusCode, call.ExpectStatus) {
		if resp.StatusCode >= 400 {
			return nil, Rejected(resp.StatusCode, string(data))
		}
		return nil, Assertion(&AssertionError{
			Op:       "status",
			Expected: describeStatuses(call.ExpectStatus),
			Actual:   fmt.Sprintf("%d", resp.StatusCode),
		})
	}

	fx := Effects{}
	if call.CaptureStatus != "" {
		fx[call.CaptureStatus] = ldvalue.Int(resp.StatusCode)
	}

	if len(call.ExpectBody) == 0 && call.ExpectType == "" && len(call.Capture) == 0 {
		return fx, nil
	}

	if !json.Valid(bytes.TrimSpace(data)) {
		return nil, Assertion(&AssertionError{
			Op:       "body",
			Expected: "a JSON response",
			Actual:   fmt.Sprintf("%q", excerpt(string(data), 80)),
		})
	}
	doc := ldvalue.Parse(data)

	if call.ExpectType != "" {
		if got := typeName(doc); got != call.ExpectType {
			return nil, Assertion(&AssertionError{Op: "expect_type", Expected: call.ExpectType, Actual: got})
		}
	}

	if len(call.ExpectBody) > 0 {
		want, err := vars.Resolve(call.ExpectBody)
		if err != nil {
			return nil, err
		}
		if path, ok := subsetMatch(want, doc, "body"); !ok {
			got, _ := execctx.Extract(doc, strings.TrimPrefix(strings.TrimPrefix(path, "body"), "."))
			wantAt, _ := execctx.Extract(want, strings.TrimPrefix(strings.TrimPrefix(path, "body"), "."))
			return nil, Assertion(&AssertionError{
				Op:       "expect_body",
				Path:     path,
				Expected: execctx.Display(wantAt),
				Actual:   execctx.Display(got),
			})
		}
	}

	names := make([]string, 0, len(call.Capture))
	for name := range call.Capture {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := call.Capture[name]
		v, ok := execctx.Extract(doc, path)
		if !ok {
			return nil, Assertion(&AssertionError{
				Op:       "capture",
				Path:     name,
				Expected: fmt.Sprintf("response path %q", path),
				Actual:   "missing",
			})
		}
		fx[name] = v
	}
	return fx, nil
}

// requestURL builds the absolute request URL with templates expanded.
// Absolute paths in the step override the base URL.
func requestURL(base string, call *scenario.HTTPCall, vars *execctx.Context) (string, error) {
	p, err := vars.Expand(call.Path)
	if err != nil {
		return "", err
	}
	raw := p
	if !strings.HasPrefix(p, "http://") && !strings.HasPrefix(p, "https://") {
		raw = joinURL(base, p)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", Fault("invalid request URL %q: %v", raw, err)
	}
	if len(call.Query) > 0 {
		q := u.Query()
		for k, v := range call.Query {
			qv, err := vars.Expand(v)
			if err != nil {
				return "", err
			}
			q.Set(k, qv)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func joinURL(base, p string) string {
	if base == "" {
		return p
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}

// statusExpected reports whether code is acceptable. An empty list accepts
// any 2xx.
func statusExpected(code int, expected []int) bool {
	if len(expected) == 0 {
		return code >= 200 && code < 300
	}
	for _, c := range expected {
		if c == code {
			return true
		}
	}
	return false
}

func describeStatuses(expected []int) string {
	if len(expected) == 0 {
		return "2xx"
	}
	parts := make([]string, len(expected))
	for i, c := range expected {
		parts[i] = fmt.Sprintf("%d", c)
	}
	return strings.Join(parts, " or ")
}

// subsetMatch checks that every field in want is present in got with an
// equal value. Objects match as subsets; arrays must have the same length
// and match element-wise. On mismatch it returns the dotted path of the
// first differing value.
func subsetMatch(want, got ldvalue.Value, path string) (string, bool) {
	switch want.Type() {
	case ldvalue.ObjectType:
		if got.Type() != ldvalue.ObjectType {
			return path, false
		}
		keys := want.Keys()
		sort.Strings(keys)
		for _, k := range keys {
			sub := path + "." + k
			if !hasKey(got, k) {
				return sub, false
			}
			if p, ok := subsetMatch(want.GetByKey(k), got.GetByKey(k), sub); !ok {
				return p, false
			}
		}
		return "", true
	case ldvalue.ArrayType:
		if got.Type() != ldvalue.ArrayType || got.Count() != want.Count() {
			return path, false
		}
		for i := 0; i < want.Count(); i++ {
			if p, ok := subsetMatch(want.GetByIndex(i), got.GetByIndex(i), fmt.Sprintf("%s.%d", path, i)); !ok {
				return p, false
			}
		}
		return "", true
	default:
		if !want.Equal(got) {
			return path, false
		}
		return "", true
	}
}

func hasKey(obj ldvalue.Value, key string) bool {
	for _, k := range obj.Keys() {
		if k == key {
			return true
		}
	}
	return false
}
