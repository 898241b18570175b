// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// RecordedRequest captures the parts of an outbound request that tests
// assert on.
type RecordedRequest struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// Form parses the recorded body as application/x-www-form-urlencoded.
func (r RecordedRequest) Form() url.Values {
	values, err := url.ParseQuery(string(r.Body))
	if err != nil {
		return url.Values{}
	}
	return values
}

// StubResponse describes one canned upstream response.
type StubResponse struct {
	Status int
	Body   string
	Err    error
}

// ScriptedRoundTripper plays back a sequence of [StubResponse] values, one
// per call, recording every request it sees. Once the script runs out the
// final entry repeats, so retry loops can be observed via [Calls].
type ScriptedRoundTripper struct {
	mu    sync.Mutex
	stubs []StubResponse

	Calls []RecordedRequest
}

func NewScriptedRoundTripper(stubs ...StubResponse) *ScriptedRoundTripper {
	return &ScriptedRoundTripper{stubs: stubs}
}

func (s *ScriptedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := RecordedRequest{
		Method: req.Method,
		URL:    req.URL,
		Header: req.Header.Clone(),
	}
	if req.Body != nil {
		rec.Body, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}
	s.Calls = append(s.Calls, rec)

	i := len(s.Calls) - 1
	if i >= len(s.stubs) {
		i = len(s.stubs) - 1
	}
	if i < 0 {
		return nil, errors.New("no scripted responses")
	}

	stub := s.stubs[i]
	if stub.Err != nil {
		return nil, stub.Err
	}

	return &http.Response{
		StatusCode: stub.Status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(stub.Body)),
		Request:    req,
	}, nil
}

// CallCount returns how many requests the script has served.
func (s *ScriptedRoundTripper) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// Client wraps the round tripper in an [http.Client].
func (s *ScriptedRoundTripper) Client() *http.Client {
	return &http.Client{Transport: s}
}
