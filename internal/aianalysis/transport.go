package aianalysis

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// envelopeTransport puts back the chat-completion fields go-openai omits when
// they hold their zero value, so every request carries an explicit
// temperature and "stream": false.
type envelopeTransport struct {
	base        http.RoundTripper
	temperature float32
}

func newEnvelopeTransport(base http.RoundTripper, temperature float32) *envelopeTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &envelopeTransport{base: base, temperature: temperature}
}

func (t *envelopeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPost || req.Body == nil || !strings.HasSuffix(req.URL.Path, "/chat/completions") {
		return t.base.RoundTrip(req)
	}

	raw, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	body := completeEnvelope(raw, t.temperature)

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	out.ContentLength = int64(len(body))
	return t.base.RoundTrip(out)
}

// completeEnvelope returns raw unchanged when it is not a JSON object.
func completeEnvelope(raw []byte, temperature float32) []byte {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return raw
	}
	changed := false
	if _, ok := payload["stream"]; !ok {
		payload["stream"] = json.RawMessage("false")
		changed = true
	}
	if _, ok := payload["temperature"]; !ok {
		payload["temperature"] = json.RawMessage(strconv.FormatFloat(float64(temperature), 'f', -1, 32))
		changed = true
	}
	if !changed {
		return raw
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return raw
	}
	return encoded
}
