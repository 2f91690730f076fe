package server

import (
	"fmt"
	"time"

	"github.com/amirfounder/http-server/pkg/service"
	"github.com/jinzhu/copier"
	"github.com/microcosm-cc/bluemonday"
	"github.com/samber/lo"
)

const envelopeStatusDone = "DONE"

// Call describes one completed service invocation
type Call struct {
	Path      string
	Method    service.Method
	RequestID string
	Service   service.Service
	Params    service.Params
	Result    any
	Start     time.Time
	End       time.Time
}

// EnvelopeResponse wraps a service result with request and timing data
type EnvelopeResponse struct {
	Status       string      `json:"status"`
	RequestData  RequestData `json:"request_data"`
	ResponseData any         `json:"response_data"`
	Performance  Performance `json:"performance"`
}

// RequestData echoes what was dispatched
type RequestData struct {
	Path      string         `json:"path"`
	Method    string         `json:"method"`
	Params    service.Params `json:"params"`
	Service   string         `json:"service"`
	RequestID string         `json:"request_id,omitempty"`
}

// Performance holds service timing
type Performance struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Elapsed string `json:"elapsed"`
}

// Envelope builds EnvelopeResponse values. Echoed strings are stripped of markup at any depth;
// top-level strings are then truncated.
type Envelope struct {
	truncatedLength int
	policy          *bluemonday.Policy
}

// NewEnvelope creates an Envelope cutting echoed strings at truncatedLength runes
func NewEnvelope(truncatedLength int) *Envelope {
	return &Envelope{
		truncatedLength: truncatedLength,
		policy:          bluemonday.StrictPolicy(),
	}
}

// Wrap builds the response for call. call.Params is not modified.
func (e *Envelope) Wrap(call Call) EnvelopeResponse {
	return EnvelopeResponse{
		Status: envelopeStatusDone,
		RequestData: RequestData{
			Path:      call.Path,
			Method:    call.Method.String(),
			Params:    e.echoParams(call.Params),
			Service:   describe(call.Service),
			RequestID: call.RequestID,
		},
		ResponseData: call.Result,
		Performance: Performance{
			Start:   call.Start.UTC().Format(time.RFC3339Nano),
			End:     call.End.UTC().Format(time.RFC3339Nano),
			Elapsed: call.End.Sub(call.Start).String(),
		},
	}
}

func (e *Envelope) echoParams(params service.Params) service.Params {
	echoed := make(service.Params, len(params))
	if err := copier.CopyWithOption(&echoed, params, copier.Option{DeepCopy: true}); err != nil {
		echoed = lo.Assign(params)
	}
	for k, v := range echoed {
		clean := e.sanitize(v)
		if s, ok := clean.(string); ok {
			clean = e.truncate(s)
		}
		echoed[k] = clean
	}
	return echoed
}

// sanitize strips markup from every string in v, however deeply nested
func (e *Envelope) sanitize(v any) any {
	switch t := v.(type) {
	case string:
		return e.policy.Sanitize(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = e.sanitize(vv)
		}
		return out
	case service.Params:
		return service.Params(e.sanitize(map[string]any(t)).(map[string]any))
	case []any:
		return lo.Map(t, func(vv any, _ int) any {
			return e.sanitize(vv)
		})
	}
	return v
}

func (e *Envelope) truncate(s string) string {
	runes := []rune(s)
	if e.truncatedLength <= 3 || len(runes) <= e.truncatedLength {
		return s
	}
	return string(runes[:e.truncatedLength-3]) + "..."
}

func describe(svc service.Service) string {
	if s, ok := svc.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", svc)
}
