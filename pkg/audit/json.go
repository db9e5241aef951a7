package audit

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/asoforge/metascore/pkg/rules"
)

// Request is the JSON envelope accepted by EvaluateJSON.
type Request struct {
	Metadata Metadata        `json:"metadata"`
	Vertical string          `json:"vertical,omitempty"`
	Market   string          `json:"market,omitempty"`
	Client   *rules.Fragment `json:"clientOverrides,omitempty"`
}

// EvaluateJSON decodes a request envelope, runs the audit, and encodes
// the result. Byte-for-byte stable for identical request bytes, which
// makes the output safe to diff or cache by content hash.
func (o *Orchestrator) EvaluateJSON(data []byte) ([]byte, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("audit: decode request: %w", err)
	}
	res, err := o.Evaluate(req.Metadata, req.Vertical, req.Market, req.Client)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("audit: encode result: %w", err)
	}
	return out, nil
}
