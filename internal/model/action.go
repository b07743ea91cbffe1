package model

import (
	"fmt"

	"github.com/goccy/go-json"
)

// StreamMessage is one frame from the neardata action stream. Actions are
// grouped per block and delivered as a batch.
type StreamMessage struct {
	Secret  string   `json:"secret"`
	Actions []Action `json:"actions"`
	Note    string   `json:"note,omitempty"`
}

// Action is a single on-chain action from the stream.
type Action struct {
	BlockHeight      uint64        `json:"blockHeight"`
	BlockHash        string        `json:"blockHash,omitempty"`
	BlockTimestampMs float64       `json:"blockTimestampMs,omitempty"`
	TxHash           string        `json:"txHash,omitempty"`
	ReceiptID        string        `json:"receiptId,omitempty"`
	SignerID         string        `json:"signerId,omitempty"`
	AccountID        string        `json:"accountId"`
	PredecessorID    string        `json:"predecessorId,omitempty"`
	Status           string        `json:"status"`
	Action           ActionPayload `json:"action"`
}

// Action kinds as they appear on the wire (externally tagged variant).
const (
	ActionFunctionCall   = "FunctionCall"
	ActionTransfer       = "Transfer"
	ActionDeployContract = "DeployContract"
	ActionAddKey         = "AddKey"
	ActionDeleteKey      = "DeleteKey"
	ActionCreateAccount  = "CreateAccount"
	ActionDeleteAccount  = "DeleteAccount"
	ActionStake          = "Stake"
	ActionOther          = "Other"
)

// ActionPayload is the externally tagged action variant, e.g.
// {"FunctionCall": {"method_name": "pause", ...}}. The body is kept dynamic;
// typed access happens through the Record field tree.
type ActionPayload struct {
	Kind string
	Body Value
}

// UnmarshalJSON decodes the single-key tagged form. A bare string tag
// ("CreateAccount") and an unknown tag both decode without error.
func (p *ActionPayload) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		p.Kind = tag
		p.Body = Object(map[string]Value{})
		return nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("decode action payload: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("action payload must have exactly one variant, got %d", len(tagged))
	}

	for kind, raw := range tagged {
		body, err := FromJSON(raw)
		if err != nil {
			return fmt.Errorf("decode %s body: %w", kind, err)
		}
		if body.Kind() != KindObject {
			body = Object(map[string]Value{})
		}
		p.Kind = kind
		p.Body = body
	}
	return nil
}

// MarshalJSON re-encodes the tagged form.
func (p ActionPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{p.Kind: p.Body.Interface()})
}

// MethodName returns the called method for FunctionCall actions.
func (p ActionPayload) MethodName() (string, bool) {
	if p.Kind != ActionFunctionCall {
		return "", false
	}
	obj, ok := p.Body.AsObject()
	if !ok {
		return "", false
	}
	name, ok := obj["method_name"]
	if !ok {
		return "", false
	}
	return name.AsString()
}

// DecodeStreamMessage parses one raw frame from the stream.
func DecodeStreamMessage(data []byte) (StreamMessage, error) {
	var msg StreamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return StreamMessage{}, fmt.Errorf("decode stream message: %w", err)
	}
	return msg, nil
}
