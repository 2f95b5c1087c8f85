package model

import (
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
)

// Transcript is an ordered sequence of quanta. Order is conversational order
// and is sent as is to the completion provider.
type Transcript []Quantum

// Clone returns a deep copy. Quanta in the copy can be modified without
// affecting the original.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	cloned := make(Transcript, len(t))
	for i, q := range t {
		cloned[i] = q.clone()
	}
	return cloned
}

type envelope struct {
	Role Role `json:"role"`
}

func (t Transcript) MarshalJSON() ([]byte, error) {
	items := make([]json.RawMessage, 0, len(t))
	for i, q := range t {
		raw, err := marshalQuantum(q)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal quantum", goerr.V("index", i))
		}
		items = append(items, raw)
	}
	return json.Marshal(items)
}

func (t *Transcript) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return goerr.Wrap(err, "transcript must be a JSON array")
	}

	decoded := make(Transcript, 0, len(items))
	for i, raw := range items {
		q, err := unmarshalQuantum(raw)
		if err != nil {
			return goerr.Wrap(err, "failed to unmarshal quantum", goerr.V("index", i))
		}
		decoded = append(decoded, q)
	}

	*t = decoded
	return nil
}

func marshalQuantum(q Quantum) ([]byte, error) {
	switch v := q.(type) {
	case *UserMessage:
		return json.Marshal(struct {
			envelope
			*UserMessage
		}{envelope{RoleUser}, v})
	case *SystemMessage:
		return json.Marshal(struct {
			envelope
			*SystemMessage
		}{envelope{RoleSystem}, v})
	case *AssistantMessage:
		return json.Marshal(struct {
			envelope
			*AssistantMessage
		}{envelope{RoleAssistant}, v})
	case *LongTermMemory:
		return json.Marshal(struct {
			envelope
			*LongTermMemory
		}{envelope{RoleLongTermMemory}, v})
	default:
		return nil, goerr.New("unknown quantum type", goerr.V("type", fmt.Sprintf("%T", q)))
	}
}

func unmarshalQuantum(raw json.RawMessage) (Quantum, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, goerr.Wrap(err, "failed to read role")
	}

	switch env.Role {
	case RoleUser:
		var v UserMessage
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, goerr.Wrap(err, "failed to decode user message")
		}
		v.Time = v.Time.UTC()
		return &v, nil

	case RoleSystem:
		var v SystemMessage
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, goerr.Wrap(err, "failed to decode system message")
		}
		v.Time = v.Time.UTC()
		return &v, nil

	case RoleAssistant:
		var v AssistantMessage
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, goerr.Wrap(err, "failed to decode assistant message")
		}
		if err := v.Emotion.Validate(); err != nil {
			return nil, err
		}
		v.Time = v.Time.UTC()
		return &v, nil

	case RoleLongTermMemory:
		var v LongTermMemory
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, goerr.Wrap(err, "failed to decode long-term memory")
		}
		if err := v.Emotion.Validate(); err != nil {
			return nil, err
		}
		v.Time = v.Time.UTC()
		return &v, nil

	default:
		return nil, goerr.New("unknown role", goerr.V("role", env.Role))
	}
}
