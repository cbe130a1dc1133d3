package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode renders a node tree as indented JSON. Object keys are emitted in
// sorted order so repeated saves of the same tree produce the same bytes.
func Encode(n Node) ([]byte, error) {
	plain, err := toPlain(n)
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(plain); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses JSON into a node tree. Numbers are kept as Int when they
// parse as integers; any object carrying the type tag key becomes a Tagged
// node.
func Decode(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return fromPlain(raw)
}

func toPlain(n Node) (any, error) {
	switch val := n.(type) {
	case nil:
		return nil, nil
	case String:
		return string(val), nil
	case Int:
		return int64(val), nil
	case Float:
		return float64(val), nil
	case Bool:
		return bool(val), nil
	case Null:
		return nil, nil
	case List:
		out := make([]any, len(val))
		for i, item := range val {
			conv, err := toPlain(item)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			out[i] = conv
		}
		return out, nil
	case Map:
		out := make(map[string]any, len(val))
		for k, item := range val {
			conv, err := toPlain(item)
			if err != nil {
				return nil, fmt.Errorf("map[%q]: %w", k, err)
			}
			out[k] = conv
		}
		return out, nil
	case Tagged:
		content, err := toPlain(val.Content)
		if err != nil {
			return nil, fmt.Errorf("tagged %q: %w", val.Tag, err)
		}
		return map[string]any{TagKey: val.Tag, ContentKey: content}, nil
	default:
		return nil, fmt.Errorf("unsupported node type %T", n)
	}
}

func fromPlain(raw any) (Node, error) {
	switch val := raw.(type) {
	case nil:
		return Null{}, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case json.Number:
		n, ok := FromGo(val)
		if !ok {
			return nil, fmt.Errorf("unparseable number %q", val.String())
		}
		return n, nil
	case float64:
		return Float(val), nil
	case []any:
		out := make(List, len(val))
		for i, item := range val {
			conv, err := fromPlain(item)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			out[i] = conv
		}
		return out, nil
	case map[string]any:
		if tag, ok := val[TagKey].(string); ok {
			content, err := fromPlain(val[ContentKey])
			if err != nil {
				return nil, fmt.Errorf("tagged %q: %w", tag, err)
			}
			return Tagged{Tag: tag, Content: content}, nil
		}
		out := make(Map, len(val))
		for k, item := range val {
			conv, err := fromPlain(item)
			if err != nil {
				return nil, fmt.Errorf("map[%q]: %w", k, err)
			}
			out[k] = conv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported JSON value %T", raw)
	}
}
