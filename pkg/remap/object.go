package remap

import (
	"bytes"
	"encoding/json"
	"errors"
)

var errNotObject = errors.New("not a JSON object")

// object is a JSON object that keeps its key order and the raw bytes of
// every value, so untouched members are written back exactly as read.
type object struct {
	keys   []string
	values map[string]json.RawMessage
}

func parseObject(raw []byte) (*object, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errNotObject
	}

	o := &object{values: map[string]json.RawMessage{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errNotObject
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		if _, seen := o.values[key]; !seen {
			o.keys = append(o.keys, key)
		}
		o.values[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *object) has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// str returns the member as a string, or "" when it is absent or not a string.
func (o *object) str(key string) string {
	raw, ok := o.values[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func (o *object) setStr(key, value string) error {
	raw, err := encode(value)
	if err != nil {
		return err
	}
	o.set(key, raw)
	return nil
}

func (o *object) set(key string, raw json.RawMessage) {
	if !o.has(key) {
		o.keys = append(o.keys, key)
	}
	o.values[key] = raw
}

func (o *object) child(key string) *object {
	raw, ok := o.values[key]
	if !ok {
		return nil
	}
	child, err := parseObject(raw)
	if err != nil {
		return nil
	}
	return child
}

func (o *object) setChild(key string, child *object) error {
	raw, err := child.MarshalJSON()
	if err != nil {
		return err
	}
	o.set(key, raw)
	return nil
}

// rename moves a member to a new key in place. It reports false and leaves
// the object alone when another member already holds the new key.
func (o *object) rename(from, to string) bool {
	if from == to {
		return true
	}
	if !o.has(from) || o.has(to) {
		return false
	}
	value := o.values[from]
	delete(o.values, from)
	for i, key := range o.keys {
		if key == from {
			o.keys[i] = to
			break
		}
	}
	o.values[to] = value
	return true
}

func (o *object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := encode(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(o.values[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func parseArray(raw []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func marshalArray(items []json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(item)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

// encode marshals without HTML escaping so "<", ">" and "&" survive as written.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
