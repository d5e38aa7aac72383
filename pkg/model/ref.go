package model

import (
	"bytes"
	"encoding/json"
)

// decodeRef decodes a reference that Angles returns either populated or as
// a bare id string. A bare id calls setID instead of decoding into v.
func decodeRef(data []byte, v any, setID func(id string)) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return json.Unmarshal(data, v)
	}

	var id string
	if err := json.Unmarshal(trimmed, &id); err != nil {
		return err
	}

	setID(id)

	return nil
}

func (t *Team) UnmarshalJSON(data []byte) error {
	type plain Team

	return decodeRef(data, (*plain)(t), func(id string) { *t = Team{ID: Some(id)} })
}

func (e *Environment) UnmarshalJSON(data []byte) error {
	type plain Environment

	return decodeRef(data, (*plain)(e), func(id string) { *e = Environment{ID: Some(id)} })
}

func (b *Build) UnmarshalJSON(data []byte) error {
	type plain Build

	return decodeRef(data, (*plain)(b), func(id string) { *b = Build{ID: Some(id)} })
}

func (s *Screenshot) UnmarshalJSON(data []byte) error {
	type plain Screenshot

	return decodeRef(data, (*plain)(s), func(id string) { *s = Screenshot{ID: Some(id)} })
}
