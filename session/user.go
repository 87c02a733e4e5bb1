package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an identifier the backend sends either as a JSON number or a JSON string.
// Integer-looking values marshal back as numbers.
type ID string

// String returns the identifier as text.
func (id ID) String() string {
	return string(id)
}

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("session: id must be a string or number: %w", err)
		}
		*id = ID(n.String())
	}
	return nil
}

// MarshalJSON writes integer-looking ids as numbers, others as strings, empty as null.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// User is the profile cached alongside the tokens. It is display data, not an
// authorization source. Fields the client does not model are kept in Extra and written
// back unchanged.
type User struct {
	ID       ID
	Email    string
	FullName string
	RoleID   ID
	Extra    map[string]json.RawMessage
}

var userKnownFields = [...]string{"id", "email", "full_name", "role_id"}

// UnmarshalJSON decodes a backend user object.
func (u *User) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("session: user must be an object")
	}

	var out User
	if raw, ok := fields["id"]; ok {
		if err := out.ID.UnmarshalJSON(raw); err != nil {
			return err
		}
	}
	if raw, ok := fields["role_id"]; ok {
		if err := out.RoleID.UnmarshalJSON(raw); err != nil {
			return err
		}
	}
	if err := decodeOptionalString(fields, "email", &out.Email); err != nil {
		return err
	}
	if err := decodeOptionalString(fields, "full_name", &out.FullName); err != nil {
		return err
	}

	for _, name := range userKnownFields {
		delete(fields, name)
	}
	if len(fields) > 0 {
		out.Extra = fields
	}
	*u = out
	return nil
}

// MarshalJSON encodes the user with its extra fields.
func (u User) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(u.Extra)+len(userKnownFields))
	for k, v := range u.Extra {
		out[k] = v
	}

	id, err := u.ID.MarshalJSON()
	if err != nil {
		return nil, err
	}
	out["id"] = id
	if u.Email != "" {
		out["email"], _ = json.Marshal(u.Email)
	}
	if u.FullName != "" {
		out["full_name"], _ = json.Marshal(u.FullName)
	}
	if u.RoleID != "" {
		out["role_id"], _ = u.RoleID.MarshalJSON()
	}
	return json.Marshal(out)
}

// Clone returns a deep copy; nil stays nil.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(u.Extra))
		for k, v := range u.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &out
}

// ParseUser decodes a user object. A null or empty document yields nil.
func ParseUser(raw json.RawMessage) (*User, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var u User
	if err := json.Unmarshal(trimmed, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func decodeOptionalString(fields map[string]json.RawMessage, name string, dst *string) error {
	raw, ok := fields[name]
	if !ok {
		return nil
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("session: user field %q: %w", name, err)
	}
	if s != nil {
		*dst = *s
	}
	return nil
}
