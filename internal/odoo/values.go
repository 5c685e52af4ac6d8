package odoo

import "github.com/goccy/go-json"

// Odoo encodes empty fields as false and relations as [id, "label"]. The
// types below decode leniently: a value of an unexpected shape becomes the
// zero value instead of failing the whole record.

// Text is a char, text, selection or datetime field.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*t = ""
		return nil
	}
	*t = Text(s)
	return nil
}

func (t Text) String() string { return string(t) }

// Many2One is a relation rendered as [id, "display name"].
type Many2One struct {
	ID   int64
	Name string
}

func (m *Many2One) UnmarshalJSON(b []byte) error {
	*m = Many2One{}
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil || len(parts) == 0 {
		return nil
	}
	var id int64
	if err := json.Unmarshal(parts[0], &id); err != nil {
		return nil
	}
	m.ID = id
	if len(parts) > 1 {
		var name string
		if err := json.Unmarshal(parts[1], &name); err == nil {
			m.Name = name
		}
	}
	return nil
}

// Valid reports whether the relation is set.
func (m Many2One) Valid() bool { return m.ID != 0 }

// IDs is a one2many or many2many field.
type IDs []int64

func (ids *IDs) UnmarshalJSON(b []byte) error {
	var out []int64
	if err := json.Unmarshal(b, &out); err != nil {
		*ids = nil
		return nil
	}
	*ids = out
	return nil
}

// Int is an integer field that may come back as false.
type Int int64

func (i *Int) UnmarshalJSON(b []byte) error {
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		*i = 0
		return nil
	}
	*i = Int(n)
	return nil
}
