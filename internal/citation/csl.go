package citation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CSL is the subset of CSL-JSON the pipeline reads and writes.
type CSL struct {
	DOI             string          `json:"DOI,omitempty"`
	Type            string          `json:"type,omitempty"`
	Title           FlexString      `json:"title,omitempty"`
	ContainerTitle  FlexString      `json:"container-title,omitempty"`
	Publisher       string          `json:"publisher,omitempty"`
	Institution     json.RawMessage `json:"institution,omitempty"`
	URL             string          `json:"URL,omitempty"`
	Issued          *Date           `json:"issued,omitempty"`
	PublishedPrint  *Date           `json:"published-print,omitempty"`
	PublishedOnline *Date           `json:"published-online,omitempty"`
	Created         *Date           `json:"created,omitempty"`
	Deposited       *Date           `json:"deposited,omitempty"`
	Author          []Agent         `json:"author,omitempty"`
	ISSN            FlexList        `json:"ISSN,omitempty"`
	ISBN            FlexList        `json:"ISBN,omitempty"`
	Page            FlexString      `json:"page,omitempty"`
	Volume          FlexString      `json:"volume,omitempty"`
	Issue           FlexString      `json:"issue,omitempty"`
}

// Agent is a CSL name: a person or an organisation.
type Agent struct {
	Given   string `json:"given,omitempty"`
	Family  string `json:"family,omitempty"`
	Literal string `json:"literal,omitempty"`
	Name    string `json:"name,omitempty"`
	Full    string `json:"full,omitempty"`
}

// Display renders the agent as "Given Family", falling back to the
// literal or organisation name.
func (a Agent) Display() string {
	if a.Full != "" {
		return a.Full
	}
	if n := strings.TrimSpace(a.Given + " " + a.Family); n != "" {
		return n
	}
	if a.Literal != "" {
		return a.Literal
	}
	return a.Name
}

// Date is a CSL date with date-parts [[year, month, day]].
type Date struct {
	DateParts [][]DatePart `json:"date-parts,omitempty"`
}

// Parts returns the first date-parts row, or nil.
func (d *Date) Parts() []DatePart {
	if d == nil || len(d.DateParts) == 0 {
		return nil
	}
	return d.DateParts[0]
}

// DatePart is one date component. Providers send numbers, numeric strings
// or null.
type DatePart int

// UnmarshalJSON accepts numbers, numeric strings and null.
func (p *DatePart) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if s == "" {
		*p = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid date part %s", data)
		}
		n = int(f)
	}
	*p = DatePart(n)
	return nil
}

// FlexString decodes a string, a number, or the first element of a list.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*f = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	case data[0] == '[':
		var list []FlexString
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*f = ""
		if len(list) > 0 {
			*f = list[0]
		}
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = FlexString(n.String())
	}
	return nil
}

// String returns the plain string value.
func (f FlexString) String() string {
	return string(f)
}

// FlexList decodes either a single string or a list of strings.
type FlexList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *FlexList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = FlexList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*l = list
	return nil
}

// Year returns the first available year among issued, published-print,
// published-online, created and deposited, or 0.
func (c *CSL) Year() int {
	if c == nil {
		return 0
	}
	for _, d := range []*Date{c.Issued, c.PublishedPrint, c.PublishedOnline, c.Created, c.Deposited} {
		if parts := d.Parts(); len(parts) > 0 && parts[0] > 0 {
			return int(parts[0])
		}
	}
	return 0
}

// IssuedISO renders the issued date as YYYY-MM-DD with missing month and
// day defaulting to 01. Returns "" without an issued year.
func (c *CSL) IssuedISO() string {
	if c == nil {
		return ""
	}
	parts := c.Issued.Parts()
	if len(parts) == 0 || parts[0] <= 0 {
		return ""
	}
	month, day := 1, 1
	if len(parts) > 1 && parts[1] > 0 {
		month = int(parts[1])
	}
	if len(parts) > 2 && parts[2] > 0 {
		day = int(parts[2])
	}
	return fmt.Sprintf("%04d-%02d-%02d", int(parts[0]), month, day)
}

// InstitutionName returns the first institution name, whether the field
// holds a string, a list of strings or a list of {"name": ...} objects.
func (c *CSL) InstitutionName() string {
	if c == nil || len(c.Institution) == 0 {
		return ""
	}
	var s FlexString
	if err := json.Unmarshal(c.Institution, &s); err == nil && s != "" {
		return s.String()
	}
	var agents []Agent
	if err := json.Unmarshal(c.Institution, &agents); err == nil && len(agents) > 0 {
		return agents[0].Display()
	}
	return ""
}

// ParseCSL decodes CSL-JSON.
func ParseCSL(data []byte) (*CSL, error) {
	var c CSL
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
