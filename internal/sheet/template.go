package sheet

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Field names one semantic column the CRM cares about.
type Field string

const (
	FieldCreatedTime  Field = "created_time"
	FieldFullName     Field = "full_name"
	FieldPhone        Field = "phone_number"
	FieldEmail        Field = "email"
	FieldState        Field = "state"
	FieldCategory     Field = "category"
	FieldBusinessType Field = "business_type"
	FieldAssignedTo   Field = "assigned_to"
)

// Fields lists the semantic fields in resolution order.
var Fields = []Field{
	FieldCreatedTime, FieldFullName, FieldPhone, FieldEmail,
	FieldState, FieldCategory, FieldBusinessType, FieldAssignedTo,
}

// Rule describes how to find one semantic field in a header row. Synonyms are
// case-insensitive substring matches in priority order; Literals are exact
// substring matches kept case-sensitive for non-Latin script headers.
type Rule struct {
	Synonyms []string `yaml:"synonyms,omitempty"`
	Literals []string `yaml:"literals,omitempty"`
}

// Template is the declarative per-sheet header-matching configuration.
type Template struct {
	Fields map[Field]Rule `yaml:"fields"`
}

// DefaultTemplate returns the rules for the known campaign sheets, including
// the Telugu-script category and business-type header fragments those sheets
// use.
func DefaultTemplate() Template {
	return Template{Fields: map[Field]Rule{
		FieldCreatedTime:  {Synonyms: []string{"created time", "created_time", "createdtime", "timestamp"}},
		FieldFullName:     {Synonyms: []string{"full name", "full_name", "fullname", "name"}},
		FieldPhone:        {Synonyms: []string{"phone number", "phone_number", "phone", "mobile", "contact"}},
		FieldEmail:        {Synonyms: []string{"email", "e-mail", "mail"}},
		FieldState:        {Synonyms: []string{"state", "location", "city", "region"}},
		FieldCategory:     {Synonyms: []string{"category"}, Literals: []string{"వర్గం", "కేటగిరీ"}},
		FieldBusinessType: {Synonyms: []string{"business type", "business_type"}, Literals: []string{"వ్యాపార", "బిజినెస్"}},
		FieldAssignedTo:   {Synonyms: []string{"assigned to", "assigned_to", "assignee", "owner"}},
	}}
}

// Templates maps a sheet source name to its header template. Sheets without
// an entry use the default template.
type Templates map[string]Template

// ForSheet returns the template for a sheet source, falling back to the
// default rules for unknown sheets and for fields a template leaves unset.
func (ts Templates) ForSheet(source string) Template {
	base := DefaultTemplate()
	custom, ok := ts[source]
	if !ok {
		return base
	}
	for f, rule := range custom.Fields {
		base.Fields[f] = rule
	}
	return base
}

// LoadTemplates reads per-sheet template overrides from a YAML file. A
// missing path is not an error; it just means every sheet uses the defaults.
func LoadTemplates(path string) (Templates, error) {
	if path == "" {
		return Templates{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Templates{}, nil
		}
		return nil, eris.Wrapf(err, "sheet: read templates %s", path)
	}

	var ts Templates
	if err := yaml.Unmarshal(data, &ts); err != nil {
		return nil, eris.Wrapf(err, "sheet: parse templates %s", path)
	}
	return ts, nil
}
