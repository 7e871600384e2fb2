package source

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"docmigrate/internal/model"

	"golang.org/x/text/unicode/norm"
)

// Mapping names the result column that feeds each Row field.
type Mapping struct {
	InputKey        string `json:"input_key,omitempty" yaml:"input_key,omitempty"`
	LineCode        string `json:"line_code,omitempty" yaml:"line_code,omitempty"`
	LineDescription string `json:"line_description,omitempty" yaml:"line_description,omitempty"`
	SkuCode         string `json:"sku_code,omitempty" yaml:"sku_code,omitempty"`
	SkuDescription  string `json:"sku_description,omitempty" yaml:"sku_description,omitempty"`
	ProcessDate     string `json:"process_date,omitempty" yaml:"process_date,omitempty"`
	LoadDate        string `json:"load_date,omitempty" yaml:"load_date,omitempty"`
	ProjectCode     string `json:"project_code,omitempty" yaml:"project_code,omitempty"`
	ProjectName     string `json:"project_name,omitempty" yaml:"project_name,omitempty"`
}

// DefaultMapping is the column layout of the sales extract.
func DefaultMapping() Mapping {
	return Mapping{
		InputKey:        "skuInput",
		LineCode:        "codLinea",
		LineDescription: "descripcionLinea",
		SkuCode:         "codSku",
		SkuDescription:  "nomSku",
		ProcessDate:     "processDate",
		LoadDate:        "loadDate",
		ProjectCode:     "codProyecto",
		ProjectName:     "nombreProyecto",
	}
}

// WithDefaults fills every empty field from DefaultMapping.
func (m Mapping) WithDefaults() Mapping {
	d := DefaultMapping()
	fill := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	fill(&m.InputKey, d.InputKey)
	fill(&m.LineCode, d.LineCode)
	fill(&m.LineDescription, d.LineDescription)
	fill(&m.SkuCode, d.SkuCode)
	fill(&m.SkuDescription, d.SkuDescription)
	fill(&m.ProcessDate, d.ProcessDate)
	fill(&m.LoadDate, d.LoadDate)
	fill(&m.ProjectCode, d.ProjectCode)
	fill(&m.ProjectName, d.ProjectName)
	return m
}

// Columns returns the mapped column names in Row field order.
func (m Mapping) Columns() []string {
	return []string{
		m.InputKey, m.LineCode, m.LineDescription, m.SkuCode, m.SkuDescription,
		m.ProcessDate, m.LoadDate, m.ProjectCode, m.ProjectName,
	}
}

// Row builds a model.Row by looking up each mapped column with get. Missing
// columns and NULLs become empty strings, except the input key which must be
// present and non-empty.
func (m Mapping) Row(get func(col string) (any, bool), normalize bool) (model.Row, error) {
	val := func(col string) string {
		v, ok := get(col)
		if !ok {
			return ""
		}
		s := Stringify(v)
		if normalize {
			s = strings.TrimSpace(norm.NFC.String(s))
		}
		return s
	}

	if _, ok := get(m.InputKey); !ok {
		return model.Row{}, fmt.Errorf("column %q not in result", m.InputKey)
	}
	r := model.Row{
		InputKey:        val(m.InputKey),
		LineCode:        val(m.LineCode),
		LineDescription: val(m.LineDescription),
		SkuCode:         val(m.SkuCode),
		SkuDescription:  val(m.SkuDescription),
		ProcessDate:     val(m.ProcessDate),
		LoadDate:        val(m.LoadDate),
		ProjectCode:     val(m.ProjectCode),
		ProjectName:     val(m.ProjectName),
	}
	if r.InputKey == "" {
		return model.Row{}, fmt.Errorf("empty value in key column %q", m.InputKey)
	}
	return r, nil
}

// Stringify renders a driver value as text. Dates without a time-of-day part
// render as YYYY-MM-DD.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.DateTime)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
