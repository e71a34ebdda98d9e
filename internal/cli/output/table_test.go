package output

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"
)

type row struct {
	ID     string   `yaml:"id"`
	Type   string   `json:"type"`
	Attrs  []string `yaml:"attributes"`
	Detail string   `table:"wide"`
	Secret string   `table:"-"`
}

func render(t *testing.T, f *TableFormatter, data any) string {
	t.Helper()
	var buf bytes.Buffer
	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	return buf.String()
}

func TestTableFormatter_Table(t *testing.T) {
	table := &Table{Headers: []string{"NAME", "VALUE"}, Rows: [][]string{{"key1", "value1"}}}

	out := render(t, &TableFormatter{}, table)
	if out != "NAME  VALUE\nkey1  value1\n" {
		t.Errorf("Format() = %q", out)
	}
	out = render(t, &TableFormatter{NoHeaders: true}, *table)
	if out != "key1  value1\n" {
		t.Errorf("Format(NoHeaders) = %q", out)
	}
}

func TestTableFormatter_Slice(t *testing.T) {
	rows := []row{{ID: "01J", Type: "MDSnapshot", Attrs: []string{"coordinates", "velocities"}, Detail: "d", Secret: "s"}}

	out := render(t, &TableFormatter{}, rows)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("Format() lines = %q", lines)
	}
	if got := strings.Fields(lines[0]); !reflect.DeepEqual(got, []string{"ID", "TYPE", "ATTRIBUTES"}) {
		t.Errorf("headers = %v", got)
	}
	if !strings.Contains(lines[1], "coordinates,velocities") {
		t.Errorf("row = %q", lines[1])
	}

	wide := render(t, &TableFormatter{Wide: true}, []*row{&rows[0]})
	if !strings.Contains(wide, "DETAIL") {
		t.Errorf("wide output missing DETAIL: %q", wide)
	}
}

func TestTableFormatter_MapSorted(t *testing.T) {
	out := render(t, &TableFormatter{}, map[string]int{"b": 2, "a": 1})
	if out != "KEY  VALUE\na    1\nb    2\n" {
		t.Errorf("Format() = %q", out)
	}
}

func TestTableFormatter_Struct(t *testing.T) {
	out := render(t, &TableFormatter{}, &row{ID: "x"})
	if !strings.Contains(out, "id") || !strings.Contains(out, "type") {
		t.Errorf("Format() = %q", out)
	}
}

func TestTableFormatter_Scalar(t *testing.T) {
	if out := render(t, &TableFormatter{}, 42); out != "42\n" {
		t.Errorf("Format(42) = %q", out)
	}
	if out := render(t, &TableFormatter{}, nil); out != "" {
		t.Errorf("Format(nil) = %q", out)
	}
}

func TestTable_WideRunes(t *testing.T) {
	table := &Table{Headers: []string{"N", "V"}, Rows: [][]string{{"水分子", "1"}, {"ab", "2"}}}
	var buf bytes.Buffer
	if err := table.Render(&buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(buf.String(), "\n")
	// "水分子" is six columns wide, so every V lands in column 8.
	if lines[1] != "水分子  1" || lines[2] != "ab      2" {
		t.Errorf("Render() = %q", buf.String())
	}
}

func TestFormatValue(t *testing.T) {
	s := "x"
	var nilPtr *string
	tests := []struct {
		in   any
		want string
	}{
		{"", "-"},
		{"abc", "abc"},
		{int64(-3), "-3"},
		{uint8(7), "7"},
		{1.5, "1.5"},
		{true, "true"},
		{[]float64{1, 2, 3}, "[3 items]"},
		{[]string{}, "-"},
		{map[string]int{"a": 1}, "{1 keys}"},
		{&s, "x"},
		{nilPtr, "-"},
		{time.Time{}, "-"},
		{time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), "2026-01-02 03:04:05"},
		{time.Second, "1s"},
	}
	for _, tt := range tests {
		if got := formatValue(reflect.ValueOf(tt.in)); got != tt.want {
			t.Errorf("formatValue(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := formatValue(reflect.Value{}); got != "" {
		t.Errorf("formatValue(invalid) = %q", got)
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{"ID": "i_d", "StoredAt": "stored_at", "name": "name"}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
