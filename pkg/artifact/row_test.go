package artifact

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestRow_FieldsMatchHeader(t *testing.T) {
	fields := sampleRow("99", "text").Fields()
	if len(fields) != len(Header) {
		t.Fatalf("len(Fields()) = %d, want %d", len(fields), len(Header))
	}
	if fields[idColumn] != "99" {
		t.Errorf("Fields()[%d] = %q, want the record id", idColumn, fields[idColumn])
	}
	if Header[idColumn] != "id" {
		t.Errorf("Header[%d] = %q, want \"id\"", idColumn, Header[idColumn])
	}
}

func TestWrittenIDs(t *testing.T) {
	header := strings.Join(Header, ",") + "\n"

	tests := []struct {
		name    string
		content *string
		want    []string
	}{
		{
			name:    "missing file",
			content: nil,
			want:    nil,
		},
		{
			name:    "empty file",
			content: ptr(""),
			want:    nil,
		},
		{
			name:    "header only",
			content: ptr(header),
			want:    nil,
		},
		{
			name:    "two rows",
			content: ptr(header + "1,2,a,10,t,en,false,7,A,a\n1,2,b,11,t,en,false,7,A,a\n"),
			want:    []string{"10", "11"},
		},
		{
			name:    "short and empty-id rows are ignored",
			content: ptr(header + "1,2,a,10\n1,2,b,,t,en,false,7,A,a\n1,2,c,12,t,en,false,7,A,a\n"),
			want:    []string{"12"},
		},
		{
			name:    "torn final row is not counted",
			content: ptr(header + "1,2,a,10,t,en,false,7,A,a\n1,2,b,11,t,en,false,7,A,ann"),
			want:    []string{"10"},
		},
		{
			name:    "malformed row is skipped, later rows count",
			content: ptr(header + "1,2,a,10,t,en,false,7,A,a\n1,2,b\"x,11,t,en,false,7,A,a\n1,2,c,12,t,en,false,7,A,a\n"),
			want:    []string{"10", "12"},
		},
		{
			name:    "first line is not the header",
			content: ptr("1,2,a,10,t,en,false,7,A,a\n1,2,b,11,t,en,false,7,A,a\n"),
			want:    nil,
		},
		{
			name:    "garbage",
			content: ptr("\"\"\"not csv"),
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "b.csv.partial")
			if tt.content != nil {
				writeFile(t, path, *tt.content)
			}

			ids, err := WrittenIDs(path)
			if err != nil {
				t.Fatalf("WrittenIDs() error = %v", err)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("WrittenIDs() = %v, want %v", ids, tt.want)
			}
			for _, id := range tt.want {
				if _, ok := ids[id]; !ok {
					t.Errorf("WrittenIDs() missing %q", id)
				}
			}
		})
	}
}

func ptr(s string) *string { return &s }
