package form

import "testing"

func TestFieldName(t *testing.T) {
	cases := []struct {
		label string
		want  string
	}{
		{"Country", "country"},
		{"First Name", "first_name"},
		{"  E-mail address!  ", "e_mail_address"},
		{"Çà va?", "ca_va"},
		{"Prénom", "prenom"},
		{"Straße", "strasse"},
		{"Ærø Ø", "aero_o"},
		{"日本語", "field_abc"},
		{"Phone #2", "phone_2"},
		{"___", "field_abc"},
		{"", "field_abc"},
	}
	for _, tc := range cases {
		e := Element{ID: "abc", Type: TypeText, Properties: Properties{Label: tc.label}}
		if got := FieldName(e); got != tc.want {
			t.Fatalf("FieldName(%q) = %q, want %q", tc.label, got, tc.want)
		}
	}
}

func TestFieldNameSelectRelabel(t *testing.T) {
	e, _ := NewElement(TypeSelect, "el-42")
	e.Properties.Label = "Country"

	if got := FieldName(e); got != "country" {
		t.Fatalf("FieldName = %q, want country", got)
	}
	if FieldName(e) != FieldName(e) {
		t.Fatal("FieldName not deterministic")
	}

	e.Properties.Label = ""
	if got := FieldName(e); got != "field_el-42" {
		t.Fatalf("FieldName after relabel = %q", got)
	}
}
