package extract

import "testing"

func TestParseMIMEType(t *testing.T) {
	cases := []struct {
		contentType string
		want        MIMEType
		ok          bool
	}{
		{"text/plain", MIMEPlainText, true},
		{"application/pdf", MIMEPDF, true},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", MIMEDocx, true},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", MIMEXlsx, true},
		{"application/vnd.openxmlformats-officedocument.presentationml.presentation", MIMEPptx, true},
		{"image/png", MIMEUnknown, false},
		{"application/msword", MIMEUnknown, false},
		{"text/plain; charset=utf-8", MIMEUnknown, false},
		{"", MIMEUnknown, false},
	}
	for _, tc := range cases {
		got, ok := ParseMIMEType(tc.contentType)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseMIMEType(%q) = (%v, %v), want (%v, %v)", tc.contentType, got, ok, tc.want, tc.ok)
		}
	}
}

func TestMIMETypeStringRoundTrip(t *testing.T) {
	for _, m := range []MIMEType{MIMEPlainText, MIMEPDF, MIMEDocx, MIMEXlsx, MIMEPptx} {
		parsed, ok := ParseMIMEType(m.String())
		if !ok || parsed != m {
			t.Errorf("ParseMIMEType(%q) = (%v, %v), want (%v, true)", m.String(), parsed, ok, m)
		}
	}
	if MIMEUnknown.String() != "unknown" {
		t.Errorf("MIMEUnknown.String() = %q", MIMEUnknown.String())
	}
}
