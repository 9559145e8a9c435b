package portal

import "testing"

func TestInspectHTMLDetectsLoginPages(t *testing.T) {
	cases := []struct {
		name string
		html string
		want bool
	}{
		{"portal title", `<html><head><title>UrbOnLine - PMB</title></head><body></body></html>`, true},
		{"password field", `<html><body><form><input type="password" name="p"></form></body></html>`, true},
		{"login action", `<html><body><form action="/Account/Login"><input name="u"></form></body></html>`, true},
		{"maintenance page", `<html><head><title>Maintenance</title></head><body><form action="/search"></form></body></html>`, false},
	}
	for _, tc := range cases {
		if got := inspectHTML([]byte(tc.html)).isLoginPage(); got != tc.want {
			t.Fatalf("%s: isLoginPage() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestInspectHTMLTitle(t *testing.T) {
	page := inspectHTML([]byte("<title>  Harta urbanistica </title>"))
	if page.Title != "Harta urbanistica" {
		t.Fatalf("unexpected title: %q", page.Title)
	}
}
