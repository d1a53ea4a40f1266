package patterns

import (
	"testing"

	"github.com/velamed/velamed/internal/phi"
)

func matcherByName(t *testing.T, name string) *Matcher {
	t.Helper()
	for _, m := range Library() {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf("matcher %q not in library", name)
	return nil
}

func TestLibraryOrderIsStable(t *testing.T) {
	a := Library()
	b := Library()
	if len(a) != len(b) {
		t.Fatalf("library size changed between calls: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			t.Fatalf("library order changed at %d: %q vs %q", i, a[i].Name, b[i].Name)
		}
	}
}

func TestMatcherHits(t *testing.T) {
	tests := []struct {
		matcher string
		text    string
		want    string
	}{
		{"curp", "CURP GOGM850312MDFNRR08 registrada", "GOGM850312MDFNRR08"},
		{"cpf", "CPF 123.456.789-09 do paciente", "123.456.789-09"},
		{"ssn", "SSN 123-45-6789 on file", "123-45-6789"},
		{"email", "correo maria.gonzalez@example.mx aqui", "maria.gonzalez@example.mx"},
		{"url", "ver https://portal.example.mx/resultados hoy", "https://portal.example.mx/resultados"},
		{"ipv4", "acceso desde 192.168.1.100 ayer", "192.168.1.100"},
		{"mrn", "expediente MRN-2024-8756 activo", "MRN-2024-8756"},
		{"cep", "CEP 01310-100 centro", "01310-100"},
		{"date_numeric", "nació el 12/03/1985 en", "12/03/1985"},
		{"date_textual", "consulta el 12 de marzo de 2024 por", "12 de marzo de 2024"},
		{"phone", "llamar al +52 55 1234 5678 hoy", "+52 55 1234 5678"},
		{"clabe", "CLABE 002010077777777771 registrada", "002010077777777771"},
		{"photo_reference", "archivo IMG_20240312.jpg adjunto", "IMG_20240312.jpg"},
		{"vin", "VIN 1HGBH41JXMN109186 del vehículo", "1HGBH41JXMN109186"},
	}
	for _, tt := range tests {
		t.Run(tt.matcher, func(t *testing.T) {
			m := matcherByName(t, tt.matcher)
			got := m.Regexp().FindString(tt.text)
			if got != tt.want {
				t.Fatalf("%s: got %q, want %q", tt.matcher, got, tt.want)
			}
		})
	}
}

func TestMatcherValueGroups(t *testing.T) {
	tests := []struct {
		matcher string
		text    string
		want    string
	}{
		{"fax", "Fax: 55 5555 1234", "55 5555 1234"},
		{"mrn_labeled", "expediente: 2024-8756", "2024-8756"},
		{"postal_code_labeled", "C.P. 06700", "06700"},
		{"health_plan", "NSS: 12345678901", "12345678901"},
		{"account_labeled", "cuenta: 1234567890", "1234567890"},
		{"national_id_labeled", "DNI: 12345678X", "12345678X"},
		{"other_unique_id", "folio: AB-123456", "AB-123456"},
	}
	for _, tt := range tests {
		t.Run(tt.matcher, func(t *testing.T) {
			m := matcherByName(t, tt.matcher)
			if m.ValueGroup == 0 {
				t.Fatalf("%s: expected a value group", tt.matcher)
			}
			sub := m.Regexp().FindStringSubmatch(tt.text)
			if sub == nil {
				t.Fatalf("%s: no match in %q", tt.matcher, tt.text)
			}
			if got := sub[m.ValueGroup]; got != tt.want {
				t.Fatalf("%s: got %q, want %q", tt.matcher, got, tt.want)
			}
		})
	}
}

func TestPersonNameMatchesAccentedNames(t *testing.T) {
	m := matcherByName(t, "person_name")
	tests := []struct {
		text string
		want string
	}{
		{"La paciente María González García acudió", "María González García"},
		{"firmado por Dr. João dos Santos", "Dr. João dos Santos"},
		{"atendida por la Dra. Ana de la Cruz", "Dra. Ana de la Cruz"},
	}
	for _, tt := range tests {
		got := m.Regexp().FindString(tt.text)
		if got != tt.want {
			t.Fatalf("person_name on %q: got %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestPersonNameSkipsSingleWords(t *testing.T) {
	m := matcherByName(t, "person_name")
	if got := m.Regexp().FindString("Paciente estable sin cambios"); got != "" {
		t.Fatalf("person_name matched non-name text: %q", got)
	}
}

func TestIPv6DoesNotMatchClockTimes(t *testing.T) {
	m := matcherByName(t, "ipv6")
	if got := m.Regexp().FindString("cita a las 12:30:45 hrs"); got != "" {
		t.Fatalf("ipv6 matched a clock time: %q", got)
	}
	if got := m.Regexp().FindString("desde 2001:0db8:85a3:0000:0000:8a2e:0370:7334 ayer"); got == "" {
		t.Fatal("ipv6 missed a full address")
	}
}

func TestTokensDoNotRematch(t *testing.T) {
	// A de-identified document must be a fixed point of the library.
	redacted := "Paciente [NAME_1], tel [PHONE_1], CURP [NATIONAL_ID_1], expediente [MEDICAL_RECORD_1]."
	for _, m := range Library() {
		if got := m.Regexp().FindString(redacted); got != "" {
			t.Fatalf("matcher %s re-matched redacted text: %q", m.Name, got)
		}
	}
}

func TestCategoriesAreValid(t *testing.T) {
	for _, m := range Library() {
		if !phi.Valid(m.Category) {
			t.Fatalf("matcher %s has invalid category %q", m.Name, m.Category)
		}
		if m.BaseConfidence <= 0 || m.BaseConfidence > 1 {
			t.Fatalf("matcher %s has out-of-range confidence %v", m.Name, m.BaseConfidence)
		}
	}
}
