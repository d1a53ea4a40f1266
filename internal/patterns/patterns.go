// Package patterns is the identifier pattern library: a flat, ordered list of
// independent matchers covering the HIPAA Safe Harbor categories for Spanish
// and Portuguese clinical text. All regex definitions live here so matchers
// can be added, removed, and tested in isolation.
package patterns

import (
	"regexp"

	"github.com/velamed/velamed/internal/phi"
)

// Matcher is one declarative pattern. Priority breaks resolution ties:
// specific formats (CURP, VIN, EMAIL) outrank generic numeric matchers so
// overlap resolution prefers the specific category. ValueGroup selects the
// capture group that holds the identifier itself when the pattern needs a
// leading label to disambiguate; 0 means the whole match.
type Matcher struct {
	Name           string
	Category       phi.Category
	Priority       int
	BaseConfidence float64
	ValueGroup     int

	re *regexp.Regexp
}

// Regexp exposes the compiled pattern.
func (m *Matcher) Regexp() *regexp.Regexp { return m.re }

// Character classes for es/pt names. Go's \b is ASCII-only, so name patterns
// anchor on their capitalized shape instead of word boundaries.
const (
	upper = `A-ZÁÉÍÓÚÜÑÃÕÂÊÎÔÛÀÇ`
	lower = `a-záéíóúüñãõâêîôûàç`
)

var nameWord = `[` + upper + `][` + lower + `]+`

// Library returns the full matcher set in evaluation order. The order is
// fixed: detection iterates it sequentially so identical input always yields
// an identical candidate set.
func Library() []*Matcher {
	return []*Matcher{
		// National identity numbers. Most specific formats in the corpus,
		// so they carry the highest priority.
		{
			Name:           "curp",
			Category:       phi.CategoryNationalID,
			Priority:       100,
			BaseConfidence: 0.98,
			re:             regexp.MustCompile(`\b[A-Z]{4}\d{6}[HM][A-Z]{5}[A-Z0-9]\d\b`),
		},
		{
			Name:           "cpf",
			Category:       phi.CategoryNationalID,
			Priority:       98,
			BaseConfidence: 0.95,
			re:             regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{3}-\d{2}\b`),
		},
		{
			Name:           "ssn",
			Category:       phi.CategoryNationalID,
			Priority:       96,
			BaseConfidence: 0.9,
			re:             regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		},
		{
			Name:           "national_id_labeled",
			Category:       phi.CategoryNationalID,
			Priority:       95,
			BaseConfidence: 0.85,
			ValueGroup:     1,
			re:             regexp.MustCompile(`(?i)\b(?:CURP|CPF|RFC|DNI)\s*[:#.]?\s*([A-Z0-9][A-Z0-9.-]{7,19})`),
		},

		// Vehicle identifiers. A VIN never uses I, O or Q.
		{
			Name:           "vin",
			Category:       phi.CategoryVehicleID,
			Priority:       94,
			BaseConfidence: 0.9,
			re:             regexp.MustCompile(`\b[A-HJ-NPR-Z0-9]{11}\d{6}\b`),
		},
		{
			Name:           "license_plate",
			Category:       phi.CategoryVehicleID,
			Priority:       80,
			BaseConfidence: 0.8,
			ValueGroup:     1,
			re:             regexp.MustCompile(`(?i)\b(?:placas?|matr[íi]cula)\s*[:#.]?\s*([A-Z]{2,3}-?\d{2,4}-?[A-Z0-9]{0,3})\b`),
		},

		{
			Name:           "email",
			Category:       phi.CategoryEmail,
			Priority:       92,
			BaseConfidence: 0.95,
			re:             regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
		},
		{
			Name:           "url",
			Category:       phi.CategoryURL,
			Priority:       90,
			BaseConfidence: 0.9,
			re:             regexp.MustCompile(`\bhttps?://[^\s"'<>]+|\bwww\.[^\s"'<>]+`),
		},
		{
			Name:           "ipv4",
			Category:       phi.CategoryIPAddress,
			Priority:       90,
			BaseConfidence: 0.9,
			re:             regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\b`),
		},
		{
			Name:           "ipv6",
			Category:       phi.CategoryIPAddress,
			Priority:       90,
			BaseConfidence: 0.85,
			re:             regexp.MustCompile(`\b(?:[0-9A-Fa-f]{1,4}:){4,7}[0-9A-Fa-f]{1,4}\b`),
		},

		// Medical record numbers: explicit MRN form plus the labeled es/pt
		// variants (expediente, historia clínica, prontuário).
		{
			Name:           "mrn",
			Category:       phi.CategoryMedicalRecord,
			Priority:       88,
			BaseConfidence: 0.95,
			re:             regexp.MustCompile(`\bMRN-?\d{2,4}-?\d{3,8}\b`),
		},
		{
			Name:           "mrn_labeled",
			Category:       phi.CategoryMedicalRecord,
			Priority:       86,
			BaseConfidence: 0.85,
			ValueGroup:     1,
			re:             regexp.MustCompile(`(?i)\b(?:NHC|expediente|exp|historia\s+cl[íi]nica|prontu[áa]rio)\s*(?:[:#.-]\s*|\s)([A-Z0-9][A-Z0-9-]{3,19})\b`),
		},

		{
			Name:           "postal_code_labeled",
			Category:       phi.CategoryPostalCode,
			Priority:       84,
			BaseConfidence: 0.9,
			ValueGroup:     1,
			re:             regexp.MustCompile(`\b(?:C\.?\s?P\.?|CEP)\s*[:.]?\s*(\d{5}(?:-?\d{3})?)\b`),
		},
		{
			Name:           "cep",
			Category:       phi.CategoryPostalCode,
			Priority:       82,
			BaseConfidence: 0.8,
			re:             regexp.MustCompile(`\b\d{5}-\d{3}\b`),
		},

		// Dates: numeric dd/mm/yyyy and ISO, plus textual es/pt months.
		{
			Name:           "date_numeric",
			Category:       phi.CategoryDate,
			Priority:       78,
			BaseConfidence: 0.85,
			re:             regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b|\b\d{4}-\d{2}-\d{2}\b`),
		},
		{
			Name:           "date_textual",
			Category:       phi.CategoryDate,
			Priority:       78,
			BaseConfidence: 0.9,
			re: regexp.MustCompile(`(?i)\b\d{1,2}\s+de\s+(?:enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|octubre|noviembre|diciembre|janeiro|fevereiro|mar[çc]o|maio|junho|julho|setembro|outubro|novembro|dezembro)(?:\s+de\s+\d{4})?\b`),
		},

		// Fax before phone: same number shape, but the fax label wins the
		// overlap so labeled fax lines resolve to FAX.
		{
			Name:           "fax",
			Category:       phi.CategoryFax,
			Priority:       76,
			BaseConfidence: 0.9,
			ValueGroup:     1,
			re:             regexp.MustCompile(`(?i)\b(?:tele)?fax\s*[:.]?\s*((?:\+\d{1,3}[ .-]?)?(?:\(\d{2,3}\)[ .-]?|\d{2,3}[ .-])?\d{3,4}[ .-]?\d{4})\b`),
		},
		{
			Name:           "phone",
			Category:       phi.CategoryPhone,
			Priority:       72,
			BaseConfidence: 0.8,
			re:             regexp.MustCompile(`(?:\+\d{1,3}[ .-]?)?(?:\(\d{2,3}\)[ .-]?|\b\d{2,3}[ .-])\d{3,4}[ .-]\d{4}\b`),
		},

		// Health plan ids: NSS and labeled affiliation/policy numbers.
		{
			Name:           "health_plan",
			Category:       phi.CategoryHealthPlanID,
			Priority:       70,
			BaseConfidence: 0.85,
			ValueGroup:     1,
			re:             regexp.MustCompile(`(?i)\b(?:NSS|n[úu]mero\s+de\s+afiliaci[óo]n|afiliaci[óo]n|p[óo]liza|IMSS|ISSSTE|carn[êe]|SUS)\s*[:#.]?\s*(\d[\d -]{6,14}\d)\b`),
		},

		// Account numbers: CLABE (18 digits) and labeled accounts/invoices.
		{
			Name:           "clabe",
			Category:       phi.CategoryAccountNumber,
			Priority:       68,
			BaseConfidence: 0.85,
			re:             regexp.MustCompile(`\b\d{18}\b`),
		},
		{
			Name:           "account_labeled",
			Category:       phi.CategoryAccountNumber,
			Priority:       66,
			BaseConfidence: 0.8,
			ValueGroup:     1,
			re:             regexp.MustCompile(`(?i)\b(?:cuenta|cta|factura|conta|CLABE)\s*[:#.]?\s*(\d[\d -]{5,20}\d)\b`),
		},

		{
			Name:           "certificate_license",
			Category:       phi.CategoryCertificateLicense,
			Priority:       64,
			BaseConfidence: 0.85,
			ValueGroup:     1,
			re:             regexp.MustCompile(`(?i)\b(?:c[ée]dula(?:\s+profesional)?|CRM|licencia|licen[çc]a|registro\s+sanitario)\s*[:#.]?\s*([A-Z0-9][A-Z0-9/-]{4,14})\b`),
		},

		{
			Name:           "device_id",
			Category:       phi.CategoryDeviceID,
			Priority:       62,
			BaseConfidence: 0.85,
			ValueGroup:     1,
			re:             regexp.MustCompile(`(?i)\b(?:n[úu]mero\s+de\s+s[ée]rie|serie|serial|S/N|UDI|IMEI)\s*[:#.]?\s*([A-Z0-9][A-Z0-9-]{5,24})\b`),
		},

		{
			Name:           "biometric_id",
			Category:       phi.CategoryBiometricID,
			Priority:       60,
			BaseConfidence: 0.85,
			ValueGroup:     1,
			re:             regexp.MustCompile(`(?i)\b(?:huella(?:\s+digital)?|biometr[íi]a|biom[ée]trico)\s*(?:ID)?\s*[:#.]?\s*([A-Z0-9][A-Z0-9-]{5,24})\b`),
		},

		{
			Name:           "photo_reference",
			Category:       phi.CategoryPhotoReference,
			Priority:       60,
			BaseConfidence: 0.85,
			re:             regexp.MustCompile(`(?i)\b(?:IMG|DSC|foto|imagen|imagem)[-_]?\d{2,8}\.(?:jpe?g|png|heic|dcm)\b`),
		},

		// Street addresses and geographic subdivisions. Label-driven; the
		// value runs to the next delimiter.
		{
			Name:           "address",
			Category:       phi.CategoryAddress,
			Priority:       56,
			BaseConfidence: 0.75,
			re:             regexp.MustCompile(`\b(?:[Cc]alle|[Aa]v\.|[Aa]venida|[Rr]ua|[Cc]alzada|[Cc]alz\.|[Bb]lvd\.?|[Bb]oulevard|[Pp]aseo|[Tt]ravessa)\s+[^\n,;]{3,60}`),
		},
		{
			Name:           "geographic",
			Category:       phi.CategoryGeographic,
			Priority:       52,
			BaseConfidence: 0.7,
			ValueGroup:     1,
			re: regexp.MustCompile(`\b(?:[Cc]olonia|[Cc]ol\.|[Mm]unicipio|[Dd]elegaci[óo]n|[Aa]lcald[íi]a|[Bb]airro|[Cc]iudad\s+de|[Cc]idade\s+de)\s+(` + nameWord + `(?:\s+` + nameWord + `){0,3})`),
		},

		// Person names: two to four capitalized words, optional honorific,
		// es/pt particles between surnames. Lowest-confidence broad matcher;
		// context boosters (paciente:, nombre:, Dr.) raise it.
		{
			Name:           "person_name",
			Category:       phi.CategoryName,
			Priority:       48,
			BaseConfidence: 0.55,
			re: regexp.MustCompile(`(?:(?:Dr|Dra|Sr|Sra|Lic|Enf)\.?\s+)?` + nameWord +
				`(?:\s+(?:de(?:\s+l[ao]s?)?|del|da|das|do|dos|e|y)\s+` + nameWord + `|\s+` + nameWord + `){1,3}`),
		},

		// Catch-all labeled identifiers. Lowest priority so every specific
		// category wins on overlap.
		{
			Name:           "other_unique_id",
			Category:       phi.CategoryOtherUniqueID,
			Priority:       10,
			BaseConfidence: 0.6,
			ValueGroup:     1,
			re:             regexp.MustCompile(`(?i)\b(?:folio|registro|identificador|ID)\s*[:#.]\s*([A-Z0-9][A-Z0-9-]{5,24})\b`),
		},
	}
}
