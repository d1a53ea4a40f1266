package detect

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/velamed/velamed/internal/phi"
)

// contextWindow is how many bytes before a match are inspected for a
// category label such as "Tel:" or "CURP:".
const contextWindow = 24

var foldCaser = cases.Fold()

// categoryLabels maps each category to the labels that, when found just
// before a match, raise its confidence. Labels are stored case-folded.
var categoryLabels = map[phi.Category][]string{
	phi.CategoryName:          {"nombre", "paciente", "nome", "dr", "dra", "médico", "medico"},
	phi.CategoryDate:          {"fecha", "nacimiento", "data", "nascimento", "dob"},
	phi.CategoryPhone:         {"tel", "teléfono", "telefono", "telefone", "cel", "celular", "whatsapp", "móvil", "movil"},
	phi.CategoryFax:           {"fax", "telefax"},
	phi.CategoryEmail:         {"email", "e-mail", "correo", "correio"},
	phi.CategoryNationalID:    {"curp", "cpf", "rfc", "dni", "ssn"},
	phi.CategoryMedicalRecord: {"mrn", "nhc", "expediente", "prontuário", "prontuario", "historia"},
	phi.CategoryHealthPlanID:  {"nss", "imss", "issste", "póliza", "poliza", "afiliación", "afiliacion", "sus"},
	phi.CategoryAccountNumber: {"cuenta", "cta", "clabe", "factura", "conta"},
	phi.CategoryPostalCode:    {"cp", "c.p", "cep", "código postal", "codigo postal"},
	phi.CategoryAddress:       {"domicilio", "dirección", "direccion", "endereço", "endereco"},
	phi.CategoryIPAddress:     {"ip"},
	phi.CategoryURL:           {"url", "portal", "sitio", "site"},
	phi.CategoryDeviceID:      {"serie", "serial", "imei", "udi"},
	phi.CategoryVehicleID:     {"vin", "placas", "placa", "matrícula", "matricula"},
}

// labelBefore reports whether the text immediately preceding byte offset
// start contains a label associated with the category.
func labelBefore(text string, start int, cat phi.Category) bool {
	labels := categoryLabels[cat]
	if len(labels) == 0 || start == 0 {
		return false
	}
	lo := start - contextWindow
	if lo < 0 {
		lo = 0
	}
	window := foldCaser.String(text[lo:start])
	for _, label := range labels {
		if i := strings.LastIndex(window, label); i >= 0 {
			// The label must be adjacent to the match, allowing only
			// separator characters between them.
			rest := window[i+len(label):]
			if strings.TrimLeft(rest, " \t:.#-º°") == "" {
				return true
			}
		}
	}
	return false
}
