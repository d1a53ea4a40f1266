// Package phi defines the identifier categories and span types shared by the
// detection pipeline. The categories follow the HIPAA Safe Harbor list; a few
// of the 18 classes are split into the concrete forms that show up in
// Spanish/Portuguese clinical text (postal codes, fax vs. phone, photo
// references), which is why there are twenty constants.
package phi

// Category is a HIPAA Safe Harbor identifier class.
type Category string

const (
	CategoryName               Category = "NAME"
	CategoryGeographic         Category = "GEOGRAPHIC_SUBDIVISION"
	CategoryAddress            Category = "ADDRESS"
	CategoryPostalCode         Category = "POSTAL_CODE"
	CategoryDate               Category = "DATE"
	CategoryPhone              Category = "PHONE"
	CategoryFax                Category = "FAX"
	CategoryEmail              Category = "EMAIL"
	CategoryNationalID         Category = "NATIONAL_ID"
	CategoryMedicalRecord      Category = "MEDICAL_RECORD_NUMBER"
	CategoryHealthPlanID       Category = "HEALTH_PLAN_ID"
	CategoryAccountNumber      Category = "ACCOUNT_NUMBER"
	CategoryCertificateLicense Category = "CERTIFICATE_LICENSE_NUMBER"
	CategoryVehicleID          Category = "VEHICLE_ID"
	CategoryDeviceID           Category = "DEVICE_ID"
	CategoryURL                Category = "URL"
	CategoryIPAddress          Category = "IP_ADDRESS"
	CategoryBiometricID        Category = "BIOMETRIC_ID"
	CategoryPhotoReference     Category = "PHOTO_REFERENCE"
	CategoryOtherUniqueID      Category = "OTHER_UNIQUE_ID"
)

// All lists every category in a fixed order. Detection and summaries iterate
// this slice so output ordering never depends on map iteration.
func All() []Category {
	return []Category{
		CategoryName,
		CategoryGeographic,
		CategoryAddress,
		CategoryPostalCode,
		CategoryDate,
		CategoryPhone,
		CategoryFax,
		CategoryEmail,
		CategoryNationalID,
		CategoryMedicalRecord,
		CategoryHealthPlanID,
		CategoryAccountNumber,
		CategoryCertificateLicense,
		CategoryVehicleID,
		CategoryDeviceID,
		CategoryURL,
		CategoryIPAddress,
		CategoryBiometricID,
		CategoryPhotoReference,
		CategoryOtherUniqueID,
	}
}

// Valid reports whether c is one of the known categories.
func Valid(c Category) bool {
	for _, known := range All() {
		if c == known {
			return true
		}
	}
	return false
}
