package services

import (
	"strings"
	"time"

	"github.com/zatekoja/facility-import/backend/internal/domain/entities"
)

// DefaultHospitalKind is assumed for a bare "hospital" amenity. The upstream data
// does not say who runs a hospital, so imported hospitals are public until a
// curator says otherwise.
const DefaultHospitalKind = entities.FacilityKindPublicHospital

const (
	DefaultDataSource     = "OpenStreetMap"
	DefaultExternalSource = "openstreetmap"
)

// Classification labels
const (
	ClassificationGeneralHospital     = "General Hospital"
	ClassificationSpecialistHospital  = "Specialist Hospital"
	ClassificationPsychiatricHospital = "Psychiatric Hospital"
	ClassificationMaternityHospital   = "Maternity Hospital"
	ClassificationHospital            = "Hospital"
	ClassificationClinic              = "Medical Clinic"
	ClassificationGeneralPractice     = "General Practice"
	ClassificationDentalPractice      = "Dental Practice"
	ClassificationPharmacy            = "Pharmacy"
	ClassificationFallback            = "Healthcare Facility"
)

var hospitalSubtypes = map[string]string{
	"general":     ClassificationGeneralHospital,
	"specialist":  ClassificationSpecialistHospital,
	"psychiatric": ClassificationPsychiatricHospital,
	"psychiatry":  ClassificationPsychiatricHospital,
	"maternity":   ClassificationMaternityHospital,
	"obstetrics":  ClassificationMaternityHospital,
}

// FacilityNormalizer converts raw upstream elements into canonical facilities
type FacilityNormalizer struct {
	dataSource     string
	externalSource string
	now            func() time.Time
}

// NewFacilityNormalizer creates a normalizer. Empty names fall back to the OpenStreetMap defaults.
func NewFacilityNormalizer(dataSource, externalSource string) *FacilityNormalizer {
	if strings.TrimSpace(dataSource) == "" {
		dataSource = DefaultDataSource
	}
	if strings.TrimSpace(externalSource) == "" {
		externalSource = DefaultExternalSource
	}
	return &FacilityNormalizer{
		dataSource:     dataSource,
		externalSource: externalSource,
		now:            time.Now,
	}
}

// ExternalSource returns the source name stamped on normalized facilities
func (n *FacilityNormalizer) ExternalSource() string {
	return n.externalSource
}

// Normalize maps one element to a facility. It returns nil when the element has
// no name or no usable location.
func (n *FacilityNormalizer) Normalize(el entities.RawElement) *entities.Facility {
	name := strings.TrimSpace(el.Tags["name"])
	if name == "" {
		return nil
	}

	lat, lon, ok := elementLocation(el)
	if !ok {
		return nil
	}

	amenity := strings.ToLower(firstTag(el.Tags, "amenity", "healthcare"))
	now := n.now()
	externalID := el.ExternalID
	externalSource := n.externalSource

	return &entities.Facility{
		ExternalID:     &externalID,
		ExternalSource: &externalSource,
		Name:           name,
		Kind:           kindForAmenity(amenity),
		Classification: classify(amenity, el.Tags),
		Address:        streetAddress(el.Tags),
		City:           firstTag(el.Tags, "addr:city", "addr:town", "addr:suburb"),
		Province:       provinceFor(el.Tags, lat, lon),
		PostalCode:     firstTag(el.Tags, "addr:postcode"),
		Country:        firstTag(el.Tags, "addr:country"),
		Latitude:       &lat,
		Longitude:      &lon,
		Phone:          firstTag(el.Tags, "phone", "contact:phone"),
		Email:          firstTag(el.Tags, "email", "contact:email"),
		Website:        firstTag(el.Tags, "website", "contact:website"),
		Verified:       true,
		AutoImported:   true,
		DataSource:     n.dataSource,
		LastUpdated:    now,
		CreatedAt:      now,
	}
}

// NormalizeAll normalizes every element and drops the unusable ones
func (n *FacilityNormalizer) NormalizeAll(elements []entities.RawElement) []*entities.Facility {
	facilities := make([]*entities.Facility, 0, len(elements))
	for _, el := range elements {
		if f := n.Normalize(el); f != nil {
			facilities = append(facilities, f)
		}
	}
	return facilities
}

func elementLocation(el entities.RawElement) (float64, float64, bool) {
	if el.ExternalKind == entities.ElementKindNode {
		if el.Latitude != nil && el.Longitude != nil {
			return *el.Latitude, *el.Longitude, true
		}
		return 0, 0, false
	}
	if el.CenterLatitude != nil && el.CenterLongitude != nil {
		return *el.CenterLatitude, *el.CenterLongitude, true
	}
	return 0, 0, false
}

func kindForAmenity(amenity string) entities.FacilityKind {
	switch amenity {
	case "hospital":
		return DefaultHospitalKind
	case "clinic", "doctors", "dentist":
		return entities.FacilityKindClinic
	case "pharmacy":
		return entities.FacilityKindPharmacy
	default:
		return entities.FacilityKindGeneric
	}
}

func classify(amenity string, tags map[string]string) string {
	switch amenity {
	case "hospital":
		subtype := strings.ToLower(firstTag(tags, "healthcare:speciality", "hospital"))
		for _, part := range strings.Split(subtype, ";") {
			if label, ok := hospitalSubtypes[strings.TrimSpace(part)]; ok {
				return label
			}
		}
		return ClassificationHospital
	case "clinic":
		return ClassificationClinic
	case "doctors":
		return ClassificationGeneralPractice
	case "dentist":
		return ClassificationDentalPractice
	case "pharmacy":
		return ClassificationPharmacy
	default:
		return ClassificationFallback
	}
}

func streetAddress(tags map[string]string) string {
	street := firstTag(tags, "addr:street")
	if street == "" {
		return firstTag(tags, "addr:housename")
	}
	if number := firstTag(tags, "addr:housenumber"); number != "" {
		return number + " " + street
	}
	return street
}

func provinceFor(tags map[string]string, lat, lon float64) string {
	if explicit := firstTag(tags, "addr:province", "addr:state", "is_in:province"); explicit != "" {
		return entities.NormalizeProvinceName(explicit)
	}
	return entities.ProvinceForPoint(lat, lon)
}

// firstTag returns the first non-blank value among keys, trimmed
func firstTag(tags map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(tags[key]); v != "" {
			return v
		}
	}
	return ""
}
