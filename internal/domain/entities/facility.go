package entities

import (
	"time"
)

// FacilityKind is the coarse category of a healthcare facility
type FacilityKind string

const (
	FacilityKindPublicHospital  FacilityKind = "PUBLIC_HOSPITAL"
	FacilityKindPrivateHospital FacilityKind = "PRIVATE_HOSPITAL"
	FacilityKindClinic          FacilityKind = "CLINIC"
	FacilityKindPharmacy        FacilityKind = "PHARMACY"
	FacilityKindGeneric         FacilityKind = "GENERIC"
)

// Valid reports whether k is one of the known kinds
func (k FacilityKind) Valid() bool {
	switch k {
	case FacilityKindPublicHospital, FacilityKindPrivateHospital, FacilityKindClinic,
		FacilityKindPharmacy, FacilityKindGeneric:
		return true
	}
	return false
}

// Facility represents a healthcare facility in the system
type Facility struct {
	ID             string       `json:"id" db:"id"`
	ExternalID     *string      `json:"external_id,omitempty" db:"external_id"`
	ExternalSource *string      `json:"external_source,omitempty" db:"external_source"`
	Name           string       `json:"name" db:"name"`
	Kind           FacilityKind `json:"facility_kind" db:"facility_kind"`
	Classification string       `json:"classification" db:"classification"`
	Address        string       `json:"address" db:"address"`
	City           string       `json:"city" db:"city"`
	Province       string       `json:"province" db:"province"`
	PostalCode     string       `json:"postal_code" db:"postal_code"`
	Country        string       `json:"country" db:"country"`
	Latitude       *float64     `json:"latitude,omitempty" db:"latitude"`
	Longitude      *float64     `json:"longitude,omitempty" db:"longitude"`
	Phone          string       `json:"phone" db:"phone"`
	Email          string       `json:"email" db:"email"`
	Website        string       `json:"website" db:"website"`
	Verified       bool         `json:"verified" db:"verified"`
	AutoImported   bool         `json:"auto_imported" db:"auto_imported"`
	DataSource     string       `json:"data_source" db:"data_source"`
	LastUpdated    time.Time    `json:"last_updated" db:"last_updated"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}

// HasCoordinates reports whether both latitude and longitude are known
func (f *Facility) HasCoordinates() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// FacilityUpdate carries the fields an import run may overwrite on an existing record.
// Verified and CreatedAt are deliberately absent.
type FacilityUpdate struct {
	Name           string
	Kind           FacilityKind
	Classification string
	Address        string
	City           string
	Province       string
	PostalCode     string
	Country        string
	Latitude       *float64
	Longitude      *float64
	Phone          string
	Email          string
	Website        string
	DataSource     string
	LastUpdated    time.Time
}

// UpdateFrom builds the mutable-field update carried by an observed facility
func UpdateFrom(f *Facility) *FacilityUpdate {
	return &FacilityUpdate{
		Name:           f.Name,
		Kind:           f.Kind,
		Classification: f.Classification,
		Address:        f.Address,
		City:           f.City,
		Province:       f.Province,
		PostalCode:     f.PostalCode,
		Country:        f.Country,
		Latitude:       f.Latitude,
		Longitude:      f.Longitude,
		Phone:          f.Phone,
		Email:          f.Email,
		Website:        f.Website,
		DataSource:     f.DataSource,
		LastUpdated:    f.LastUpdated,
	}
}

// Apply copies the update onto f. LastUpdated never moves backwards.
func (u *FacilityUpdate) Apply(f *Facility) {
	f.Name = u.Name
	f.Kind = u.Kind
	f.Classification = u.Classification
	f.Address = u.Address
	f.City = u.City
	f.Province = u.Province
	f.PostalCode = u.PostalCode
	f.Country = u.Country
	f.Latitude = u.Latitude
	f.Longitude = u.Longitude
	f.Phone = u.Phone
	f.Email = u.Email
	f.Website = u.Website
	f.DataSource = u.DataSource
	if u.LastUpdated.After(f.LastUpdated) {
		f.LastUpdated = u.LastUpdated
	}
}
