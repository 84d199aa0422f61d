package entities

import (
	"strings"
)

// Canonical province names
const (
	ProvinceEasternCape  = "Eastern Cape"
	ProvinceFreeState    = "Free State"
	ProvinceGauteng      = "Gauteng"
	ProvinceKwaZuluNatal = "KwaZulu-Natal"
	ProvinceLimpopo      = "Limpopo"
	ProvinceMpumalanga   = "Mpumalanga"
	ProvinceNorthWest    = "North West"
	ProvinceNorthernCape = "Northern Cape"
	ProvinceWesternCape  = "Western Cape"
	ProvinceUnknown      = "Unknown"
)

// ProvinceRegion pairs a province with its approximate bounding rectangle
type ProvinceRegion struct {
	Name   string
	Bounds BoundingBox
}

// ProvinceRegions lists the approximate province rectangles in lookup order.
// The rectangles overlap; the first containing region wins, so order matters.
var ProvinceRegions = []ProvinceRegion{
	{Name: ProvinceGauteng, Bounds: BoundingBox{North: -25.1, South: -26.9, East: 29.0, West: 27.0}},
	{Name: ProvinceWesternCape, Bounds: BoundingBox{North: -30.4, South: -34.9, East: 24.3, West: 17.7}},
	{Name: ProvinceKwaZuluNatal, Bounds: BoundingBox{North: -26.8, South: -31.1, East: 32.9, West: 28.8}},
	{Name: ProvinceEasternCape, Bounds: BoundingBox{North: -30.0, South: -34.2, East: 30.2, West: 22.5}},
	{Name: ProvinceFreeState, Bounds: BoundingBox{North: -26.6, South: -30.7, East: 29.8, West: 24.3}},
	{Name: ProvinceMpumalanga, Bounds: BoundingBox{North: -24.4, South: -27.5, East: 32.1, West: 28.2}},
	{Name: ProvinceLimpopo, Bounds: BoundingBox{North: -22.1, South: -25.4, East: 31.9, West: 26.4}},
	{Name: ProvinceNorthWest, Bounds: BoundingBox{North: -24.6, South: -28.0, East: 28.3, West: 22.6}},
	{Name: ProvinceNorthernCape, Bounds: BoundingBox{North: -24.7, South: -32.9, East: 25.5, West: 16.4}},
}

// NationalBounds covers the whole country
var NationalBounds = BoundingBox{North: -22.0, South: -35.0, East: 33.0, West: 16.3}

var provinceAliases = map[string]string{
	"eastern cape":      ProvinceEasternCape,
	"e cape":            ProvinceEasternCape,
	"ec":                ProvinceEasternCape,
	"oos-kaap":          ProvinceEasternCape,
	"free state":        ProvinceFreeState,
	"freestate":         ProvinceFreeState,
	"orange free state": ProvinceFreeState,
	"fs":                ProvinceFreeState,
	"vrystaat":          ProvinceFreeState,
	"gauteng":           ProvinceGauteng,
	"gp":                ProvinceGauteng,
	"gt":                ProvinceGauteng,
	"kwazulu-natal":     ProvinceKwaZuluNatal,
	"kwazulu natal":     ProvinceKwaZuluNatal,
	"kwa-zulu natal":    ProvinceKwaZuluNatal,
	"kwa zulu natal":    ProvinceKwaZuluNatal,
	"kzn":               ProvinceKwaZuluNatal,
	"natal":             ProvinceKwaZuluNatal,
	"limpopo":           ProvinceLimpopo,
	"lp":                ProvinceLimpopo,
	"northern province": ProvinceLimpopo,
	"mpumalanga":        ProvinceMpumalanga,
	"mp":                ProvinceMpumalanga,
	"north west":        ProvinceNorthWest,
	"north-west":        ProvinceNorthWest,
	"northwest":         ProvinceNorthWest,
	"nw":                ProvinceNorthWest,
	"noordwes":          ProvinceNorthWest,
	"northern cape":     ProvinceNorthernCape,
	"n cape":            ProvinceNorthernCape,
	"nc":                ProvinceNorthernCape,
	"noord-kaap":        ProvinceNorthernCape,
	"western cape":      ProvinceWesternCape,
	"w cape":            ProvinceWesternCape,
	"wc":                ProvinceWesternCape,
	"wes-kaap":          ProvinceWesternCape,
}

// NormalizeProvinceName maps a variant spelling or abbreviation to the canonical name.
// Unrecognized input is returned trimmed but otherwise unchanged.
func NormalizeProvinceName(raw string) string {
	trimmed := strings.TrimSpace(raw)
	key := strings.ToLower(strings.Join(strings.Fields(trimmed), " "))
	if canonical, ok := provinceAliases[key]; ok {
		return canonical
	}
	return trimmed
}

// ProvinceForPoint returns the first region containing the point, or Unknown
func ProvinceForPoint(lat, lon float64) string {
	for _, region := range ProvinceRegions {
		if region.Bounds.Contains(lat, lon) {
			return region.Name
		}
	}
	return ProvinceUnknown
}

// ProvinceBounds looks up a province rectangle by canonical or variant name
func ProvinceBounds(name string) (BoundingBox, bool) {
	canonical := NormalizeProvinceName(name)
	for _, region := range ProvinceRegions {
		if region.Name == canonical {
			return region.Bounds, true
		}
	}
	return BoundingBox{}, false
}
