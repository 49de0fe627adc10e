package shipping

// RegionRate holds the shipping prices of one region in the store currency.
// A nil Pickup means the region has no pickup-point service.
type RegionRate struct {
	Home   int64  `json:"home"`
	Pickup *int64 `json:"pickup,omitempty"`
}

func rate(home, pickup int64) RegionRate {
	return RegionRate{Home: home, Pickup: &pickup}
}

func homeOnly(home int64) RegionRate {
	return RegionRate{Home: home}
}

// DefaultTable is the wilaya rate table, in DZD.
var DefaultTable = map[string]RegionRate{
	"Adrar":              rate(1500, 700),
	"Chlef":              rate(850, 450),
	"Laghouat":           rate(950, 550),
	"Oum El Bouaghi":     rate(850, 450),
	"Batna":              rate(850, 450),
	"Bejaia":             rate(800, 450),
	"Biskra":             rate(900, 550),
	"Bechar":             rate(1200, 600),
	"Blida":              rate(600, 300),
	"Bouira":             rate(850, 450),
	"Tamanrasset":        rate(1800, 950),
	"Tebessa":            rate(900, 500),
	"Tlemcen":            rate(900, 450),
	"Tiaret":             rate(850, 450),
	"Tizi Ouzou":         rate(750, 400),
	"Alger":              rate(300, 400),
	"Djelfa":             rate(950, 500),
	"Jijel":              rate(850, 450),
	"Setif":              rate(800, 450),
	"Saida":              rate(850, 500),
	"Skikda":             rate(850, 450),
	"Sidi Bel Abbes":     rate(850, 500),
	"Annaba":             rate(850, 500),
	"Guelma":             rate(900, 500),
	"Constantine":        rate(800, 400),
	"Medea":              rate(800, 450),
	"Mostaganem":         rate(850, 450),
	"M'Sila":             rate(900, 500),
	"Mascara":            rate(850, 500),
	"Ouargla":            rate(1000, 600),
	"Oran":               rate(800, 400),
	"Bayadh":             homeOnly(1050),
	"Illizi":             rate(2100, 1200),
	"Bordj Bou Arreridj": rate(850, 500),
	"Boumerdes":          homeOnly(600),
	"El Taref":           homeOnly(850),
	"Tindouf":            homeOnly(1700),
	"Tissemsilt":         homeOnly(850),
	"El Oued":            homeOnly(1050),
	"Khenchela":          rate(850, 500),
	"Souk Ahras":         homeOnly(900),
	"Tipaza":             homeOnly(600),
	"Mila":               rate(850, 500),
	"Ain Defla":          rate(850, 500),
	"Naama":              rate(1200, 700),
	"Ain Temouchent":     rate(850, 500),
	"Ghardaia":           rate(950, 550),
	"Relizane":           rate(850, 500),
	"Timimoun":           homeOnly(1600),
	"Ouled Djellal":      homeOnly(950),
	"Beni Abbes":         homeOnly(1300),
	"In Salah":           rate(1800, 1300),
	"Touggourt":          rate(1000, 650),
	"El M'ghair":         homeOnly(1200),
	"El Menia":           rate(1000, 700),
}
