package models

// ExpenseCategories lists the fixed expense categories offered by the
// mobile client. New expenses normally use one of these, but the values are
// not enforced server-side.
var ExpenseCategories = []string{
	"Combustible",
	"Casetas",
	"Comida",
	"Hospedaje",
	"Reparaciones",
	"Otros",
}

// MexicanStates lists the origin/destination picker options shown by the
// add-trip screen. Free-form values (abbreviations like "CDMX") are still
// accepted by the backend.
var MexicanStates = []string{
	"Aguascalientes",
	"Baja California",
	"Baja California Sur",
	"Campeche",
	"Chiapas",
	"Chihuahua",
	"Ciudad de México",
	"Coahuila",
	"Colima",
	"Durango",
	"Estado de México",
	"Guanajuato",
	"Guerrero",
	"Hidalgo",
	"Jalisco",
	"Michoacán",
	"Morelos",
	"Nayarit",
	"Nuevo León",
	"Oaxaca",
	"Puebla",
	"Querétaro",
	"Quintana Roo",
	"San Luis Potosí",
	"Sinaloa",
	"Sonora",
	"Tabasco",
	"Tamaulipas",
	"Tlaxcala",
	"Veracruz",
	"Yucatán",
	"Zacatecas",
}

// IsKnownCategory reports whether category is one of the fixed picker
// options.
func IsKnownCategory(category string) bool {
	for _, c := range ExpenseCategories {
		if c == category {
			return true
		}
	}
	return false
}
