package entitlement

// Resource is a countable tenant resource constrained by the plan.
type Resource string

const (
	ResourceCitas         Resource = "citas" // appointments per calendar month
	ResourceProfesionales Resource = "profesionales"
	ResourceSucursales    Resource = "sucursales"
	ResourceServicios     Resource = "servicios"
	ResourceClientes      Resource = "clientes"
	ResourceRecordatorios Resource = "recordatorios" // reminder sends per month
)

// Unlimited marks a resource with no limit (-1 survives SQL round-trips).
const Unlimited int64 = -1

// Feature is a plan capability toggled per tier.
type Feature string

const (
	FeatureReservasOnline        Feature = "reservas_online"
	FeatureRecordatoriosEmail    Feature = "recordatorios_email"
	FeatureRecordatoriosSMS      Feature = "recordatorios_sms"
	FeatureRecordatoriosWhatsApp Feature = "recordatorios_whatsapp"
	FeatureReportes              Feature = "reportes"
	FeatureMultiSucursal         Feature = "multi_sucursal"
	FeatureExportar              Feature = "exportar"
	FeatureAPI                   Feature = "api"
)

// Plan is a sellable tier with its resource limits and features. PriceID
// fields carry the billing provider's price ids so webhook payloads and
// checkout requests map directly onto tiers.
type Plan struct {
	ID             string `yaml:"id"`
	Nombre         string `yaml:"nombre"`
	Descripcion    string `yaml:"descripcion"`
	PriceIDMonthly string `yaml:"price_id_monthly"`
	PriceIDAnnual  string `yaml:"price_id_annual"`

	Limits   map[Resource]int64 `yaml:"limits"`
	Features []Feature          `yaml:"features"`
}

// HasFeature reports whether the plan includes a feature.
func (p Plan) HasFeature(f Feature) bool {
	for _, have := range p.Features {
		if have == f {
			return true
		}
	}
	return false
}

// UsageInfo is the current consumption of one resource against its limit.
type UsageInfo struct {
	Current int64 `json:"actual"`
	Limit   int64 `json:"limite"` // -1 means unlimited
	Percent int   `json:"porcentaje"`
	Alert   bool  `json:"alerta"` // usage crossed the warning threshold
}
