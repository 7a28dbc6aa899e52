package entitlement

// Tier ids for the built-in catalog.
const (
	TierBasico      = "basico"
	TierProfesional = "profesional"
	TierPremium     = "premium"
)

// DefaultPlans is the built-in three-tier catalog used when no YAML catalog
// is configured. Price ids are bound by environment at startup.
func DefaultPlans() map[string]Plan {
	return map[string]Plan{
		TierBasico: {
			ID:          TierBasico,
			Nombre:      "Básico",
			Descripcion: "Para profesionales independientes.",
			Limits: map[Resource]int64{
				ResourceCitas:         100,
				ResourceProfesionales: 1,
				ResourceSucursales:    1,
				ResourceServicios:     10,
				ResourceClientes:      200,
				ResourceRecordatorios: 100,
			},
			Features: []Feature{
				FeatureReservasOnline,
				FeatureRecordatoriosEmail,
			},
		},
		TierProfesional: {
			ID:          TierProfesional,
			Nombre:      "Profesional",
			Descripcion: "Para equipos pequeños.",
			Limits: map[Resource]int64{
				ResourceCitas:         500,
				ResourceProfesionales: 5,
				ResourceSucursales:    1,
				ResourceServicios:     50,
				ResourceClientes:      2000,
				ResourceRecordatorios: 500,
			},
			Features: []Feature{
				FeatureReservasOnline,
				FeatureRecordatoriosEmail,
				FeatureRecordatoriosSMS,
				FeatureReportes,
				FeatureExportar,
			},
		},
		TierPremium: {
			ID:          TierPremium,
			Nombre:      "Premium",
			Descripcion: "Para negocios con varias sucursales.",
			Limits: map[Resource]int64{
				ResourceCitas:         Unlimited,
				ResourceProfesionales: Unlimited,
				ResourceSucursales:    5,
				ResourceServicios:     Unlimited,
				ResourceClientes:      Unlimited,
				ResourceRecordatorios: Unlimited,
			},
			Features: []Feature{
				FeatureReservasOnline,
				FeatureRecordatoriosEmail,
				FeatureRecordatoriosSMS,
				FeatureRecordatoriosWhatsApp,
				FeatureReportes,
				FeatureMultiSucursal,
				FeatureExportar,
				FeatureAPI,
			},
		},
	}
}
