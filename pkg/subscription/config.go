package subscription

// Config holds lifecycle tuning loaded from the environment.
type Config struct {
	TrialDays int `env:"SUSCRIPCION_TRIAL_DAYS" envDefault:"14"`
	GraceDays int `env:"SUSCRIPCION_GRACE_DAYS" envDefault:"14"`
}
