package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/agendakit/agendakit/pkg/accessgate"
	"github.com/agendakit/agendakit/pkg/billing"
	"github.com/agendakit/agendakit/pkg/config"
	"github.com/agendakit/agendakit/pkg/entitlement"
	"github.com/agendakit/agendakit/pkg/httpserver"
	"github.com/agendakit/agendakit/pkg/logger"
	"github.com/agendakit/agendakit/pkg/negocio"
	"github.com/agendakit/agendakit/pkg/notify"
	"github.com/agendakit/agendakit/pkg/pg"
	"github.com/agendakit/agendakit/pkg/reconciler"
	redisconn "github.com/agendakit/agendakit/pkg/redis"
	"github.com/agendakit/agendakit/pkg/requestid"
	"github.com/agendakit/agendakit/pkg/subscription"
	"github.com/agendakit/agendakit/svc/suscripcion"
)

type appConfig struct {
	Env       string `env:"APP_ENV" envDefault:"development"`
	PlansPath string `env:"ENTITLEMENT_PLANS_PATH"`

	PriceBasicoMonthly      string `env:"PRICE_BASICO_MONTHLY"`
	PriceBasicoAnnual       string `env:"PRICE_BASICO_ANNUAL"`
	PriceProfesionalMonthly string `env:"PRICE_PROFESIONAL_MONTHLY"`
	PriceProfesionalAnnual  string `env:"PRICE_PROFESIONAL_ANNUAL"`
	PricePremiumMonthly     string `env:"PRICE_PREMIUM_MONTHLY"`
	PricePremiumAnnual      string `env:"PRICE_PREMIUM_ANNUAL"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var appCfg appConfig
	config.MustLoad(&appCfg)

	logOpts := []logger.Option{
		logger.WithContextExtractors(requestid.LoggerExtractor(), negocio.LoggerExtractor()),
	}
	if appCfg.Env == "production" {
		logOpts = append(logOpts, logger.WithProduction("agendakit"))
	} else {
		logOpts = append(logOpts, logger.WithDevelopment("agendakit"))
	}
	log := logger.New(logOpts...)
	logger.SetAsDefault(log)

	if err := run(ctx, appCfg, log); err != nil && ctx.Err() == nil {
		log.ErrorContext(ctx, "server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, appCfg appConfig, log *slog.Logger) error {
	var pgCfg pg.Config
	config.MustLoad(&pgCfg)
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return err
	}

	var redisCfg redisconn.Config
	config.MustLoad(&redisCfg)
	redisClient, err := redisconn.Connect(ctx, redisCfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	var paddleCfg billing.Config
	config.MustLoad(&paddleCfg)
	gateway, err := billing.NewPaddleGateway(paddleCfg)
	if err != nil {
		return err
	}

	var subCfg subscription.Config
	config.MustLoad(&subCfg)
	store := subscription.NewPGStore(pool)
	engine := subscription.NewEngine(store, gateway,
		subscription.WithLogger(log),
		subscription.WithTrialDays(subCfg.TrialDays),
		subscription.WithGraceDays(subCfg.GraceDays),
	)

	negocios := negocio.NewPGStore(pool)

	stateFor := func(ctx context.Context, neg *negocio.Negocio) (subscription.StateInfo, error) {
		info, _, err := engine.State(ctx, neg)
		return info, err
	}

	planSource := planSource(appCfg)
	enforcerOpts := []entitlement.EnforcerOption{entitlement.WithLogger(log)}
	for res, counter := range entitlement.PGCounters(pool) {
		enforcerOpts = append(enforcerOpts, entitlement.WithCounter(res, counter))
	}
	enforcer, err := entitlement.NewEnforcer(ctx, planSource,
		func(ctx context.Context, id uuid.UUID) (string, subscription.PaymentState, error) {
			neg, err := negocios.GetByID(ctx, id)
			if err != nil {
				return "", "", err
			}
			info, _, err := engine.State(ctx, neg)
			if err != nil {
				return "", "", err
			}
			return neg.PlanID, info.Estado, nil
		},
		enforcerOpts...,
	)
	if err != nil {
		return err
	}

	sender := buildSender(log)

	var sweepCfg reconciler.Config
	config.MustLoad(&sweepCfg)
	sweeper := reconciler.NewScheduler(negocios, negocios, engine, sender,
		reconciler.NewRedisMarker(redisClient, "agendakit:sweep"),
		reconciler.WithSchedule(reconciler.DailyAt(sweepCfg.Hour, sweepCfg.Minute)),
		reconciler.WithNoticeSchedule(reconciler.DailyAt(sweepCfg.NoticeHour, sweepCfg.NoticeMinute)),
		reconciler.WithDeactivator(negocios),
		reconciler.WithWarnDays(sweepCfg.WarnDays),
		reconciler.WithRenewalWarnDays(sweepCfg.RenewalDays),
		reconciler.WithLogger(log),
	)
	go func() {
		if err := sweeper.Run(ctx); err != nil && ctx.Err() == nil {
			log.ErrorContext(ctx, "reconciliation scheduler stopped", logger.Error(err))
		}
	}()

	svc := suscripcion.NewService(engine, enforcer, suscripcion.WithLogger(log))

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(requestid.Middleware)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(30 * time.Second))

	router.Get("/health", httpserver.HealthCheckHandler(log,
		pg.Healthcheck(pool),
		redisconn.Healthcheck(redisClient),
	))
	svc.WebhookRoutes(router)

	router.Group(func(r chi.Router) {
		r.Use(negocio.Middleware(negocios, negocio.WithoutActiveCheck()))
		r.Use(accessgate.Middleware(stateFor, accessgate.WithLogger(log)))
		svc.Routes(r)
	})

	var httpCfg httpserver.Config
	config.MustLoad(&httpCfg)
	server := httpserver.New(httpCfg, httpserver.WithLogger(log))
	return server.Run(ctx, router)
}

// planSource picks the YAML catalog when configured, otherwise the built-in
// tiers with provider price ids bound from the environment.
func planSource(cfg appConfig) entitlement.Source {
	if cfg.PlansPath != "" {
		return entitlement.NewYAMLSource(cfg.PlansPath)
	}

	plans := entitlement.DefaultPlans()
	bind := func(tier, monthly, annual string) {
		p := plans[tier]
		p.PriceIDMonthly = monthly
		p.PriceIDAnnual = annual
		plans[tier] = p
	}
	bind(entitlement.TierBasico, cfg.PriceBasicoMonthly, cfg.PriceBasicoAnnual)
	bind(entitlement.TierProfesional, cfg.PriceProfesionalMonthly, cfg.PriceProfesionalAnnual)
	bind(entitlement.TierPremium, cfg.PricePremiumMonthly, cfg.PricePremiumAnnual)
	return entitlement.NewStaticSource(plans)
}

// buildSender wires the notification channels: Postmark when configured,
// the log-only dev sender otherwise.
func buildSender(log *slog.Logger) notify.Sender {
	var cfg notify.Config
	config.MustLoad(&cfg)

	if cfg.PostmarkServerToken == "" {
		log.Info("postmark not configured, using dev notice sender")
		return notify.NewFanout(log, notify.NewDevSender(log))
	}
	email, err := notify.NewEmailSender(cfg)
	if err != nil {
		log.Error("postmark config invalid, using dev notice sender", logger.Error(err))
		return notify.NewFanout(log, notify.NewDevSender(log))
	}
	return notify.NewFanout(log, email)
}
