package main

import (
	"context"
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/nurpe/logistics-bills/internal/auth"
	"github.com/nurpe/logistics-bills/internal/config"
	"github.com/nurpe/logistics-bills/internal/db"
	"github.com/nurpe/logistics-bills/internal/excel"
	httphandler "github.com/nurpe/logistics-bills/internal/http"
	"github.com/nurpe/logistics-bills/internal/http/middleware"
	"github.com/nurpe/logistics-bills/internal/lock"
	"github.com/nurpe/logistics-bills/internal/logger"
	"github.com/nurpe/logistics-bills/internal/mail"
	"github.com/nurpe/logistics-bills/internal/notify"
	"github.com/nurpe/logistics-bills/internal/payment"
	"github.com/nurpe/logistics-bills/internal/pdf"
	"github.com/nurpe/logistics-bills/internal/repository"
	"github.com/nurpe/logistics-bills/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	loc, err := cfg.Bills.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load timezone")
	}

	billRepo := repository.NewBillRepository(database)
	pdfGenerator := pdf.NewGenerator(cfg.SMTP.FromName, loc)
	excelGenerator := excel.NewGenerator(loc)

	var mailer mail.Sender = mail.NewLogSender(log)
	if cfg.SMTP.Host != "" {
		mailer = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
		})
	}

	var links payment.LinkGenerator = payment.NewStaticGenerator(cfg.Payment.LinkBaseURL, cfg.Payment.Currency)
	if cfg.Payment.Provider == config.PaymentProviderStripe {
		links = payment.NewStripeGenerator(cfg.Payment.StripeAPIKey, cfg.Payment.Currency)
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Slack.BotToken != "" && cfg.Slack.Channel != "" {
		notifier = notify.NewSlack(cfg.Slack.BotToken, cfg.Slack.Channel)
	}

	var locks lock.Guard = lock.NewMemory()
	if cfg.Redis.Addr != "" {
		redisLock, err := lock.NewRedis(context.Background(), lock.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer redisLock.Close()
		locks = redisLock
	}

	billService, err := service.NewBillService(service.Dependencies{
		Repo:      billRepo,
		Documents: pdfGenerator,
		Workbooks: excelGenerator,
		Mailer:    mailer,
		Links:     links,
		Notifier:  notifier,
		Locks:     locks,
		Log:       log,
	}, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init bill service")
	}

	if cfg.Payment.WebhookSecret == "" {
		log.Warn().Msg("PAYMENT_WEBHOOK_SECRET not set, payment webhook disabled")
	}

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(billService, cfg.Payment.WebhookSecret, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, cfg.HTTP.CORSAllowedOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting bills service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
