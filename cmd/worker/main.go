// Command worker drains the email queue and delivers each request through
// Resend.  It is only needed when the server runs with EMAIL_DELIVERY=queue.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/config"
	"github.com/iliyamo/estate-portal/internal/mail"
	"github.com/iliyamo/estate-portal/internal/queue"
)

const prefetch = 50

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := config.NewLogger(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.ResendAPIKey == "" {
		logger.Warn("RESEND_API_KEY not set: every queued email will be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &queue.Consumer{
		URL:      cfg.AMQPURL,
		Prefetch: prefetch,
		Handle:   mail.Deliver(mail.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom, logger)),
		Log:      logger,
	}
	logger.Info("email worker started", zap.String("queue", queue.EmailQueue))
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("email worker stopped", zap.Error(err))
	}
	logger.Info("email worker stopped")
}
