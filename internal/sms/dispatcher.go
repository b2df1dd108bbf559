package sms

import (
	"context"
	"strings"
	"time"

	"github.com/jwalitptl/queue-api/pkg/logger"
	"github.com/jwalitptl/queue-api/pkg/metrics"
)

// Dispatcher sends a text message to one phone number.
type Dispatcher interface {
	Send(ctx context.Context, phone, message string) error
}

const (
	ProviderLog     = "log"
	ProviderGateway = "gateway"
)

// LogDispatcher simulates delivery by logging the message. It is the default provider.
type LogDispatcher struct {
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewLogDispatcher(log *logger.Logger, m *metrics.Metrics) *LogDispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &LogDispatcher{logger: log, metrics: m}
}

func (d *LogDispatcher) Send(ctx context.Context, phone, message string) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		d.metrics.ObserveSMS(ProviderLog, time.Since(start).Seconds(), err)
		return err
	}
	d.logger.Info("sms sent (simulated)",
		"phone", maskPhone(phone),
		"length", len(message),
	)
	d.metrics.ObserveSMS(ProviderLog, time.Since(start).Seconds(), nil)
	return nil
}

// maskPhone keeps the last four digits for logs.
func maskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
