package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rl1809/jewel-store/internal/port"
)

// LogNotifier writes alerts to the service log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, alert port.Alert) error {
	fields := []zap.Field{
		zap.String("source", alert.Source),
		zap.String("severity", string(alert.Severity)),
		zap.Time("raised_at", alert.RaisedAt),
	}
	for k, v := range alert.Fields {
		fields = append(fields, zap.String(k, v))
	}

	if alert.Severity == port.SeverityCritical {
		n.logger.Error("ops alert: "+alert.Message, fields...)
	} else {
		n.logger.Warn("ops alert: "+alert.Message, fields...)
	}
	return nil
}

// Multi fans an alert out to every notifier and joins their errors.
type Multi []port.Notifier

func (m Multi) Notify(ctx context.Context, alert port.Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
