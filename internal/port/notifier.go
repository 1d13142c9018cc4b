package port

import (
	"context"
	"time"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is an operational notification for whoever runs the service.
type Alert struct {
	Source   string            `json:"source"`
	Severity Severity          `json:"severity"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields,omitempty"`
	RaisedAt time.Time         `json:"raised_at"`
}

type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}
