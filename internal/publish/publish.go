// Package publish streams resolution reports to an event bus.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anvil-platform/sourcemap/internal/report"
)

// SubjectPrefix roots every report subject.
const SubjectPrefix = "sourcemap.reports"

// Publisher is the minimal event-publishing seam.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
	Close() error
}

// Envelope wraps a report with the identity of the manifest it belongs to.
type Envelope struct {
	ID         string        `json:"id"`
	Namespace  string        `json:"namespace,omitempty"`
	Manifest   string        `json:"manifest"`
	Generation int64         `json:"generation,omitempty"`
	Phase      string        `json:"phase"`
	Time       time.Time     `json:"time"`
	Report     report.Report `json:"report"`
}

// Subject returns the subject reports of namespace/name are published on.
func Subject(namespace, name string) string {
	if namespace == "" {
		return fmt.Sprintf("%s.%s", SubjectPrefix, name)
	}
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, namespace, name)
}

// NewEnvelope stamps a fresh envelope for r.
func NewEnvelope(namespace, name string, generation int64, phase string, r report.Report) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Namespace:  namespace,
		Manifest:   name,
		Generation: generation,
		Phase:      phase,
		Time:       time.Now().UTC(),
		Report:     r,
	}
}

// PublishReport encodes env and publishes it on the manifest's subject.
func PublishReport(ctx context.Context, p Publisher, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode report envelope: %w", err)
	}
	subject := Subject(env.Namespace, env.Manifest)
	if err := p.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
