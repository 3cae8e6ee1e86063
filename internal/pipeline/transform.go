package pipeline

import (
	"context"

	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
)

// ShotTransformer implements Transformer using the domain parse and derive steps.
type ShotTransformer struct {
	canon *domain.Canonicalizer
}

// NewTransformer creates a ShotTransformer. Pass a nil canonicalizer to use
// the built-in club alias table.
func NewTransformer(canon *domain.Canonicalizer) *ShotTransformer {
	return &ShotTransformer{canon: canon}
}

func (t *ShotTransformer) Transform(_ context.Context, raw domain.RawRow) (domain.Shot, error) {
	shot, err := domain.ParseRawRow(raw, t.canon)
	if err != nil {
		return domain.Shot{}, err
	}
	return domain.DeriveMetrics(shot), nil
}
