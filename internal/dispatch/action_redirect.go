package dispatch

import (
	"context"
	"encoding/json"

	"github.com/formwork/platform/internal/domain"
)

// RedirectKind resolves the post-mutation redirect target. Pure computation,
// no external I/O; response-relevant, so it always runs inline.
type RedirectKind struct{}

// NewRedirectKind creates the redirect kind.
func NewRedirectKind() *RedirectKind { return &RedirectKind{} }

func (k *RedirectKind) Type() domain.ActionType { return domain.ActionRedirect }

func (k *RedirectKind) ResponseRelevant() bool { return true }

func (k *RedirectKind) Run(_ context.Context, job domain.ActionJob) (json.RawMessage, error) {
	var cfg domain.RedirectConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		return nil, domain.ErrConfig("redirect config: " + err.Error())
	}
	if err := domain.ValidateRedirectTarget(cfg.RedirectURL); err != nil {
		return nil, domain.ErrInvalidTarget(err.Error())
	}
	effect, err := json.Marshal(domain.RedirectEffect{RedirectURL: cfg.RedirectURL})
	if err != nil {
		return nil, domain.ErrPermanent("marshal redirect effect", err)
	}
	return effect, nil
}
