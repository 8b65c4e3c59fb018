package dispatch

import (
	"context"
	"encoding/json"

	"github.com/formwork/platform/internal/domain"
)

// ServeFileKind resolves a file to serve as the mutation response.
// Response-relevant like redirect: the file path must be known before the
// response is built.
type ServeFileKind struct{}

// NewServeFileKind creates the serve_file kind.
func NewServeFileKind() *ServeFileKind { return &ServeFileKind{} }

func (k *ServeFileKind) Type() domain.ActionType { return domain.ActionServeFile }

func (k *ServeFileKind) ResponseRelevant() bool { return true }

func (k *ServeFileKind) Run(_ context.Context, job domain.ActionJob) (json.RawMessage, error) {
	var cfg domain.ServeFileConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		return nil, domain.ErrConfig("serve_file config: " + err.Error())
	}
	if err := domain.ValidateServeFilePath(cfg.FilePath); err != nil {
		return nil, domain.ErrInvalidTarget(err.Error())
	}
	effect, err := json.Marshal(domain.ServeFileEffect{FilePath: cfg.FilePath})
	if err != nil {
		return nil, domain.ErrPermanent("marshal serve_file effect", err)
	}
	return effect, nil
}
