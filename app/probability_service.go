package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gosuperior/domain/core"
	"gosuperior/domain/superior"
	"gosuperior/domain/trial"
	"gosuperior/internal"
	"gosuperior/internal/engine"
	"gosuperior/internal/errors"
	"gosuperior/ports"
)

// ProbabilityService reads a trial and its posterior, estimates the
// probability of superior performance and optionally stores the result.
type ProbabilityService struct {
	observations ports.ObservationSourcePort
	posterior    ports.PosteriorSourcePort
	repository   ports.ResultRepositoryPort // nil disables persistence
	engine       *engine.Engine
	columns      trial.Columns
	logger       *internal.Logger
}

// ExportTarget names one file to write per run.
type ExportTarget struct {
	Name     string
	Exporter ports.ExporterPort
}

// NewProbabilityService creates a probability service
func NewProbabilityService(
	observations ports.ObservationSourcePort,
	posterior ports.PosteriorSourcePort,
	repository ports.ResultRepositoryPort,
	eng *engine.Engine,
	columns trial.Columns,
	logger *internal.Logger,
) *ProbabilityService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ProbabilityService{
		observations: observations,
		posterior:    posterior,
		repository:   repository,
		engine:       eng,
		columns:      columns,
		logger:       logger,
	}
}

// Estimate runs one estimation. The region level is used when the configured
// columns name a region column. Nothing is persisted when the estimation fails.
func (s *ProbabilityService) Estimate(ctx context.Context, spec superior.SelectionSpec) (*superior.Result, error) {
	startTime := time.Now()

	if err := spec.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid selection")
	}
	if s.observations == nil || s.posterior == nil {
		return nil, errors.InternalError("probability service has no trial or posterior source")
	}

	obs, err := s.observations.ReadObservations(ctx, s.columns)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read trial observations")
	}
	set, err := s.posterior.ReadPosterior(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read posterior draws")
	}

	result, err := s.engine.Run(ctx, engine.Input{
		Observations: obs,
		Posterior:    set,
		Spec:         spec,
		UseRegion:    s.columns.UsesRegion(),
	})
	if err != nil {
		if core.IsPreconditionError(err) {
			s.logger.Warn("[ProbabilityService] Rejected input: %v", err)
		}
		return nil, errors.Wrap(err, "estimation failed")
	}

	if s.repository != nil {
		if err := s.repository.Save(ctx, result); err != nil {
			return nil, errors.DatabaseError("failed to persist result", err)
		}
	}

	s.logger.Info("[ProbabilityService] Run %s: %d observations, %d genotypes, %d samples in %v",
		result.RunID, len(obs), len(result.Genotypes), result.Samples, time.Since(startTime))
	return result, nil
}

// Export writes every target into dir as <run>_<name><ext> and returns the
// written paths.
func (s *ProbabilityService) Export(ctx context.Context, result *superior.Result, dir string, targets []ExportTarget) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create export directory")
	}

	paths := make([]string, 0, len(targets))
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		name := fmt.Sprintf("%s_%s%s", result.RunID, target.Name, target.Exporter.Extension())
		path := filepath.Join(dir, name)
		if err := writeExport(ctx, path, result, target.Exporter); err != nil {
			return paths, errors.Wrapf(err, "failed to export %s", target.Name)
		}
		paths = append(paths, path)
		s.logger.Debug("[ProbabilityService] Wrote %s", path)
	}
	return paths, nil
}

func writeExport(ctx context.Context, path string, result *superior.Result, exporter ports.ExporterPort) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := exporter.Export(ctx, result, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// GetRun loads a stored run
func (s *ProbabilityService) GetRun(ctx context.Context, id core.RunID) (*superior.Result, error) {
	if s.repository == nil {
		return nil, errors.ConfigInvalid("result persistence is disabled")
	}
	result, err := s.repository.Get(ctx, id)
	if err != nil {
		if core.IsNotFoundError(err) {
			return nil, errors.WithCode(errors.CodeNotFound, err)
		}
		return nil, errors.DatabaseError("failed to load run", err)
	}
	return result, nil
}

// ListRuns lists stored runs, newest first
func (s *ProbabilityService) ListRuns(ctx context.Context, limit, offset int) ([]ports.RunSummary, error) {
	if s.repository == nil {
		return nil, errors.ConfigInvalid("result persistence is disabled")
	}
	runs, err := s.repository.List(ctx, limit, offset)
	if err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}
	return runs, nil
}

// DeleteRun removes a stored run
func (s *ProbabilityService) DeleteRun(ctx context.Context, id core.RunID) error {
	if s.repository == nil {
		return errors.ConfigInvalid("result persistence is disabled")
	}
	if err := s.repository.Delete(ctx, id); err != nil {
		if core.IsNotFoundError(err) {
			return errors.WithCode(errors.CodeNotFound, err)
		}
		return errors.DatabaseError("failed to delete run", err)
	}
	s.logger.Info("[ProbabilityService] Deleted run %s", id)
	return nil
}

// Report renders a stored run
func (s *ProbabilityService) Report(ctx context.Context, id core.RunID, renderer ports.RendererPort) ([]byte, error) {
	result, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := renderer.Render(result)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render report")
	}
	return out, nil
}
