package report

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"govreport/internal/domain"
)

//go:embed templates.yaml
var predefinedTemplates []byte

// CreateTemplate stores a user template after validating its sub-reports.
func (s *Service) CreateTemplate(ctx context.Context, principal string, req domain.CreateTemplateRequest) (*domain.Template, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	subs := make([]domain.TemplateSubReport, len(req.SubReports))
	for i, sr := range req.SubReports {
		a, err := s.validator.Validate(sr.Config)
		if err != nil {
			return nil, err
		}
		sr.Config = a.Config
		subs[i] = sr
	}
	t, err := s.templates.Create(ctx, &domain.Template{
		Name:         req.Name,
		Description:  req.Description,
		IsPredefined: req.IsPredefined,
		Tags:         req.Tags,
		SubReports:   subs,
		CreatedBy:    principal,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("template created", "template_id", t.ID, "principal", principal)
	return t, nil
}

// GetTemplate returns a template by ID.
func (s *Service) GetTemplate(ctx context.Context, id int64) (*domain.Template, error) {
	return s.templates.GetByID(ctx, id)
}

// ListTemplates returns a page of templates.
func (s *Service) ListTemplates(ctx context.Context, page domain.PageRequest) ([]domain.Template, int64, error) {
	return s.templates.List(ctx, page)
}

// DeleteTemplate removes a template. Only administrators may delete a
// predefined template; the seed restores it on the next start.
func (s *Service) DeleteTemplate(ctx context.Context, caller domain.ContextPrincipal, id int64) error {
	t, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if t.IsPredefined && !caller.IsAdmin {
		return domain.ErrAccessDenied("template %q is predefined and only administrators may delete it", t.Name)
	}
	if err := s.templates.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("template deleted", "template_id", id, "principal", caller.Name, "predefined", t.IsPredefined)
	return nil
}

type templateSeed struct {
	Templates []struct {
		Name        string                     `yaml:"name"`
		Description string                     `yaml:"description"`
		Tags        []string                   `yaml:"tags"`
		SubReports  []domain.TemplateSubReport `yaml:"sub_reports"`
	} `yaml:"templates"`
}

// SeedTemplates creates the predefined templates that do not exist yet,
// together with any tags they use. It is idempotent and returns the number of
// templates created.
func (s *Service) SeedTemplates(ctx context.Context) (int, error) {
	return s.seedTemplates(ctx, predefinedTemplates)
}

func (s *Service) seedTemplates(ctx context.Context, raw []byte) (int, error) {
	var seed templateSeed
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return 0, fmt.Errorf("decode predefined templates: %w", err)
	}

	created := 0
	for _, t := range seed.Templates {
		_, err := s.templates.GetByName(ctx, t.Name)
		if err == nil {
			continue
		}
		if domain.KindOf(err) != domain.KindNotFound {
			return created, fmt.Errorf("lookup template %q: %w", t.Name, err)
		}
		for _, name := range t.Tags {
			if err := s.ensureTag(ctx, name); err != nil {
				return created, err
			}
		}
		_, err = s.CreateTemplate(ctx, domain.SystemPrincipal, domain.CreateTemplateRequest{
			Name:         t.Name,
			Description:  t.Description,
			IsPredefined: true,
			Tags:         t.Tags,
			SubReports:   t.SubReports,
		})
		if err != nil {
			return created, fmt.Errorf("seed template %q: %w", t.Name, err)
		}
		created++
	}
	if created > 0 {
		s.logger.Info("predefined templates seeded", "count", created)
	}
	return created, nil
}

func (s *Service) ensureTag(ctx context.Context, name string) error {
	_, err := s.tags.Create(ctx, &domain.Tag{Name: name, CreatedBy: domain.SystemPrincipal})
	if err != nil && domain.KindOf(err) != domain.KindNameConflict {
		return fmt.Errorf("seed tag %q: %w", name, err)
	}
	return nil
}
