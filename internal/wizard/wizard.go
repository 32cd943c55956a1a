// Package wizard validates the six-step project setup form and turns the
// accumulated draft into the configuration stored on a project.
package wizard

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"policybolt/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

type Step string

const (
	StepDetails    Step = "details"
	StepLanguage   Step = "language"
	StepGeography  Step = "geography"
	StepAIUsage    Step = "ai_usage"
	StepHosting    Step = "hosting"
	StepRepository Step = "repository"
)

// Steps lists the wizard steps in the order they are presented.
var Steps = []Step{StepDetails, StepLanguage, StepGeography, StepAIUsage, StepHosting, StepRepository}

const (
	ScopeWorldwide = "worldwide"
	ScopeRegions   = "regions"
	HostingOther   = "other"
)

var ErrUnknownStep = errors.New("unknown wizard step")

// Draft is the form state accumulated across all steps.
type Draft struct {
	Name               string   `json:"name"`
	Purpose            string   `json:"purpose"`
	Language           string   `json:"language"`
	GeographyScope     string   `json:"geography_scope"`
	Regions            []string `json:"regions"`
	UsesAI             bool     `json:"uses_ai"`
	AIProviders        []string `json:"ai_providers"`
	AIPurposes         []string `json:"ai_purposes"`
	HostingProvider    string   `json:"hosting_provider"`
	HostingDescription string   `json:"hosting_description"`
	RepositoryURL      string   `json:"repository_url"`
}

type detailsStep struct {
	Name    string `json:"name" validate:"required,max=100"`
	Purpose string `json:"purpose" validate:"required,max=500"`
}

type languageStep struct {
	Language string `json:"language" validate:"required,oneof=en es fr de pt it nl"`
}

type geographyStep struct {
	GeographyScope string   `json:"geography_scope" validate:"required,oneof=worldwide regions"`
	Regions        []string `json:"regions" validate:"dive,oneof=eu uk us ca br au in jp"`
}

type aiUsageStep struct {
	AIProviders []string `json:"ai_providers" validate:"dive,oneof=openai anthropic google mistral meta other"`
	AIPurposes  []string `json:"ai_purposes" validate:"dive,required,max=200"`
}

type hostingStep struct {
	HostingProvider    string `json:"hosting_provider" validate:"required,oneof=vercel netlify aws gcp azure supabase heroku other"`
	HostingDescription string `json:"hosting_description" validate:"max=200"`
}

type repositoryStep struct {
	RepositoryURL string `json:"repository_url" validate:"required,githubrepo"`
}

// FieldError describes one invalid field of the draft.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a step does not pass validation.
type ValidationError struct {
	Step   Step
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := lo.Map(e.Fields, func(f FieldError, _ int) string {
		return f.Field + " " + f.Message
	})
	return fmt.Sprintf("wizard step %s: %s", e.Step, strings.Join(msgs, "; "))
}

// Wizard validates drafts. It is safe for concurrent use.
type Wizard struct {
	validate *validator.Validate
}

func New() *Wizard {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("githubrepo", func(fl validator.FieldLevel) bool {
		_, err := ParseRepositoryURL(fl.Field().String())
		return err == nil
	})
	return &Wizard{validate: v}
}

// ParseStep converts a path segment into a Step.
func ParseStep(s string) (Step, error) {
	step := Step(strings.ToLower(strings.TrimSpace(s)))
	if !lo.Contains(Steps, step) {
		return "", fmt.Errorf("%w: %q", ErrUnknownStep, s)
	}
	return step, nil
}

// Next returns the step after the given one. The second value is false on the
// last step.
func Next(step Step) (Step, bool) {
	i := lo.IndexOf(Steps, step)
	if i < 0 || i == len(Steps)-1 {
		return "", false
	}
	return Steps[i+1], true
}

// Prev returns the step before the given one. The second value is false on the
// first step.
func Prev(step Step) (Step, bool) {
	i := lo.IndexOf(Steps, step)
	if i <= 0 {
		return "", false
	}
	return Steps[i-1], true
}

// Normalize trims input and clears fields made irrelevant by other answers.
func Normalize(d Draft) Draft {
	d.Name = strings.TrimSpace(d.Name)
	d.Purpose = strings.TrimSpace(d.Purpose)
	d.Language = strings.ToLower(strings.TrimSpace(d.Language))
	d.GeographyScope = strings.ToLower(strings.TrimSpace(d.GeographyScope))
	d.Regions = normalizeList(d.Regions, true)
	if d.GeographyScope == ScopeWorldwide {
		d.Regions = nil
	}

	d.AIProviders = normalizeList(d.AIProviders, true)
	d.AIPurposes = normalizeList(d.AIPurposes, false)
	if !d.UsesAI {
		d.AIProviders = nil
		d.AIPurposes = nil
	}

	d.HostingProvider = strings.ToLower(strings.TrimSpace(d.HostingProvider))
	d.HostingDescription = strings.TrimSpace(d.HostingDescription)
	if d.HostingProvider != HostingOther {
		d.HostingDescription = ""
	}

	d.RepositoryURL = strings.TrimSpace(d.RepositoryURL)
	if repo, err := ParseRepositoryURL(d.RepositoryURL); err == nil {
		d.RepositoryURL = repo.URL()
	}
	return d
}

func normalizeList(in []string, lower bool) []string {
	out := lo.FilterMap(in, func(s string, _ int) (string, bool) {
		s = strings.TrimSpace(s)
		if lower {
			s = strings.ToLower(s)
		}
		return s, s != ""
	})
	if len(out) == 0 {
		return nil
	}
	return lo.Uniq(out)
}

// ValidateStep normalizes the draft and validates a single step. The
// normalized draft is returned even when validation fails.
func (w *Wizard) ValidateStep(step Step, d Draft) (Draft, error) {
	d = Normalize(d)

	var fields []FieldError
	switch step {
	case StepDetails:
		fields = w.check(detailsStep{Name: d.Name, Purpose: d.Purpose})
	case StepLanguage:
		fields = w.check(languageStep{Language: d.Language})
	case StepGeography:
		fields = w.check(geographyStep{GeographyScope: d.GeographyScope, Regions: d.Regions})
		if d.GeographyScope == ScopeRegions && len(d.Regions) == 0 {
			fields = append(fields, FieldError{Field: "regions", Message: "must include at least one region"})
		}
	case StepAIUsage:
		fields = w.check(aiUsageStep{AIProviders: d.AIProviders, AIPurposes: d.AIPurposes})
		if d.UsesAI && len(d.AIProviders) == 0 {
			fields = append(fields, FieldError{Field: "ai_providers", Message: "must include at least one provider"})
		}
	case StepHosting:
		fields = w.check(hostingStep{HostingProvider: d.HostingProvider, HostingDescription: d.HostingDescription})
		if d.HostingProvider == HostingOther && d.HostingDescription == "" {
			fields = append(fields, FieldError{Field: "hosting_description", Message: "is required when hosting provider is other"})
		}
	case StepRepository:
		fields = w.check(repositoryStep{RepositoryURL: d.RepositoryURL})
	default:
		return d, fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}

	if len(fields) > 0 {
		return d, &ValidationError{Step: step, Fields: fields}
	}
	return d, nil
}

// Validate checks every step in order and stops at the first failing one.
func (w *Wizard) Validate(d Draft) (Draft, error) {
	d = Normalize(d)
	for _, step := range Steps {
		if _, err := w.ValidateStep(step, d); err != nil {
			return d, err
		}
	}
	return d, nil
}

func (w *Wizard) check(s any) []FieldError {
	err := w.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Message: err.Error()}}
	}
	return lo.Map(verrs, func(fe validator.FieldError, _ int) FieldError {
		return FieldError{Field: fieldName(fe), Message: message(fe)}
	})
}

// fieldName strips the struct prefix and any slice index, so
// "geographyStep.regions[1]" becomes "regions".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if i := strings.Index(ns, "["); i >= 0 {
		ns = ns[:i]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return fmt.Sprintf("has unsupported value %q (allowed: %s)", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "githubrepo":
		return "must be a GitHub repository URL like https://github.com/owner/repo"
	default:
		return "is invalid"
	}
}

// Config builds the stored project configuration from a validated draft.
func Config(d Draft) model.ProjectConfig {
	d = Normalize(d)
	return model.ProjectConfig{
		Purpose:  d.Purpose,
		Language: d.Language,
		Geography: model.GeographyConfig{
			Scope:      d.GeographyScope,
			Regions:    lo.Ternary(d.Regions == nil, []string{}, d.Regions),
			Frameworks: Frameworks(d.GeographyScope, d.Regions),
		},
		AI: model.AIUsageConfig{
			UsesAI:    d.UsesAI,
			Providers: lo.Ternary(d.AIProviders == nil, []string{}, d.AIProviders),
			Purposes:  lo.Ternary(d.AIPurposes == nil, []string{}, d.AIPurposes),
		},
		Hosting: model.HostingConfig{
			Provider:    d.HostingProvider,
			Description: d.HostingDescription,
		},
	}
}

// FromProject rebuilds a draft from a stored project so it can be edited.
func FromProject(p *model.Project) Draft {
	return Draft{
		Name:               p.Name,
		Purpose:            p.Config.Purpose,
		Language:           p.Config.Language,
		GeographyScope:     p.Config.Geography.Scope,
		Regions:            p.Config.Geography.Regions,
		UsesAI:             p.Config.AI.UsesAI,
		AIProviders:        p.Config.AI.Providers,
		AIPurposes:         p.Config.AI.Purposes,
		HostingProvider:    p.Config.Hosting.Provider,
		HostingDescription: p.Config.Hosting.Description,
		RepositoryURL:      p.RepositoryURL,
	}
}
