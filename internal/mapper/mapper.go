// Package mapper turns a normalized xmlsource.Source into jobs.
package mapper

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/amishk599/personiojobs/internal/model"
	"github.com/amishk599/personiojobs/internal/xmlsource"
)

// positionDTO mirrors one <position> element. Unknown keys are ignored.
type positionDTO struct {
	ID                 string          `mapstructure:"id" validate:"required"`
	Subcompany         string          `mapstructure:"subcompany"`
	Office             string          `mapstructure:"office"`
	Department         string          `mapstructure:"department"`
	RecruitingCategory string          `mapstructure:"recruitingCategory"`
	Name               string          `mapstructure:"name" validate:"required"`
	JobDescriptions    descriptionsDTO `mapstructure:"jobDescriptions"`
	EmploymentType     string          `mapstructure:"employmentType" validate:"required,employment_type"`
	Seniority          string          `mapstructure:"seniority" validate:"required,seniority"`
	Schedule           string          `mapstructure:"schedule" validate:"required,schedule"`
	YearsOfExperience  string          `mapstructure:"yearsOfExperience" validate:"omitempty,years_of_experience"`
	Keywords           string          `mapstructure:"keywords"`
	Occupation         string          `mapstructure:"occupation"`
	OccupationCategory string          `mapstructure:"occupationCategory"`
	CreatedAt          string          `mapstructure:"createdAt" validate:"required"`
}

type descriptionsDTO struct {
	JobDescription []descriptionDTO `mapstructure:"jobDescription"`
}

type descriptionDTO struct {
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
}

var enumerations = map[string][]string{
	"employment_type":     model.EmploymentTypes,
	"seniority":           model.Seniorities,
	"schedule":            model.Schedules,
	"years_of_experience": model.YearsOfExperiences,
}

// Mapper validates feed positions and builds jobs from them.
type Mapper struct {
	validate *validator.Validate
}

// New returns a Mapper with the job enumerations registered as validation tags.
func New() *Mapper {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		return name
	})
	if err := registerEnumerations(v, enumerations); err != nil {
		panic(fmt.Sprintf("mapper: %v", err))
	}
	return &Mapper{validate: v}
}

// registerEnumerations adds one validation tag per enumeration that accepts
// only the listed values.
func registerEnumerations(v *validator.Validate, enums map[string][]string) error {
	for tag, allowed := range enums {
		allowed := allowed
		err :=v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return slices.Contains(allowed, fl.Field().String())
		})
		if err != nil {
			return fmt.Errorf("registering %q validation: %w", tag, err)
		}
	}
	return nil
}

// textHook trims element text and decodes an empty element such as
// <jobDescriptions/> into an empty struct.
func textHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	text, ok := data.(string)
	if !ok {
		return data, nil
	}
	text = strings.TrimSpace(text)
	if to.Kind() == reflect.Struct && text == "" {
		return map[string]any{}, nil
	}
	return text, nil
}

// Collection paths of the Personio feed that hold repeated elements.
const (
	PositionsPath    = "position"
	DescriptionsPath = "position.*.jobDescriptions.jobDescription"
)

// MapXML parses a raw feed payload, normalizes its repeated elements and
// maps the positions into jobs.
func (m *Mapper) MapXML(payload []byte) ([]model.Job, error) {
	source, err := xmlsource.Parse(payload)
	if err != nil {
		return nil, err
	}
	for _, path := range []string{PositionsPath, DescriptionsPath} {
		source, err = source.NormalizeListAt(path)
		if err != nil {
			return nil, err
		}
	}
	return m.Map(source)
}

// Map maps source["position"] into jobs. The source must have been
// normalized for "position" and "position.*.jobDescriptions.jobDescription".
// Every failing field is reported in a single *model.MappingError.
func (m *Mapper) Map(source xmlsource.Source) ([]model.Job, error) {
	var positions []any
	switch v := source["position"].(type) {
	case nil:
	case []any:
		positions = v
	default:
		return nil, &model.MappingError{Errors: []model.FieldError{{Path: "position", Message: "expected list of positions"}}}
	}

	jobs := make([]model.Job, 0, len(positions))
	var fieldErrs []model.FieldError
	for i, raw := range positions {
		path := fmt.Sprintf("position.%d", i)
		job, errs := m.mapPosition(raw, path)
		if len(errs) > 0 {
			fieldErrs = append(fieldErrs, errs...)
			continue
		}
		jobs = append(jobs, job)
	}

	if len(fieldErrs) > 0 {
		return nil, &model.MappingError{Errors: fieldErrs}
	}
	return jobs, nil
}

func (m *Mapper) mapPosition(raw any, path string) (model.Job, []model.FieldError) {
	node, ok := raw.(map[string]any)
	if !ok {
		return model.Job{}, []model.FieldError{{Path: path, Message: "expected mapping"}}
	}

	var dto positionDTO
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.DecodeHookFuncType(textHook),
		WeaklyTypedInput: true,
		Result:           &dto,
	})
	if err != nil {
		return model.Job{}, []model.FieldError{{Path: path, Message: err.Error()}}
	}
	if err := dec.Decode(node); err != nil {
		return model.Job{}, []model.FieldError{{Path: path, Message: err.Error()}}
	}

	var errs []model.FieldError
	if err := m.validate.Struct(dto); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return model.Job{}, []model.FieldError{{Path: path, Message: err.Error()}}
		}
		for _, fe := range verrs {
			errs = append(errs, model.FieldError{Path: path + "." + fe.Field(), Message: describe(fe)})
		}
	}

	var id int64
	if dto.ID != "" {
		id, err = strconv.ParseInt(dto.ID, 10, 64)
		if err != nil || id <= 0 {
			errs = append(errs, model.FieldError{Path: path + ".id", Message: fmt.Sprintf("invalid id %q, expected a positive integer", dto.ID)})
		}
	}

	var createdAt *time.Time
	if dto.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339, dto.CreatedAt)
		if err != nil {
			errs = append(errs, model.FieldError{Path: path + ".createdAt", Message: fmt.Sprintf("invalid date %q, expected RFC 3339", dto.CreatedAt)})
		} else {
			createdAt = &t
		}
	}

	if len(errs) > 0 {
		return model.Job{}, errs
	}

	descriptions := make([]model.JobDescription, 0, len(dto.JobDescriptions.JobDescription))
	for i, d := range dto.JobDescriptions.JobDescription {
		descriptions = append(descriptions, model.JobDescription{
			Sorting:  i,
			Header:   d.Name,
			Bodytext: d.Value,
		})
	}

	return model.NewJob(model.Job{
		PersonioID:         id,
		Subcompany:         dto.Subcompany,
		Office:             dto.Office,
		Department:         dto.Department,
		RecruitingCategory: dto.RecruitingCategory,
		Name:               dto.Name,
		Descriptions:       descriptions,
		EmploymentType:     dto.EmploymentType,
		Seniority:          dto.Seniority,
		Schedule:           dto.Schedule,
		YearsOfExperience:  dto.YearsOfExperience,
		Keywords:           dto.Keywords,
		Occupation:         dto.Occupation,
		OccupationCategory: dto.OccupationCategory,
		CreatedAt:          createdAt,
	}), nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	default:
		if allowed, ok := enumerations[fe.Tag()]; ok {
			return fmt.Sprintf("invalid value %q, expected one of: %s", fe.Value(), strings.Join(allowed, ", "))
		}
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
