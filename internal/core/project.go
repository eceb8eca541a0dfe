package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Tolerances are the accepted destruction tolerance levels, mildest first.
var Tolerances = []string{"Zero", "Rattles", "Flex", "Breakage", "TERMINATION"}

const (
	MinFrequency     = 15
	MaxFrequency     = 75
	DefaultFrequency = 32
)

// ProjectContext describes the simulated system. It is captured once per
// run and never mutated while the run is in flight.
type ProjectContext struct {
	Car       string `json:"car" validate:"required,max=200"`
	Subwoofer string `json:"subwoofer" validate:"required,max=200"`
	Power     string `json:"power" validate:"required,max=100"`
	Fs        int    `json:"fs" validate:"min=15,max=75"`
	Tolerance string `json:"tolerance" validate:"required,oneof=Zero Rattles Flex Breakage TERMINATION"`
	Notes     string `json:"notes" validate:"max=4000"`
}

// DefaultProject returns the form defaults.
func DefaultProject() ProjectContext {
	return ProjectContext{
		Car:       "2010 Honda Civic",
		Subwoofer: "2x Sundown Zv6 15",
		Power:     "5000W",
		Fs:        DefaultFrequency,
		Tolerance: "Flex",
	}
}

var validate = validator.New()

// Validate checks the context before a run starts.
func (p ProjectContext) Validate() error {
	return validationError(validate.Struct(p))
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Message: fmt.Sprintf("failed %q rule", fe.Tag()),
			Value:   fe.Value(),
		}
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

// String renders the context the way every stage prompt embeds it.
func (p ProjectContext) String() string {
	return fmt.Sprintf("Car: %s, Sub: %s, Power: %s, Fs: %d, Tolerance: %s, comments: %s",
		p.Car, p.Subwoofer, p.Power, p.Fs, p.Tolerance, p.Notes)
}

// Recommender form choices.
var (
	MusicStyles = []string{"Decaf / Slowed (20-30Hz)", "Rap / HipHop (30-40Hz)", "EDM / Punchy (40Hz+)", "Rock / Metal"}
	Goals       = []string{"Violent Wind (Hairtricks)", "Score (SPL Numbers)", "Sound Quality"}
)

// Requirements is what the user asks the recommender for.
type Requirements struct {
	Budget string `json:"budget" validate:"required,max=50"`
	Music  string `json:"music" validate:"required,max=100"`
	Goal   string `json:"goal" validate:"required,max=100"`
}

// DefaultRequirements returns the recommender form defaults.
func DefaultRequirements() Requirements {
	return Requirements{Budget: "1500", Music: MusicStyles[0], Goal: Goals[0]}
}

func (r Requirements) String() string {
	return fmt.Sprintf("Budget: %s, Music: %s, Goal: %s", r.Budget, r.Music, r.Goal)
}

// Validate checks the recommender form.
func (r Requirements) Validate() error {
	return validationError(validate.Struct(r))
}
