package types

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Tags reported by the struct-level identifier rule.
const (
	TagRequiredDomestic = "required_domestic"
	TagRequiredForeign  = "required_foreign"
	TagForeignNoCPF     = "foreign_no_cpf"
	TagNonZeroCPF       = "nonzero_cpf"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the Student rules registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterStructValidation(studentIdentifierRule, Student{})
	})
	return validate
}

// ValidateStudent checks field formats and the identifier invariant:
// a domestic student carries a non-zero 11-digit CPF, a foreign student
// carries an email and no CPF.
// The returned error is a validator.ValidationErrors when a rule fails.
func ValidateStudent(s Student) error {
	return Validator().Struct(s)
}

func studentIdentifierRule(sl validator.StructLevel) {
	s := sl.Current().Interface().(Student)

	if s.IsForeign {
		if s.CPF != nil {
			sl.ReportError(s.CPF, "cpf", "CPF", TagForeignNoCPF, "")
		}
		if s.Email == nil {
			sl.ReportError(s.Email, "email", "Email", TagRequiredForeign, "")
		}
		return
	}

	if s.CPF == nil {
		sl.ReportError(s.CPF, "cpf", "CPF", TagRequiredDomestic, "")
		return
	}
	if strings.Trim(*s.CPF, "0") == "" {
		sl.ReportError(s.CPF, "cpf", "CPF", TagNonZeroCPF, "")
	}
}
