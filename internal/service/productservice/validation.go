package productservice

import (
	"reflect"
	"strings"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Regras numéricas (min=0) sobre decimal.Decimal comparam o valor como float64.
	validate.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func decimalValue(v reflect.Value) interface{} {
	if d, ok := v.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

// ValidateProduct aplica as regras de cadastro e devolve um ValidationError legível.
func ValidateProduct(p domain.Product) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperror.NewInternalError("falha ao validar produto", err)
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		msgs = append(msgs, validationMessage(e))
	}
	return apperror.NewValidationError(strings.Join(msgs, "; "))
}

func validationMessage(e validator.FieldError) string {
	field := e.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch e.Tag() {
	case "required":
		return field + " é obrigatório"
	case "min":
		return field + " deve ser no mínimo " + e.Param()
	case "max":
		return field + " deve ter no máximo " + e.Param() + " caracteres"
	case "oneof":
		return field + " deve ser um de: " + e.Param()
	default:
		return field + " é inválido"
	}
}
