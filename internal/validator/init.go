package validator

import (
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/game"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	// Initialize validation
	validate = validator.New(validator.WithRequiredStructEnabled())
	if err := registerCustom(validate); err != nil {
		panic(err)
	}
}

func GetValidator() *validator.Validate {
	return validate
}

// RegisterGinValidations makes the custom tags available to gin's binding tags.
func RegisterGinValidations() error {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		return registerCustom(v)
	}
	return nil
}

func registerCustom(v *validator.Validate) error {
	// mark: a player mark, X or O
	if err := v.RegisterValidation("mark", func(fl validator.FieldLevel) bool {
		return game.PlayerMark(fl.Field().String()).Valid()
	}); err != nil {
		return err
	}
	// cell: a board cell, empty or a player mark
	return v.RegisterValidation("cell", func(fl validator.FieldLevel) bool {
		m := game.PlayerMark(fl.Field().String())
		return m == game.None || m.Valid()
	})
}
