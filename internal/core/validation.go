package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/JonMunkholm/cpleditor/internal/codec"
	"github.com/go-playground/validator/v10"
)

// MaxPlayerNameLength is the longest player name, in characters.
const MaxPlayerNameLength = 48

// UpsertInput is the data collected by the create/edit form.
type UpsertInput struct {
	CommentaryID int    `json:"commentaryId" validate:"gte=0,lte=999999"`
	PlayerName   string `json:"playerName" validate:"min=1,max=48"`
}

func (in UpsertInput) toCodec() codec.Upsert {
	return codec.Upsert{CommentaryID: in.CommentaryID, PlayerName: in.PlayerName}
}

// FieldError is one failed input rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every rule an UpsertInput broke. It is raised
// before the input reaches the Record Store.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, fe := range e.Fields {
		parts[i] = fmt.Sprintf("invalid %s: %s", fieldLabel(fe.Field), fe.Message)
	}
	return strings.Join(parts, "; ")
}

// Message returns the first field message, for short notifications.
func (e *ValidationError) Message() string {
	if len(e.Fields) == 0 {
		return ""
	}
	return e.Fields[0].Message
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateUpsert checks the id range and the player name length.
func ValidateUpsert(in UpsertInput) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate input: %w", err)
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Message: ruleMessage(fe.Field(), fe.Tag()),
		})
	}
	return out
}

func ruleMessage(field, tag string) string {
	switch field + "." + tag {
	case "commentaryId.gte":
		return "Commentary id must be at least 0."
	case "commentaryId.lte":
		return fmt.Sprintf("Commentary id must be less than or equal to %d.", MaxCommentaryID)
	case "playerName.min":
		return "Player name must be at least 1 character."
	case "playerName.max":
		return fmt.Sprintf("Player name must not exceed %d characters.", MaxPlayerNameLength)
	default:
		return fmt.Sprintf("%s failed %q rule.", field, tag)
	}
}

func fieldLabel(field string) string {
	switch field {
	case "commentaryId":
		return "commentary id"
	case "playerName":
		return "player name"
	default:
		return field
	}
}
