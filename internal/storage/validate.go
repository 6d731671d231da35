package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// recordValidate checks the struct tags on every record loaded from or
// written to the data directory.
var recordValidate *validator.Validate

func init() {
	recordValidate = validator.New()
}

// validateRecord validates v and flattens field errors into one message that
// names the record kind and identifier.
func validateRecord(kind, id string, v any) error {
	err := recordValidate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating %s %s: %w", kind, id, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid %s %s: %s", kind, id, strings.Join(msgs, "; "))
}
