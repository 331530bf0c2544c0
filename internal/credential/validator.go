package credential

import (
	"fmt"
	"math"
	"strings"

	"starkshield/internal/predicate"
	dErrors "starkshield/pkg/domain-errors"
	"starkshield/pkg/felt"
)

// ValidationResult is the outcome of checking a credential for a predicate.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidationError carries the itemized violations when a caller needs an error value.
type ValidationError struct {
	Predicate predicate.Type
	Errors    []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("credential is not valid for %s: %s", e.Predicate, strings.Join(e.Errors, "; "))
}

// Err returns nil for a valid result, otherwise a validation_failed domain error
// wrapping a *ValidationError.
func (r ValidationResult) Err(p predicate.Type) error {
	if r.Valid {
		return nil
	}
	verr := &ValidationError{Predicate: p, Errors: append([]string(nil), r.Errors...)}
	return &dErrors.Error{Code: dErrors.CodeValidation, Message: verr.Error(), Err: verr}
}

// Validate checks a credential document for the target predicate. It never fails;
// every violation is collected into the result. The function is pure.
func Validate(doc Document, p predicate.Type) ValidationResult {
	errs := []string{}

	for _, name := range RequiredFields {
		if v, ok := doc[name]; !ok || v == nil {
			errs = append(errs, "Missing field: "+name)
		}
	}

	errs = append(errs, checkSignature(doc[FieldSignature])...)

	parsed := map[string]bool{}
	for _, name := range ScalarFields {
		v, ok := doc[name]
		if !ok || v == nil {
			continue
		}
		s, isString := v.(string)
		if !isString {
			errs = append(errs, fmt.Sprintf("%s must be a hex string", name))
			continue
		}
		if !felt.HasHexPrefix(s) {
			errs = append(errs, fmt.Sprintf("%s must start with 0x, got: %s", name, clip(s, 10)))
			continue
		}
		if _, err := felt.Parse(s); err != nil {
			errs = append(errs, fmt.Sprintf("Invalid %s format: %v", name, err))
			continue
		}
		parsed[name] = true
	}

	if parsed[FieldCredentialType] {
		got := doc[FieldCredentialType].(string)
		if !equalsInt(got, p.CredentialType()) {
			errs = append(errs, fmt.Sprintf("Expected credential_type %d (%s), got %s",
				p.CredentialType(), strings.ToLower(p.Label()), got))
		}
	}

	if parsed[FieldAttributeKey] {
		got := doc[FieldAttributeKey].(string)
		if !equalsInt(got, p.AttributeKey()) {
			errs = append(errs, fmt.Sprintf("Expected attribute_key %d (%s), got %s",
				p.AttributeKey(), strings.ToLower(p.Label()), got))
		}
	}

	if parsed[FieldIssuerID] && parsed[FieldIssuerPubKeyX] {
		if !felt.Equal(doc[FieldIssuerID].(string), doc[FieldIssuerPubKeyX].(string)) {
			errs = append(errs, "issuer_id must equal issuer_pub_key_x")
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// ValidateCredential validates a typed credential.
func ValidateCredential(c Credential, p predicate.Type) ValidationResult {
	return Validate(c.Document(), p)
}

func checkSignature(v any) []string {
	if v == nil {
		return nil
	}
	sig, ok := v.([]any)
	if !ok {
		return []string{"Signature must be an array"}
	}
	var errs []string
	if len(sig) != SignatureLength {
		errs = append(errs, fmt.Sprintf("Signature must be %d bytes, got %d", SignatureLength, len(sig)))
	}
	for i, b := range sig {
		n, isNum := b.(float64)
		if !isNum || n != math.Trunc(n) || n < 0 || n > 255 {
			errs = append(errs, fmt.Sprintf("Signature byte %d out of range: %v", i, b))
		}
	}
	return errs
}

func equalsInt(hex string, want int64) bool {
	v, err := felt.Parse(hex)
	if err != nil {
		return false
	}
	return v.IsInt64() && v.Int64() == want
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
