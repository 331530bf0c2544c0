// Package credential loads issuer-signed attribute credentials, checks them against
// a target predicate and maps them onto circuit inputs.
package credential

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// SignatureLength is the byte length of an issuer signature.
const SignatureLength = 64

// Field names as they appear in the credential file.
const (
	FieldSubjectID      = "subject_id"
	FieldIssuerID       = "issuer_id"
	FieldCredentialType = "credential_type"
	FieldAttributeKey   = "attribute_key"
	FieldAttributeValue = "attribute_value"
	FieldIssuedAt       = "issued_at"
	FieldExpiresAt      = "expires_at"
	FieldSecretSalt     = "secret_salt"
	FieldSignature      = "signature"
	FieldIssuerPubKeyX  = "issuer_pub_key_x"
	FieldIssuerPubKeyY  = "issuer_pub_key_y"
)

// RequiredFields lists every field a credential must carry, in report order.
var RequiredFields = []string{
	FieldSubjectID,
	FieldIssuerID,
	FieldCredentialType,
	FieldAttributeKey,
	FieldAttributeValue,
	FieldIssuedAt,
	FieldExpiresAt,
	FieldSecretSalt,
	FieldSignature,
	FieldIssuerPubKeyX,
	FieldIssuerPubKeyY,
}

// ScalarFields are the hex-encoded field-element fields.
var ScalarFields = []string{
	FieldSubjectID,
	FieldIssuerID,
	FieldCredentialType,
	FieldAttributeKey,
	FieldAttributeValue,
	FieldIssuedAt,
	FieldExpiresAt,
	FieldSecretSalt,
	FieldIssuerPubKeyX,
	FieldIssuerPubKeyY,
}

// PrivateFields are the scalar fields passed to the circuit as private inputs.
var PrivateFields = ScalarFields[:8]

// Credential is an issuer-signed attestation over one private attribute.
// It is immutable input: nothing in this module modifies a Credential.
type Credential struct {
	SubjectID      string `json:"subject_id"`
	IssuerID       string `json:"issuer_id"`
	CredentialType string `json:"credential_type"`
	AttributeKey   string `json:"attribute_key"`
	AttributeValue string `json:"attribute_value"`
	IssuedAt       string `json:"issued_at"`
	ExpiresAt      string `json:"expires_at"`
	SecretSalt     string `json:"secret_salt"`
	Signature      []int  `json:"signature"`
	IssuerPubKeyX  string `json:"issuer_pub_key_x"`
	IssuerPubKeyY  string `json:"issuer_pub_key_y"`

	// Reference data emitted by the issuer; never used as circuit input.
	CredentialHash string `json:"credential_hash,omitempty"`
	Nullifier      string `json:"nullifier,omitempty"`
	DappContextID  string `json:"dapp_context_id,omitempty"`
}

// scalar returns the value of a scalar field by name.
func (c Credential) scalar(name string) string {
	switch name {
	case FieldSubjectID:
		return c.SubjectID
	case FieldIssuerID:
		return c.IssuerID
	case FieldCredentialType:
		return c.CredentialType
	case FieldAttributeKey:
		return c.AttributeKey
	case FieldAttributeValue:
		return c.AttributeValue
	case FieldIssuedAt:
		return c.IssuedAt
	case FieldExpiresAt:
		return c.ExpiresAt
	case FieldSecretSalt:
		return c.SecretSalt
	case FieldIssuerPubKeyX:
		return c.IssuerPubKeyX
	case FieldIssuerPubKeyY:
		return c.IssuerPubKeyY
	}
	return ""
}

// Document is the untyped form of a credential file, as decoded from JSON.
// Validation runs on the document so absent and wrongly-typed fields can be
// told apart.
type Document map[string]any

// Document returns the untyped view of c. Empty strings and a nil signature are
// treated as absent.
func (c Credential) Document() Document {
	doc := Document{}
	for _, name := range ScalarFields {
		if v := c.scalar(name); v != "" {
			doc[name] = v
		}
	}
	if c.Signature != nil {
		sig := make([]any, len(c.Signature))
		for i, b := range c.Signature {
			sig[i] = float64(b)
		}
		doc[FieldSignature] = sig
	}
	return doc
}

// Credential converts a document into the typed form. Call it after Validate
// reports the document valid.
func (d Document) Credential() (Credential, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return Credential{}, fmt.Errorf("encode credential document: %w", err)
	}
	var c Credential
	if err := json.Unmarshal(raw, &c); err != nil {
		return Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	return c, nil
}

// Decode parses credential JSON into a document.
func Decode(data []byte) (Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse credential json: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("parse credential json: document is null")
	}
	return doc, nil
}

// Load reads and parses a credential file.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}
	return Decode(data)
}
