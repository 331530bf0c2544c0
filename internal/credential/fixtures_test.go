package credential

import "starkshield/internal/predicate"

func testSignature() []int {
	sig := make([]int, SignatureLength)
	for i := range sig {
		sig[i] = (i * 7) % 256
	}
	return sig
}

func ageCredential() Credential {
	return Credential{
		SubjectID:      "0x0a1b2c",
		IssuerID:       "0x1f2e3d4c",
		CredentialType: "0x0",
		AttributeKey:   "0x1",
		AttributeValue: "0x19",
		IssuedAt:       "0x65000000",
		ExpiresAt:      "0x7a000000",
		SecretSalt:     "0xdeadbeef",
		Signature:      testSignature(),
		IssuerPubKeyX:  "0x1f2e3d4c",
		IssuerPubKeyY:  "0x5a6b7c8d",
	}
}

func membershipCredential() Credential {
	c := ageCredential()
	c.CredentialType = "0x1"
	c.AttributeKey = "0x2"
	c.AttributeValue = "0x65"
	return c
}

func credentialFor(p predicate.Type) Credential {
	if p == predicate.Membership {
		return membershipCredential()
	}
	return ageCredential()
}
