package nullifier

import dErrors "starkshield/pkg/domain-errors"

var errNoRecord = dErrors.New(dErrors.CodeDecoding, "registry returned no record")
