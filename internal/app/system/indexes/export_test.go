package indexes

// Test-only aliases for the external indexes_test package.
var (
	KeySig            = keySig
	IsDuplicateKeyErr = isDuplicateKeyErr
)
