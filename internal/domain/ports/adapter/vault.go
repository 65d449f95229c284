package adapter

// CredentialVault seals credential bundles for at-rest storage. Decryption
// must detect tampering rather than return altered plaintext.
type CredentialVault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
