// Package keys wraps the asymmetric-key operations the registry needs:
// keypair generation, reply signing, message verification, and public-key
// validation at the expected size. Signatures are RSA-PSS over SHA-256,
// matching what registered gateways produce.
package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	dErrors "syndic/pkg/domain-errors"
)

// DefaultBits is the required modulus size for gateway keys.
const DefaultBits = 4096

// GenerateKeyPair creates a PEM-encoded RSA keypair of the given size.
func GenerateKeyPair(bits int) (publicPEM, privatePEM string, err error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return "", "", fmt.Errorf("generate keypair: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", "", fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("marshal public key: %w", err)
	}

	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}))
	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	return publicPEM, privatePEM, nil
}

// Sign produces an RSA-PSS signature over data with the PEM private key.
func Sign(privatePEM string, data []byte) ([]byte, error) {
	priv, err := parsePrivate(privatePEM)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], nil)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}

// Verify checks an RSA-PSS signature over data against the PEM public key.
func Verify(publicPEM string, data, signature []byte) bool {
	pub, err := parsePublic(publicPEM)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(data)
	return rsa.VerifyPSS(pub, crypto.SHA256, digest[:], signature, nil) == nil
}

// IsValidKey reports whether the PEM blob parses as an RSA public key of
// exactly the expected modulus size.
func IsValidKey(publicPEM string, bits int) bool {
	pub, err := parsePublic(publicPEM)
	if err != nil {
		return false
	}
	return pub.N.BitLen() == bits
}

func parsePublic(publicPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicPEM))
	if block == nil {
		return nil, dErrors.New(dErrors.CodeInvalidField, "not a PEM public key")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidField, "parse public key")
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidField, "public key is not RSA")
	}
	return pub, nil
}

func parsePrivate(privatePEM string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(privatePEM))
	if block == nil {
		return nil, dErrors.New(dErrors.CodeInvalidField, "not a PEM private key")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidField, "parse private key")
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidField, "private key is not RSA")
	}
	return priv, nil
}
