package keygen

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// KeyPair holds a PEM private key and its OpenSSH authorized_keys public key.
type KeyPair struct {
	PrivateKeyPEM []byte
	PublicKey     string
}

// GenerateRSAKeyPair generates a new RSA key pair of the given size.
func GenerateRSAKeyPair(bits int) (*KeyPair, error) {
	if bits < 1024 {
		return nil, fmt.Errorf("rsa key size %d too small", bits)
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	if err := priv.Validate(); err != nil {
		return nil, fmt.Errorf("validate rsa key: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})

	pub, err := ssh.NewPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("ssh public key: %w", err)
	}
	return &KeyPair{
		PrivateKeyPEM: privPEM,
		PublicKey:     strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub))),
	}, nil
}

// PublicKeyFromPrivatePEM recomputes the authorized_keys public key for a PEM private key.
func PublicKeyFromPrivatePEM(privPEM []byte) (string, error) {
	signer, err := ssh.ParsePrivateKey(privPEM)
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(signer.PublicKey()))), nil
}
