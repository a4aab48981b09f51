package cas

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// PasswordPrefix is prepended to the base64 encoded password by the portal's
// login page before it is sent.
const PasswordPrefix = "{gilight}_"

// EncodePassword encodes a plaintext password the way the portal login page does.
func EncodePassword(password string) string {
	return PasswordPrefix + base64.StdEncoding.EncodeToString([]byte(password))
}

// DecodePassword reverses EncodePassword.
func DecodePassword(encoded string) (string, error) {
	raw, ok := strings.CutPrefix(encoded, PasswordPrefix)
	if !ok {
		return "", fmt.Errorf("decode password: missing %q prefix", PasswordPrefix)
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("decode password: %w", err)
	}
	return string(decoded), nil
}

type CredentialSource int

const (
	SourcePassword CredentialSource = iota
	SourceQR
)

func (s CredentialSource) String() string {
	if s == SourceQR {
		return "qr"
	}
	return "password"
}

// Credential is what gets sent to the portal and the CAS login form, the
// password is always held in its encoded form.
type Credential struct {
	Username string
	Encoded  string
	Source   CredentialSource
}

// PasswordCredential builds a credential from a plaintext password.
func PasswordCredential(username, password string) Credential {
	return Credential{
		Username: username,
		Encoded:  EncodePassword(password),
		Source:   SourcePassword,
	}
}

// EncodedCredential builds a credential from a token that is already encoded,
// as delivered by a confirmed QR login.
func EncodedCredential(username, token string) Credential {
	return Credential{
		Username: username,
		Encoded:  token,
		Source:   SourceQR,
	}
}

func (c Credential) valid() bool {
	return c.Username != "" && c.Encoded != ""
}

// String never prints the secret.
func (c Credential) String() string {
	return fmt.Sprintf("%s (%s)", c.Username, c.Source)
}
