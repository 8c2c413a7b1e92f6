package service

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/Aaron408/vercel-authservice/internal/config"
)

// PasswordHasher hashes new passwords and checks candidates against stored hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// NewPasswordHasher returns a hasher that writes with the given scheme.
// Verify accepts argon2id, bcrypt and legacy MD5 hashes whatever the write scheme.
//
// SECURITY: the md5 scheme is an unsalted fast digest kept so rows written by
// the previous service keep authenticating. Switching the write scheme to
// bcrypt is an operator decision; existing MD5 rows are not rehashed.
func NewPasswordHasher(scheme string) (PasswordHasher, error) {
	switch scheme {
	case config.PasswordSchemeMD5:
		return passwordHasher{hash: md5Hex}, nil
	case config.PasswordSchemeBcrypt:
		return passwordHasher{hash: bcryptHash}, nil
	case config.PasswordSchemeArgon2id:
		return passwordHasher{hash: argon2Hash}, nil
	default:
		return nil, fmt.Errorf("unknown password scheme %q", scheme)
	}
}

type passwordHasher struct {
	hash func(string) (string, error)
}

func (h passwordHasher) Hash(password string) (string, error) {
	return h.hash(password)
}

func (h passwordHasher) Verify(hash, password string) bool {
	if strings.HasPrefix(hash, argon2Prefix) {
		return argon2Verify(hash, password)
	}
	if strings.HasPrefix(hash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
	if len(hash) != md5.Size*2 {
		return false
	}
	candidate, _ := md5Hex(password)
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(hash)), []byte(candidate)) == 1
}

func md5Hex(password string) (string, error) {
	sum := md5.Sum([]byte(password))
	return hex.EncodeToString(sum[:]), nil
}

func bcryptHash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(b), nil
}

// Argon2id parameters for new hashes. Stored hashes carry their own.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16

	argon2Prefix = "$argon2id$"
)

// argon2Hash encodes as $argon2id$v=19$m=..,t=..,p=..$salt$key.
func argon2Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("argon2 salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix, argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func argon2Verify(encoded, password string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return false
	}

	candidate := argon2.IDKey([]byte(password), salt, iterations, memory, threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, candidate) == 1
}
