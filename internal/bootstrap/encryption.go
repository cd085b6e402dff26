package bootstrap

import (
	"encoding/hex"
	"log/slog"

	"github.com/target/ward-console/internal/cryptoutil"
)

// CreateSealer builds the AES-GCM sealer for stored refresh tokens.
// A 64-character hex key is used as-is; any other secret is hashed to 32 bytes.
// Returns the plain sealer if the key is empty or invalid (with warning log).
//
//nolint:ireturn // Returning interface is intentional for sealer abstraction
func CreateSealer(key string, logger *slog.Logger) cryptoutil.Sealer {
	if logger == nil {
		logger = slog.Default()
	}
	if key == "" {
		logger.Warn("credential encryption key is empty, refresh tokens are stored unsealed")
		return cryptoutil.Plain{}
	}

	var (
		sealer *cryptoutil.AESGCM
		err    error
	)
	if decoded, decErr := hex.DecodeString(key); decErr == nil && len(decoded) == 32 {
		sealer, err = cryptoutil.NewAESGCM(decoded)
	} else {
		sealer, err = cryptoutil.NewAESGCMFromSecret(key)
	}
	if err != nil {
		logger.Warn("failed to create sealer, refresh tokens are stored unsealed", "error", err)
		return cryptoutil.Plain{}
	}
	return sealer
}
