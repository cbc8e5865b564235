// Package webhook authenticates and validates inbound direct-debit gateway deliveries.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"fleetrent/utils"
)

const signaturePrefix = "sha256="

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// maxSignedBody bounds how much of an oversize delivery is hashed before the signature is
// judged. Anything longer than this cannot match.
const maxSignedBody = 16 << 20

// VerifySignature checks header against HMAC-SHA256(secret, body). The header may carry a
// sha256= prefix and either hex case. A missing header fails with 403, a mismatch with 401.
func VerifySignature(secret, body []byte, header string) error {
	want, err := parseSignature(secret, header)
	if err != nil {
		return err
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return compareSignature(want, mac.Sum(nil))
}

// ReadVerified reads a delivery body of at most limit bytes. The signature is judged over the
// whole body before its size, so an oversize delivery still fails with 403 or 401 when unsigned
// or forged, and only a correctly signed one fails the size check.
func ReadVerified(secret []byte, r io.Reader, header string, limit int64) ([]byte, error) {
	want, err := parseSignature(secret, header)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, secret)
	body, err := io.ReadAll(io.TeeReader(io.LimitReader(r, limit+1), mac))
	if err != nil {
		return nil, utils.NewValidationError("could not read request body")
	}
	oversize := int64(len(body)) > limit
	if oversize {
		if _, err := io.Copy(mac, io.LimitReader(r, maxSignedBody-int64(len(body)))); err != nil {
			return nil, utils.NewValidationError("could not read request body")
		}
	}

	if err := compareSignature(want, mac.Sum(nil)); err != nil {
		return nil, err
	}
	if oversize {
		return nil, utils.NewValidationError("request body exceeds %d bytes", limit)
	}
	return body, nil
}

func parseSignature(secret []byte, header string) ([]byte, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, utils.NewAuthError(http.StatusForbidden, "missing webhook signature")
	}
	if len(header) >= len(signaturePrefix) && strings.EqualFold(header[:len(signaturePrefix)], signaturePrefix) {
		header = header[len(signaturePrefix):]
	}
	if len(secret) == 0 {
		return nil, utils.NewAuthError(http.StatusUnauthorized, "webhook secret is not configured")
	}
	want, err := hex.DecodeString(strings.TrimSpace(header))
	if err != nil {
		return nil, utils.NewAuthError(http.StatusUnauthorized, "invalid webhook signature")
	}
	return want, nil
}

func compareSignature(want, got []byte) error {
	if !hmac.Equal(want, got) {
		return utils.NewAuthError(http.StatusUnauthorized, "invalid webhook signature")
	}
	return nil
}
