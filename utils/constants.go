// File: utils/constants.go
package utils

import "time"

// GatewayTokenCacheKey holds the direct debit gateway bearer token shared by all replicas.
const GatewayTokenCacheKey = "directdebit:token"

// GatewayTokenLifetime is assumed when the credential exchange does not state an expiry.
const GatewayTokenLifetime = time.Hour

// GatewayTokenSafetyMargin is subtracted from the token lifetime before it is cached.
const GatewayTokenSafetyMargin = time.Minute
