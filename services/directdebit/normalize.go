package directdebit

import (
	"strings"
	"unicode"

	"fleetrent/utils"
)

// The gateway names the same field differently across API versions. Everything below maps
// its responses onto one shape so the rest of the code never sees the variants.

var (
	tokenKeys        = []string{"token", "access_token", "accessToken"}
	tokenExpiryKeys  = []string{"expires_in", "expiresIn"}
	customerCodeKeys = []string{"customerCode", "customer_code", "code", "Code"}
	mobileKeys       = []string{"Mobile", "mobile", "mobileNumber", "MobileNumber"}
	scheduleIDKeys   = []string{"scheduleId", "ScheduleId", "id", "Id", "code", "Code"}
	authURLKeys      = []string{"authorizationUrl", "authorisationUrl"}
	authLinkKeys     = []string{"AuthorisationLinks", "AuthorizationLinks"}
	linkURLKeys      = []string{"Link", "Url"}
	statusKeys       = []string{"status", "Status"}
)

// ScheduleRef is what a caller needs after creating a schedule.
type ScheduleRef struct {
	ScheduleID       string `json:"schedule_id"`
	AuthorizationURL string `json:"authorization_url"`
}

func parseScheduleRef(resp map[string]interface{}) ScheduleRef {
	ref := ScheduleRef{
		ScheduleID:       utils.FirstString(resp, scheduleIDKeys...),
		AuthorizationURL: utils.FirstString(resp, authURLKeys...),
	}
	if ref.AuthorizationURL != "" {
		return ref
	}
	for _, k := range authLinkKeys {
		links, ok := resp[k].([]interface{})
		if !ok || len(links) == 0 {
			continue
		}
		if first, ok := links[0].(map[string]interface{}); ok {
			ref.AuthorizationURL = utils.FirstString(first, linkURLKeys...)
			if ref.AuthorizationURL != "" {
				break
			}
		}
	}
	return ref
}

// NormalizeMobile converts Australian phone numbers to E.164. Blank input returns "".
//
//	0420 123 456     -> +61420123456
//	+61 420 123 456  -> +61420123456
//	61420123456      -> +61420123456
func NormalizeMobile(phone string) string {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return ""
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, trimmed)
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "+") {
		return "+" + digits
	}
	switch {
	case strings.HasPrefix(digits, "04") && len(digits) == 10:
		return "+61" + digits[1:]
	case strings.HasPrefix(digits, "614"):
		return "+" + digits
	case strings.HasPrefix(digits, "4") && (len(digits) == 9 || len(digits) == 10):
		return "+61" + digits
	}
	return "+" + digits
}

// TruncateDescription limits a schedule description to the gateway's maximum length.
func TruncateDescription(description string) string {
	runes := []rune(strings.TrimSpace(description))
	if len(runes) > MaxDescriptionLength {
		runes = runes[:MaxDescriptionLength]
	}
	return string(runes)
}
