package logger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// UserIDLocal is the fiber local holding the authenticated user's id as a string.
const UserIDLocal = "userID"

func GetUserIDFromContext(c *fiber.Ctx) *string {
	if userID := c.Locals(UserIDLocal); userID != nil {
		if id, ok := userID.(string); ok {
			return &id
		}
	}
	return nil
}

var sensitiveFields = []string{"password", "token", "secret"}

func redactSensitiveFields(jsonMap map[string]interface{}) {
	for _, field := range sensitiveFields {
		if _, exists := jsonMap[field]; exists {
			jsonMap[field] = "[REDACTED]"
		}
	}
}

// RequestPath returns the request path with bearer secrets such as share
// link tokens replaced by ":token", so paths can be logged safely.
func RequestPath(c *fiber.Ctx) string {
	return MaskPath(c.Path())
}

func MaskPath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if looksLikeToken(segment) {
			segments[i] = ":token"
		}
	}
	return strings.Join(segments, "/")
}

// Link tokens are hex encoded 32 byte values; UUIDs carry dashes and are kept.
func looksLikeToken(segment string) bool {
	if len(segment) < 32 {
		return false
	}
	for _, r := range segment {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func GetRequestBodySummary(c *fiber.Ctx) string {
	body := c.Body()
	if len(body) == 0 {
		return "empty"
	}

	if len(body) > 1024 {
		return fmt.Sprintf("large (%d bytes)", len(body))
	}

	var jsonMap map[string]interface{}
	if err := json.Unmarshal(body, &jsonMap); err == nil {
		redactSensitiveFields(jsonMap)
		if jsonBytes, err := json.Marshal(jsonMap); err == nil {
			if len(jsonBytes) > 200 {
				return string(jsonBytes[:200]) + "..."
			}
			return string(jsonBytes)
		}
	}

	return fmt.Sprintf("binary (%d bytes)", len(body))
}

func GetResponseSizeSummary(c *fiber.Ctx) string {
	body := c.Response().Body()
	if len(body) == 0 {
		return "empty"
	}
	if len(body) > 1024 {
		return fmt.Sprintf("large (%d bytes)", len(body))
	}
	return fmt.Sprintf("small (%d bytes)", len(body))
}

func GenerateRequestID() string {
	return uuid.New().String()
}
