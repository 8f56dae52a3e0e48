//go:build !(js && wasm)

package ai

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// send posts body and returns the raw reply.
func (c *GeminiClient) send(ctx context.Context, body geminiRequest, credential string) (int, []byte, error) {
	agent := fiber.Post(c.endpoint())
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}
	agent.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	agent.Set("x-goog-api-key", credential)
	agent.JSON(body)

	statusCode, respBody, errs := agent.Bytes()
	if len(errs) > 0 {
		return 0, nil, errs[0]
	}
	return statusCode, respBody, nil
}
