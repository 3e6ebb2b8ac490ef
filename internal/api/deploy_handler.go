package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/getjack-org/jack-sub003/internal/deploy"
)

// statusForCode maps pipeline error codes to HTTP status codes.
func statusForCode(code deploy.Code) int {
	switch code {
	case deploy.CodeValidation:
		return fiber.StatusBadRequest
	case deploy.CodeNotFound:
		return fiber.StatusNotFound
	case deploy.CodeSizeLimit:
		return fiber.StatusRequestEntityTooLarge
	case deploy.CodeBundleFailed:
		return fiber.StatusUnprocessableEntity
	case deploy.CodeDeployFailed:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// handleDeploy runs one deployment request through the pipeline.
func (s *Server) handleDeploy(c *fiber.Ctx) error {
	var req deploy.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(deploy.Error{
			Code:       deploy.CodeValidation,
			Message:    "request body is not valid JSON: " + err.Error(),
			Suggestion: "send a JSON object with exactly one of files, template, or changes",
		})
	}

	result, deployErr := s.deployer.Deploy(c.Context(), &req)
	if deployErr != nil {
		return c.Status(statusForCode(deployErr.Code)).JSON(deployErr)
	}

	return c.JSON(result)
}
