package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gizilens/backend/internal/logger"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	shutdown := Setup(context.Background(), "gizilens-test", "", false, logger.Discard())
	assert.NoError(t, shutdown(context.Background()))
}
