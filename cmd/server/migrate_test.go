package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/dermascan-server/internal/domain"
)

func TestRunMigrate_UnknownCommand(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	var out bytes.Buffer

	err := runMigrate(context.Background(), &domain.Config{}, logger, &out, []string{"sideways"})

	assert.ErrorContains(t, err, `unknown migrate command "sideways"`)
	assert.Empty(t, out.String())
}
