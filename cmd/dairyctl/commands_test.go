package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/grading"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGradeCommand(t *testing.T) {
	out, err := run(t, "grade", "--fat", "3.8")
	require.NoError(t, err)

	var result grading.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, models.GradeExcellent, result.Grade)

	_, err = run(t, "grade")
	assert.EqualError(t, err, "set at least one of --fat, --protein, --scc or --bacteria")
}

func TestExtractIDCommand(t *testing.T) {
	out, err := run(t, "extract-id", `{"id":"cow-7","tagNumber":"007"}`)
	require.NoError(t, err)
	assert.Equal(t, "cow-7\n", out)

	out, err = run(t, "extract-id", "plain-id")
	require.NoError(t, err)
	assert.Equal(t, "plain-id\n", out)

	_, err = run(t, "extract-id")
	assert.Error(t, err)
}

func TestMigrateRequiresDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := run(t, "migrate", "--env-file", "")
	assert.EqualError(t, err, "--dsn or DATABASE_URL must be provided")
}
