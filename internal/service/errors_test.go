package service

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	detailed := ErrMissingReplacements.WithDetails(map[string][]string{"missing": {"Name"}})

	assert.ErrorIs(t, detailed, ErrMissingReplacements)
	assert.ErrorIs(t, fmt.Errorf("fill: %w", detailed), ErrMissingReplacements)
	assert.NotErrorIs(t, detailed, ErrUnknownSlotKey)
	assert.Nil(t, ErrMissingReplacements.Details)
	assert.Equal(t, []string{"Name"}, detailed.Details["missing"])
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConflict, KindOf(ErrAlreadySigned))
	assert.Equal(t, KindBusy, KindOf(fmt.Errorf("wrap: %w", ErrSubmissionInProgress)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(sql.ErrNoRows, ErrTemplateNotFound), ErrTemplateNotFound)
	other := errors.New("conn reset")
	assert.Equal(t, other, notFound(other, ErrTemplateNotFound))
}
