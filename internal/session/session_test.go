package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/handoff/internal/task"
)

const goodID = "6f1c0793-94a4-44e4-b2fb-507095fc2f33"

func TestValidateCanonical(t *testing.T) {
	id, err := Validate(goodID)
	require.NoError(t, err)
	assert.Equal(t, goodID, id)
}

func TestValidateNormalizesCase(t *testing.T) {
	id, err := Validate("6F1C0793-94A4-44E4-B2FB-507095FC2F33")
	require.NoError(t, err)
	assert.Equal(t, goodID, id)
}

func TestValidateRejectsNonCanonical(t *testing.T) {
	bad := []string{
		"",
		"not-a-uuid",
		"6f1c079394a444e4b2fb507095fc2f33",                       // missing hyphens
		"{6f1c0793-94a4-44e4-b2fb-507095fc2f33}",                 // braced
		"urn:uuid:6f1c0793-94a4-44e4-b2fb-507095fc2f33",          // urn form
		"6f1c0793-94a4-44e4-b2fb-507095fc2f3",                    // too short
		"6f1c0793-94a4-44e4-b2fb-507095fc2f3g",                   // non-hex
		"6f1c0793-94a4-44e4-b2fb-507095fc2f33-extra",             // too long
	}
	for _, id := range bad {
		_, err := Validate(id)
		require.Error(t, err, id)
		assert.True(t, errors.Is(err, task.ErrInvalidIdentifier), id)
	}
}

func TestMint(t *testing.T) {
	a := Mint()
	b := Mint()
	assert.NotEqual(t, a, b)

	normalized, err := Validate(a)
	require.NoError(t, err)
	assert.Equal(t, a, normalized)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		mode     task.SessionMode
		id       string
		wantErr  error
		wantMode task.SessionMode
	}{
		{"create with id", task.SessionCreate, goodID, nil, task.SessionCreate},
		{"create without id", task.SessionCreate, "", task.ErrValidation, ""},
		{"create bad id", task.SessionCreate, "xyz", task.ErrInvalidIdentifier, ""},
		{"resume with id", task.SessionResume, goodID, nil, task.SessionResume},
		{"resume without id", task.SessionResume, "", task.ErrValidation, ""},
		{"continue", task.SessionContinue, "", nil, task.SessionContinue},
		{"continue with id", task.SessionContinue, goodID, task.ErrValidation, ""},
		{"none", task.SessionNone, "", nil, task.SessionNone},
		{"empty mode", "", "", nil, task.SessionNone},
		{"none with id", task.SessionNone, goodID, task.ErrValidation, ""},
		{"unknown mode", "fork", "", task.ErrValidation, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, err := Resolve(tt.mode, tt.id)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, dir.Mode)
			if tt.id != "" {
				assert.Equal(t, tt.id, dir.ID)
			}
		})
	}
}

func TestConflictDetection(t *testing.T) {
	create := Directive{Mode: task.SessionCreate, ID: goodID}
	resume := Directive{Mode: task.SessionResume, ID: goodID}

	err := Conflict(create, 1, "Error: Session ID "+goodID+" is already in use")
	require.Error(t, err)
	assert.True(t, errors.Is(err, task.ErrSessionConflict))

	var conflict *task.SessionConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, goodID, conflict.SessionID)

	err = Conflict(resume, 1, "No conversation found with session ID "+goodID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, task.ErrSessionConflict))
}

func TestConflictIgnoresUnrelatedFailures(t *testing.T) {
	create := Directive{Mode: task.SessionCreate, ID: goodID}

	assert.NoError(t, Conflict(create, 0, "already in use")) // success exit
	assert.NoError(t, Conflict(create, 1, "rate limit exceeded"))
	assert.NoError(t, Conflict(Directive{Mode: task.SessionNone}, 1, "already in use"))
	assert.NoError(t, Conflict(Directive{Mode: task.SessionContinue}, 1, "already in use"))
}
