package task

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOptions() *Options {
	return &Options{
		Prompt:  "analyze the repo",
		Timeout: time.Minute,
	}
}

func TestValidateOK(t *testing.T) {
	assert.NoError(t, validOptions().Validate())
}

func TestValidatePromptSources(t *testing.T) {
	o := validOptions()
	o.PlanFile = "plan.md"
	err := o.Validate()
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	o = validOptions()
	o.Prompt = ""
	err = o.Validate()
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestValidateSessionModes(t *testing.T) {
	const id = "6f1c0793-94a4-44e4-b2fb-507095fc2f33"

	tests := []struct {
		name    string
		mode    SessionMode
		id      string
		wantErr bool
	}{
		{"create with id", SessionCreate, id, false},
		{"create without id", SessionCreate, "", true},
		{"resume with id", SessionResume, id, false},
		{"resume without id", SessionResume, "", true},
		{"continue without id", SessionContinue, "", false},
		{"continue with id", SessionContinue, id, true},
		{"none without id", SessionNone, "", false},
		{"none with id", SessionNone, id, true},
		{"empty mode with id", "", id, true},
		{"unknown mode", "detach", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOptions()
			o.Session = tt.mode
			o.SessionID = tt.id
			err := o.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePermissionMode(t *testing.T) {
	for _, mode := range []PermissionMode{"", PermissionPlan, PermissionAcceptEdits, PermissionDontAsk, PermissionDefault, PermissionBypass} {
		o := validOptions()
		o.Permission = mode
		assert.NoError(t, o.Validate(), string(mode))
	}

	o := validOptions()
	o.Permission = "yolo"
	assert.Error(t, o.Validate())
}

func TestValidateFullTrustRequiresBypass(t *testing.T) {
	o := validOptions()
	o.FullTrust = true
	assert.Error(t, o.Validate())

	o.Permission = PermissionBypass
	assert.NoError(t, o.Validate())
}

func TestValidateOutputFormat(t *testing.T) {
	o := validOptions()
	o.Output = "yaml"
	assert.Error(t, o.Validate())

	o.Output = OutputStream
	assert.NoError(t, o.Validate())
}

func TestValidateTimeout(t *testing.T) {
	o := validOptions()
	o.Timeout = 0
	assert.Error(t, o.Validate())

	o.Timeout = -time.Second
	assert.Error(t, o.Validate())
}

func TestValidateRecordPath(t *testing.T) {
	o := validOptions()
	o.RecordPath = filepath.Join(t.TempDir(), "task.json")
	assert.NoError(t, o.Validate())

	o.RecordPath = filepath.Join(t.TempDir(), "missing", "task.json")
	assert.Error(t, o.Validate())
}

func TestValidateIdempotent(t *testing.T) {
	o := validOptions()
	o.Session = SessionCreate
	o.SessionID = ""

	first := o.Validate()
	second := o.Validate()
	require.Error(t, first)
	require.Error(t, second)
	assert.Equal(t, first.Error(), second.Error())

	ok := validOptions()
	assert.NoError(t, ok.Validate())
	assert.NoError(t, ok.Validate())
}
