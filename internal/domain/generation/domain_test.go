package generation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() *Request {
	return &Request{
		Kind:        KindImageEdit,
		ProjectID:   uuid.New(),
		UserID:      uuid.New(),
		SourceRef:   "uploads/source.png",
		Prompt:      "red sneakers",
		Model:       "edit-pro",
		AspectRatio: "1:1",
		SubmittedAt: time.Now(),
	}
}

func TestRequest_Validate(t *testing.T) {
	t.Run("valid request passes", func(t *testing.T) {
		assert.NoError(t, validRequest().Validate())
	})

	t.Run("unsupported kind", func(t *testing.T) {
		req := validRequest()
		req.Kind = Kind("text-to-speech")
		assert.ErrorIs(t, req.Validate(), ErrInvalidKind)
	})

	t.Run("missing scope", func(t *testing.T) {
		req := validRequest()
		req.UserID = uuid.Nil
		assert.ErrorIs(t, req.Validate(), ErrMissingScope)
	})

	t.Run("missing source", func(t *testing.T) {
		req := validRequest()
		req.SourceRef = "   "
		assert.ErrorIs(t, req.Validate(), ErrMissingSource)
	})

	t.Run("missing prompt", func(t *testing.T) {
		req := validRequest()
		req.Prompt = ""
		assert.ErrorIs(t, req.Validate(), ErrMissingPrompt)
	})
}

func TestJobState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    JobState
		terminal bool
	}{
		{JobQueued, false},
		{JobProcessing, false},
		{JobSucceeded, true},
		{JobFailed, true},
		{JobCanceled, true},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.state.IsTerminal())
			assert.Equal(t, tt.terminal, JobStatus{State: tt.state}.IsTerminal())
		})
	}
}

func TestNewRecord(t *testing.T) {
	artifact := Artifact{
		StoragePath: "user/proj/edited-1.png",
		MimeKind:    MimeImage,
		Width:       1024,
		Height:      1024,
	}

	t.Run("mints fresh lineage without ancestor", func(t *testing.T) {
		req := validRequest()
		rec := NewRecord(req, artifact)

		require.NotNil(t, rec)
		assert.NotEqual(t, uuid.Nil, rec.ID)
		assert.NotEqual(t, uuid.Nil, rec.LineageID)
		assert.Nil(t, rec.ParentID)
		assert.Equal(t, req.Prompt, rec.Prompt)
		assert.Equal(t, artifact, rec.Artifact)
	})

	t.Run("propagates source lineage", func(t *testing.T) {
		lineage := uuid.New()
		parent := uuid.New()
		req := validRequest()
		req.SourceLineageID = &lineage
		req.SourceRecordID = &parent

		rec := NewRecord(req, artifact)

		assert.Equal(t, lineage, rec.LineageID)
		require.NotNil(t, rec.ParentID)
		assert.Equal(t, parent, *rec.ParentID)
	})

	t.Run("nil lineage id mints fresh", func(t *testing.T) {
		nilID := uuid.Nil
		req := validRequest()
		req.SourceLineageID = &nilID

		rec := NewRecord(req, artifact)
		assert.NotEqual(t, uuid.Nil, rec.LineageID)
	})
}

func TestFailure(t *testing.T) {
	t.Run("error string carries kind and message", func(t *testing.T) {
		f := NewFailure(FailurePollingTimeout, "generation is taking too long", nil)
		assert.Contains(t, f.Error(), "polling_timeout")
		assert.Contains(t, f.Error(), "taking too long")
	})

	t.Run("unwraps cause", func(t *testing.T) {
		cause := ErrMissingPrompt
		f := NewFailure(FailureValidation, "bad request", cause)
		assert.ErrorIs(t, f, cause)
	})
}

func TestClassifiedError_AsFailure(t *testing.T) {
	ce := &ClassifiedError{Kind: FailurePaymentRequired, Message: "Spend limit: add billing"}
	f := ce.AsFailure()
	assert.Equal(t, FailurePaymentRequired, f.Kind)
	assert.Equal(t, ce.Message, f.Message)
}
