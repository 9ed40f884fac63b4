package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionForwardChain(t *testing.T) {
	steps := []struct {
		ev   event
		want Stage
	}{
		{evSelectFile, StageFileSelected},
		{evBeginExtract, StageExtracting},
		{evExtracted, StageAwaitingMajorSelection},
		{evConfirm, StageRequestingUploadURL},
		{evURLIssued, StageTransferring},
		{evTransferred, StageNotifying},
		{evNotified, StageCompleted},
	}
	stage := StageIdle
	for _, step := range steps {
		next, err := transition(stage, step.ev, "")
		require.NoError(t, err, "%s from %s", step.ev, stage)
		assert.Equal(t, step.want, next)
		stage = next
	}
}

func TestTransitionRejectsOutOfOrderEvents(t *testing.T) {
	cases := []struct {
		from Stage
		ev   event
	}{
		{StageIdle, evBeginExtract},
		{StageFileSelected, evConfirm},
		{StageAwaitingMajorSelection, evBeginExtract},
		{StageCompleted, evNotified},
		{StageCompleted, evFail},
		{StageAwaitingMajorSelection, evFail},
		{StageTransferring, evRetry},
	}
	for _, tc := range cases {
		next, err := transition(tc.from, tc.ev, LegTransfer)
		assert.ErrorIs(t, err, ErrInvalidTransition, "%s from %s", tc.ev, tc.from)
		assert.Equal(t, tc.from, next)
	}
}

func TestTransitionRetryResumesFailedLeg(t *testing.T) {
	for leg, want := range legStage {
		next, err := transition(StageFailed, evRetry, leg)
		require.NoError(t, err)
		assert.Equal(t, want, next, "leg %s", leg)
	}

	_, err := transition(StageFailed, evRetry, Leg("bogus"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionResetAndSelectFromAnywhere(t *testing.T) {
	for _, from := range []Stage{StageIdle, StageExtracting, StageTransferring, StageFailed, StageCompleted} {
		next, err := transition(from, evReset, "")
		require.NoError(t, err)
		assert.Equal(t, StageIdle, next)

		next, err = transition(from, evSelectFile, "")
		require.NoError(t, err)
		assert.Equal(t, StageFileSelected, next)
	}
}
