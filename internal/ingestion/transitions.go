package ingestion

import "fmt"

type event string

const (
	evSelectFile   event = "selectFile"
	evBeginExtract event = "beginExtraction"
	evExtracted    event = "extracted"
	evConfirm      event = "confirmMajors"
	evURLIssued    event = "urlIssued"
	evTransferred  event = "transferred"
	evNotified     event = "notified"
	evFail         event = "fail"
	evRetry        event = "retry"
	evReset        event = "reset"
)

// transition is the whole state table. Retry needs the failed leg; every
// other event ignores it.
func transition(from Stage, ev event, failed Leg) (Stage, error) {
	switch ev {
	case evReset:
		return StageIdle, nil
	case evSelectFile:
		// A new file replaces any job, including one mid-flight.
		return StageFileSelected, nil
	case evFail:
		switch from {
		case StageExtracting, StageRequestingUploadURL, StageTransferring, StageNotifying:
			return StageFailed, nil
		}
	case evRetry:
		if from == StageFailed {
			if s, ok := legStage[failed]; ok {
				return s, nil
			}
		}
	default:
		if to, ok := forward[from][ev]; ok {
			return to, nil
		}
	}
	return from, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, from)
}

var forward = map[Stage]map[event]Stage{
	StageFileSelected:           {evBeginExtract: StageExtracting},
	StageExtracting:             {evExtracted: StageAwaitingMajorSelection},
	StageAwaitingMajorSelection: {evConfirm: StageRequestingUploadURL},
	StageRequestingUploadURL:    {evURLIssued: StageTransferring},
	StageTransferring:           {evTransferred: StageNotifying},
	StageNotifying:              {evNotified: StageCompleted},
}

// legStage is the stage a leg runs in.
var legStage = map[Leg]Stage{
	LegExtract:  StageExtracting,
	LegURL:      StageRequestingUploadURL,
	LegTransfer: StageTransferring,
	LegNotify:   StageNotifying,
}

// legSuccess is the event a successful leg fires.
var legSuccess = map[Leg]event{
	LegExtract:  evExtracted,
	LegURL:      evURLIssued,
	LegTransfer: evTransferred,
	LegNotify:   evNotified,
}

// nextLeg chains the automatic legs after major confirmation.
var nextLeg = map[Leg]Leg{
	LegURL:      LegTransfer,
	LegTransfer: LegNotify,
}
