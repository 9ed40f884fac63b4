package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saintplus-client/internal/events"
	"saintplus-client/internal/shared/metrics"
)

type fakeBackend struct {
	mu sync.Mutex

	majors     []string
	extractErr error
	urlErr     error
	notifyErr  error

	// Gates, when set, block the matching call until closed.
	extractGate chan struct{}
	urlGate     chan struct{}
	notifyGate  chan struct{}

	urlCalls    int
	notifyCalls int
	notified    []Majors
	notifiedKey []string
}

func (f *fakeBackend) ExtractMajors(ctx context.Context, _ SourceFile) ([]string, error) {
	if f.extractGate != nil {
		<-f.extractGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.majors, f.extractErr
}

func (f *fakeBackend) RequestUploadURL(_ context.Context, fileName, _ string) (Destination, error) {
	if f.urlGate != nil {
		<-f.urlGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urlCalls++
	if f.urlErr != nil {
		return Destination{}, f.urlErr
	}
	return Destination{URL: "https://storage.test/put/" + fileName, Key: "transcripts/abc/" + fileName}, nil
}

func (f *fakeBackend) NotifyUploaded(_ context.Context, key string, majors Majors) error {
	if f.notifyGate != nil {
		<-f.notifyGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifyCalls++
	if f.notifyErr != nil {
		return f.notifyErr
	}
	f.notified = append(f.notified, majors)
	f.notifiedKey = append(f.notifiedKey, key)
	return nil
}

type fakeStorage struct {
	mu    sync.Mutex
	fails int
	urls  []string
	gate  chan struct{}
}

func (f *fakeStorage) Transfer(_ context.Context, url string, _ SourceFile) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	if f.fails > 0 {
		f.fails--
		return errors.New("connection reset")
	}
	return nil
}

func sampleFile() SourceFile {
	return SourceFile{Name: "grades.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4")}
}

func selectAndExtract(t *testing.T, o *Orchestrator) Job {
	t.Helper()
	_, err := o.SelectFile(sampleFile())
	require.NoError(t, err)
	job, err := o.BeginExtraction(context.Background())
	require.NoError(t, err)
	return job
}

func TestHappyPathReachesCompleted(t *testing.T) {
	metrics.Reset()
	backend := &fakeBackend{majors: []string{"컴퓨터학부", "경영학부"}}
	storage := &fakeStorage{}
	o := NewOrchestrator(backend, storage)

	job := selectAndExtract(t, o)
	assert.Equal(t, StageAwaitingMajorSelection, job.Stage)
	assert.Equal(t, []string{"컴퓨터학부", "경영학부"}, job.ExtractedMajors)

	job, err := o.ConfirmMajors(context.Background(), Majors{Primary: "컴퓨터학부", Secondary: "경영학부"})
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, job.Stage)
	assert.Equal(t, "transcripts/abc/grades.pdf", job.StorageKey)
	assert.Nil(t, job.Failure)

	require.Len(t, backend.notified, 1)
	assert.Equal(t, Majors{Primary: "컴퓨터학부", Secondary: "경영학부"}, backend.notified[0])
	assert.Equal(t, []string{"transcripts/abc/grades.pdf"}, backend.notifiedKey)
	assert.Equal(t, []string{"https://storage.test/put/grades.pdf"}, storage.urls)
	assert.EqualValues(t, 1, metrics.LegCount("notify", "ok"))
}

func TestExtractionWithNoMajorsStillAwaitsSelection(t *testing.T) {
	o := NewOrchestrator(&fakeBackend{}, &fakeStorage{})
	job := selectAndExtract(t, o)
	assert.Equal(t, StageAwaitingMajorSelection, job.Stage)
	assert.NotNil(t, job.ExtractedMajors)
	assert.Empty(t, job.ExtractedMajors)
}

func TestSelectFileValidation(t *testing.T) {
	o := NewOrchestrator(&fakeBackend{}, &fakeStorage{})

	_, err := o.SelectFile(SourceFile{Name: "empty.pdf"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = o.SelectFile(SourceFile{Name: "  ", Content: []byte("x")})
	require.ErrorAs(t, err, &verr)

	_, ok := o.Snapshot()
	assert.False(t, ok)
}

func TestConfirmWithEmptyPrimaryStaysPut(t *testing.T) {
	backend := &fakeBackend{majors: []string{"컴퓨터학부"}}
	o := NewOrchestrator(backend, &fakeStorage{})
	selectAndExtract(t, o)

	job, err := o.ConfirmMajors(context.Background(), Majors{Primary: "   "})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StageAwaitingMajorSelection, job.Stage)
	assert.Zero(t, backend.urlCalls)
}

func TestConfirmBeforeExtractionIsInvalid(t *testing.T) {
	o := NewOrchestrator(&fakeBackend{}, &fakeStorage{})
	_, err := o.SelectFile(sampleFile())
	require.NoError(t, err)

	job, err := o.ConfirmMajors(context.Background(), Majors{Primary: "CSE"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StageFileSelected, job.Stage)
}

func TestBeginExtractionWithoutFileIsInvalid(t *testing.T) {
	o := NewOrchestrator(&fakeBackend{}, &fakeStorage{})
	job, err := o.BeginExtraction(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StageIdle, job.Stage)
}

func TestExtractFailureThenRetry(t *testing.T) {
	backend := &fakeBackend{extractErr: errors.New("bad gateway")}
	o := NewOrchestrator(backend, &fakeStorage{})
	_, err := o.SelectFile(sampleFile())
	require.NoError(t, err)

	job, err := o.BeginExtraction(context.Background())
	var legErr *LegError
	require.ErrorAs(t, err, &legErr)
	assert.Equal(t, LegExtract, legErr.Leg)
	assert.Equal(t, StageFailed, job.Stage)
	require.NotNil(t, job.Failure)
	assert.Equal(t, LegExtract, job.Failure.Leg)

	backend.mu.Lock()
	backend.extractErr = nil
	backend.majors = []string{"CSE"}
	backend.mu.Unlock()

	job, err = o.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingMajorSelection, job.Stage)
	assert.Nil(t, job.Failure)
}

func TestTransferRetryReusesStorageKey(t *testing.T) {
	backend := &fakeBackend{majors: []string{"CSE"}}
	storage := &fakeStorage{fails: 1}
	o := NewOrchestrator(backend, storage)
	selectAndExtract(t, o)

	job, err := o.ConfirmMajors(context.Background(), Majors{Primary: "CSE"})
	var legErr *LegError
	require.ErrorAs(t, err, &legErr)
	assert.Equal(t, LegTransfer, legErr.Leg)
	assert.Equal(t, StageFailed, job.Stage)
	assert.Equal(t, "transcripts/abc/grades.pdf", job.StorageKey)

	job, err = o.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, job.Stage)
	assert.Equal(t, 1, backend.urlCalls)
	assert.Len(t, storage.urls, 2)
	assert.Equal(t, storage.urls[0], storage.urls[1])
	assert.Equal(t, []string{"transcripts/abc/grades.pdf"}, backend.notifiedKey)
}

func TestNotifyRetryDoesNotTransferAgain(t *testing.T) {
	backend := &fakeBackend{majors: []string{"CSE"}, notifyErr: errors.New("503")}
	storage := &fakeStorage{}
	o := NewOrchestrator(backend, storage)
	selectAndExtract(t, o)

	_, err := o.ConfirmMajors(context.Background(), Majors{Primary: "CSE"})
	var legErr *LegError
	require.ErrorAs(t, err, &legErr)
	assert.Equal(t, LegNotify, legErr.Leg)

	backend.mu.Lock()
	backend.notifyErr = nil
	backend.mu.Unlock()

	job, err := o.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, job.Stage)
	assert.Len(t, storage.urls, 1)
	assert.Equal(t, 2, backend.notifyCalls)
}

func TestRetryWithoutFailureIsInvalid(t *testing.T) {
	o := NewOrchestrator(&fakeBackend{majors: []string{"CSE"}}, &fakeStorage{})
	selectAndExtract(t, o)

	_, err := o.Retry(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResetDiscardsLateExtractionResult(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{majors: []string{"CSE"}, extractGate: gate}
	o := NewOrchestrator(backend, &fakeStorage{})
	_, err := o.SelectFile(sampleFile())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := o.BeginExtraction(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool {
		job, ok := o.Snapshot()
		return ok && job.Stage == StageExtracting
	}, time.Second, 5*time.Millisecond)

	o.Reset()
	close(gate)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrJobAbandoned)
	case <-time.After(time.Second):
		t.Fatal("extraction did not return")
	}

	job, ok := o.Snapshot()
	assert.False(t, ok)
	assert.Equal(t, StageIdle, job.Stage)
}

func TestNewFileReplacesJobMidFlight(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{majors: []string{"CSE"}, extractGate: gate}
	o := NewOrchestrator(backend, &fakeStorage{})
	first, err := o.SelectFile(sampleFile())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := o.BeginExtraction(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool {
		job, _ := o.Snapshot()
		return job.Stage == StageExtracting
	}, time.Second, 5*time.Millisecond)

	second, err := o.SelectFile(SourceFile{Name: "other.docx", Content: []byte("PK")})
	require.NoError(t, err)
	close(gate)
	assert.ErrorIs(t, <-done, ErrJobAbandoned)

	job, ok := o.Snapshot()
	require.True(t, ok)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, second.ID, job.ID)
	assert.Equal(t, StageFileSelected, job.Stage)
	assert.Empty(t, job.ExtractedMajors)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", job.File.ContentType)
}

func TestLateUploadLegResultIsDropped(t *testing.T) {
	cases := []struct {
		leg     Leg
		blocked Stage
	}{
		{LegURL, StageRequestingUploadURL},
		{LegTransfer, StageTransferring},
		{LegNotify, StageNotifying},
	}
	for _, tc := range cases {
		for _, replace := range []bool{false, true} {
			name := string(tc.leg) + "/reset"
			if replace {
				name = string(tc.leg) + "/new_file"
			}
			t.Run(name, func(t *testing.T) {
				metrics.Reset()
				gate := make(chan struct{})
				backend := &fakeBackend{majors: []string{"CSE"}}
				storage := &fakeStorage{}
				switch tc.leg {
				case LegURL:
					backend.urlGate = gate
				case LegTransfer:
					storage.gate = gate
				case LegNotify:
					backend.notifyGate = gate
				}
				o := NewOrchestrator(backend, storage)
				selectAndExtract(t, o)

				done := make(chan error, 1)
				go func() {
					_, err := o.ConfirmMajors(context.Background(), Majors{Primary: "CSE"})
					done <- err
				}()
				require.Eventually(t, func() bool {
					job, _ := o.Snapshot()
					return job.Stage == tc.blocked
				}, time.Second, 5*time.Millisecond)

				var next Job
				if replace {
					var err error
					next, err = o.SelectFile(SourceFile{Name: "retake.txt", Content: []byte("2024-1 CSE2003")})
					require.NoError(t, err)
				} else {
					o.Reset()
				}
				close(gate)

				select {
				case err := <-done:
					assert.ErrorIs(t, err, ErrJobAbandoned)
				case <-time.After(time.Second):
					t.Fatal("upload did not return")
				}

				job, ok := o.Snapshot()
				if replace {
					require.True(t, ok)
					assert.Equal(t, next.ID, job.ID)
					assert.Equal(t, StageFileSelected, job.Stage)
				} else {
					assert.False(t, ok)
					assert.Equal(t, StageIdle, job.Stage)
				}
				assert.Empty(t, job.StorageKey)
				assert.Empty(t, job.UploadURL)
				assert.Nil(t, job.Failure)
				assert.EqualValues(t, 1, metrics.LegCount(string(tc.leg), "abandoned"))

				backend.mu.Lock()
				defer backend.mu.Unlock()
				if tc.leg != LegNotify {
					// The chain stops at the abandoned leg.
					assert.Zero(t, backend.notifyCalls)
				}
			})
		}
	}
}

func TestSnapshotCopiesMajors(t *testing.T) {
	o := NewOrchestrator(&fakeBackend{majors: []string{"CSE", "BUS"}}, &fakeStorage{})
	job := selectAndExtract(t, o)
	job.ExtractedMajors[0] = "changed"

	again, ok := o.Snapshot()
	require.True(t, ok)
	assert.Equal(t, []string{"CSE", "BUS"}, again.ExtractedMajors)
}

func TestStageChangesArePublished(t *testing.T) {
	bus := events.NewBus()
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var mu sync.Mutex
	var stages []string
	require.NoError(t, events.Listen(ctx, bus, events.TopicIngestionStage, func(evt events.IngestionStage) {
		mu.Lock()
		defer mu.Unlock()
		stages = append(stages, evt.Stage)
	}))

	o := NewOrchestrator(&fakeBackend{majors: []string{"CSE"}}, &fakeStorage{}, WithBus(bus))
	selectAndExtract(t, o)
	_, err := o.ConfirmMajors(context.Background(), Majors{Primary: "CSE"})
	require.NoError(t, err)

	want := []string{
		string(StageFileSelected),
		string(StageExtracting),
		string(StageAwaitingMajorSelection),
		string(StageRequestingUploadURL),
		string(StageTransferring),
		string(StageNotifying),
		string(StageCompleted),
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(stages) == len(want)
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, want, stages)
}
