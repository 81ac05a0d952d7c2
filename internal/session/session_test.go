package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/registry"
)

const testDim = 16

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type captureRecorder struct {
	mu     sync.Mutex
	events []domain.RecognitionEvent
	err    error
}

func (r *captureRecorder) Record(ctx context.Context, ev domain.RecognitionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *captureRecorder) Events() []domain.RecognitionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RecognitionEvent(nil), r.events...)
}

type staticSet struct{ snap *registry.Snapshot }

func (s staticSet) Snapshot() *registry.Snapshot { return s.snap }

type fakeSource struct {
	frames  []imaging.Image
	openErr error
	readErr error

	opened bool
	closed int
	next   int
}

func (s *fakeSource) Open(ctx context.Context) error {
	if s.openErr != nil {
		return s.openErr
	}
	s.opened = true
	return nil
}

func (s *fakeSource) Read(ctx context.Context) (imaging.Image, error) {
	if s.next >= len(s.frames) {
		if s.readErr != nil {
			return imaging.Image{}, s.readErr
		}
		return imaging.Image{}, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

func (s *fakeSource) Close() error {
	s.closed++
	return nil
}

func solid(value byte) imaging.Image {
	img := imaging.New(40, 30, 3)
	for i := range img.Pix {
		img.Pix[i] = value
	}
	return img
}

type fixture struct {
	provider *mock.Provider
	recorder *captureRecorder
	clock    *fakeClock
	alice    uuid.UUID
	session  *Session
}

func newFixture(t *testing.T, source *fakeSource, cfg Config) *fixture {
	t.Helper()

	p := mock.New(testDim)
	enrolled, err := provider.EncodeFirst(context.Background(), p, solid(120))
	require.NoError(t, err)

	alice := uuid.New()
	set := staticSet{snap: registry.NewSnapshot(registry.Entry{
		ID:          alice,
		DisplayName: "Alice",
		Embedding:   enrolled.Embedding,
	})}

	if source == nil {
		source = &fakeSource{}
	}
	if cfg.Interval == 0 {
		cfg.Interval = 500 * time.Millisecond
	}

	clock := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	rec := &captureRecorder{}
	s := New(source, p, set, rec, cfg, nil, WithClock(clock.Now))

	return &fixture{provider: p, recorder: rec, clock: clock, alice: alice, session: s}
}

func TestSession_StepMatchesAndRecords(t *testing.T) {
	f := newFixture(t, nil, Config{})
	// enrollment above already ran one detection
	baseDetect := f.provider.DetectCalls()

	results, err := f.session.Step(context.Background(), solid(120))
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, f.alice, r.IdentityID)
	assert.Equal(t, "Alice", r.DisplayName)
	assert.InDelta(t, 1.0, r.Confidence, 1e-9)
	assert.False(t, r.Region.Empty())
	assert.Equal(t, baseDetect+1, f.provider.DetectCalls())

	events := f.recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, f.alice, events[0].IdentityID)
	assert.Equal(t, f.session.ID(), events[0].SessionID)
	assert.Equal(t, f.clock.Now(), events[0].Timestamp)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
}

func TestSession_StepUnknownFace(t *testing.T) {
	f := newFixture(t, nil, Config{})

	results, err := f.session.Step(context.Background(), solid(200))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].Matched())
	assert.Equal(t, 0.0, results[0].Confidence)
	assert.Empty(t, f.recorder.Events())
	assert.Equal(t, int64(0), f.session.Stats().Matches)
}

func TestSession_StepNoFaces(t *testing.T) {
	f := newFixture(t, nil, Config{})

	results, err := f.session.Step(context.Background(), solid(0))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSession_MinConfidence(t *testing.T) {
	f := newFixture(t, nil, Config{MinConfidence: 1.5})

	results, err := f.session.Step(context.Background(), solid(120))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Matched())

	assert.Empty(t, f.recorder.Events())
	stats := f.session.Stats()
	assert.Equal(t, int64(1), stats.Matches)
	assert.Equal(t, int64(0), stats.Events)
}

func TestRecordable(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name          string
		distance      float64
		minConfidence float64
		want          bool
	}{
		{"well inside tolerance", 0.2, 0, true},
		{"on the tolerance", 0.6, 0, false},
		{"just inside tolerance", 0.5999, 0, true},
		{"below min confidence", 0.5, 0.7, false},
		{"at min confidence", 0.25, 0.75, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := domain.MatchResult{IdentityID: id, Distance: tt.distance, Confidence: 1 - tt.distance}
			assert.Equal(t, tt.want, recordable(r, 0.6, tt.minConfidence))
		})
	}
}

func TestSession_CachedFramesReuseResult(t *testing.T) {
	f := newFixture(t, nil, Config{})
	ctx := context.Background()
	baseDetect := f.provider.DetectCalls()

	_, err := f.session.Step(ctx, solid(120))
	require.NoError(t, err)

	// a different face inside the interval still gets the cached faces
	f.clock.Advance(100 * time.Millisecond)
	results, err := f.session.Step(ctx, solid(200))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, f.alice, results[0].IdentityID)
	assert.Equal(t, baseDetect+1, f.provider.DetectCalls())

	// past the interval the new frame is processed
	f.clock.Advance(500 * time.Millisecond)
	results, err = f.session.Step(ctx, solid(200))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Matched())

	stats := f.session.Stats()
	assert.Equal(t, int64(3), stats.FramesSeen)
	assert.Equal(t, int64(2), stats.FramesProcessed)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, "holding", stats.AdmissionState)
	assert.Len(t, f.recorder.Events(), 2)
}

func TestSession_FailedFrameKeepsCache(t *testing.T) {
	f := newFixture(t, nil, Config{})
	ctx := context.Background()

	_, err := f.session.Step(ctx, solid(120))
	require.NoError(t, err)

	f.clock.Advance(600 * time.Millisecond)
	broken := imaging.Image{Width: 10, Height: 10, Channels: 3, Pix: make([]byte, 7)}
	results, err := f.session.Step(ctx, broken)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDetectionFailure)
	assert.Empty(t, results)

	f.clock.Advance(100 * time.Millisecond)
	results, err = f.session.Step(ctx, broken)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, f.alice, results[0].IdentityID)

	assert.Equal(t, int64(1), f.session.Stats().Failures)
}

func TestSession_RecorderErrorDoesNotFailFrame(t *testing.T) {
	f := newFixture(t, nil, Config{})
	f.recorder.err = errors.New("queue closed")

	results, err := f.session.Step(context.Background(), solid(120))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(0), f.session.Stats().Events)
}

func TestSession_Run(t *testing.T) {
	source := &fakeSource{frames: []imaging.Image{solid(120), solid(120), solid(0)}}
	f := newFixture(t, source, Config{})

	var calls int
	err := f.session.Run(context.Background(), func(frame imaging.Image, results []domain.MatchResult, err error) {
		calls++
		assert.NoError(t, err)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, source.opened)
	assert.Equal(t, 1, source.closed)
	assert.False(t, f.session.Stats().Running)
}

func TestSession_RunReportsFrameFailures(t *testing.T) {
	broken := imaging.Image{Width: 4, Height: 4, Channels: 3, Pix: []byte{1}}
	source := &fakeSource{frames: []imaging.Image{broken, solid(120)}}
	f := newFixture(t, source, Config{})

	var errs []error
	err := f.session.Run(context.Background(), func(frame imaging.Image, results []domain.MatchResult, err error) {
		errs = append(errs, err)
	})

	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], domain.ErrDetectionFailure)
	assert.NoError(t, errs[1])
}

func TestSession_RunCaptureErrors(t *testing.T) {
	tests := []struct {
		name   string
		source *fakeSource
	}{
		{
			name:   "open fails",
			source: &fakeSource{openErr: errors.New("device busy")},
		},
		{
			name:   "read fails",
			source: &fakeSource{frames: []imaging.Image{solid(120)}, readErr: errors.New("unplugged")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.source, Config{})

			err := f.session.Run(context.Background(), nil)

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrCaptureUnavailable)
			assert.False(t, domain.IsUserCorrectable(err))
			assert.Equal(t, 1, tt.source.closed)
		})
	}
}

func TestSession_RunStopsOnCancel(t *testing.T) {
	frames := make([]imaging.Image, 10)
	for i := range frames {
		frames[i] = solid(120)
	}
	source := &fakeSource{frames: frames}
	f := newFixture(t, source, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int
	err := f.session.Run(ctx, func(imaging.Image, []domain.MatchResult, error) {
		calls++
		if calls == 2 {
			cancel()
		}
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, source.closed)
}
