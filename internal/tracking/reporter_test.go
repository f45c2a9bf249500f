package tracking

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waste-tracking-api-server/internal/apperrors"
)

type fakeSource struct {
	mu         sync.Mutex
	currentErr error
	watchErr   error
	calls      int
	watch      chan Fix
}

func (f *fakeSource) Current(ctx context.Context) (Fix, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.currentErr != nil {
		return Fix{}, f.currentErr
	}
	return Fix{Latitude: 24.7, Longitude: 46.7, At: time.Now()}, nil
}

func (f *fakeSource) Watch(ctx context.Context) (<-chan Fix, error) {
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	return f.watch, nil
}

// slowSource blocks Current until release is closed.
type slowSource struct {
	fakeSource
	entered chan struct{}
	release chan struct{}
}

func (s *slowSource) Current(ctx context.Context) (Fix, error) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	select {
	case <-s.release:
	case <-ctx.Done():
		return Fix{}, ctx.Err()
	}
	return s.fakeSource.Current(ctx)
}

type fakeUploader struct {
	mu       sync.Mutex
	samples  []Sample
	tracking []bool
	failNext bool
}

func (f *fakeUploader) UploadLocation(ctx context.Context, driverID string, s Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("network down")
	}
	f.samples = append(f.samples, s)
	return nil
}

func (f *fakeUploader) SetTracking(ctx context.Context, driverID string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracking = append(f.tracking, enabled)
	return nil
}

func (f *fakeUploader) sampleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.samples)
}

func TestReporterStartUploadsFirstFix(t *testing.T) {
	src := &fakeSource{watch: make(chan Fix)}
	up := &fakeUploader{}
	r := NewReporter(ReporterConfig{DriverID: "drv-1", ShipmentID: "s1", Interval: time.Hour, Source: src, Uploader: up})

	require.NoError(t, r.Start(context.Background()))
	assert.True(t, r.Running())
	assert.ErrorIs(t, r.Start(context.Background()), ErrAlreadyRunning)

	require.Equal(t, 1, up.sampleCount())
	assert.Equal(t, "s1", up.samples[0].ShipmentID)

	src.watch <- Fix{Latitude: 24.8, Longitude: 46.8}
	assert.Eventually(t, func() bool { return up.sampleCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, r.Stop(context.Background()))
	assert.False(t, r.Running())
	assert.Equal(t, []bool{true, false}, up.tracking)
}

func TestReporterTimerResamples(t *testing.T) {
	src := &fakeSource{watch: make(chan Fix)}
	up := &fakeUploader{}
	r := NewReporter(ReporterConfig{DriverID: "drv-1", Interval: 10 * time.Millisecond, Source: src, Uploader: up})

	require.NoError(t, r.Start(context.Background()))
	assert.Eventually(t, func() bool { return up.sampleCount() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, r.Stop(context.Background()))
}

func TestReporterSkipsFailedUpload(t *testing.T) {
	src := &fakeSource{watch: make(chan Fix)}
	up := &fakeUploader{failNext: true}
	r := NewReporter(ReporterConfig{DriverID: "drv-1", Interval: time.Hour, Source: src, Uploader: up})

	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, 0, up.sampleCount())

	src.watch <- Fix{Latitude: 1, Longitude: 2}
	assert.Eventually(t, func() bool { return up.sampleCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, r.Stop(context.Background()))
}

func TestReporterLocationUnavailable(t *testing.T) {
	up := &fakeUploader{}
	r := NewReporter(ReporterConfig{DriverID: "drv-1", Source: &fakeSource{currentErr: errors.New("permission denied")}, Uploader: up})

	err := r.Start(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrLocationUnavailable)
	assert.False(t, r.Running())
	assert.Empty(t, up.tracking)

	r = NewReporter(ReporterConfig{DriverID: "drv-1", Source: &fakeSource{watchErr: errors.New("timeout")}, Uploader: up})
	assert.ErrorIs(t, r.Start(context.Background()), apperrors.ErrLocationUnavailable)
	assert.Equal(t, 0, up.sampleCount())
}

func TestReporterSlowFirstFixDoesNotBlock(t *testing.T) {
	src := &slowSource{
		fakeSource: fakeSource{watch: make(chan Fix)},
		entered:    make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
	up := &fakeUploader{}
	r := NewReporter(ReporterConfig{DriverID: "drv-1", Interval: time.Hour, Source: src, Uploader: up})

	started := make(chan error, 1)
	go func() { started <- r.Start(context.Background()) }()
	<-src.entered

	checked := make(chan struct{})
	go func() {
		defer close(checked)
		assert.False(t, r.Running())
		assert.ErrorIs(t, r.Start(context.Background()), ErrAlreadyRunning)
		assert.NoError(t, r.Stop(context.Background()))
	}()
	select {
	case <-checked:
	case <-time.After(time.Second):
		t.Fatal("reporter locked while waiting for the first fix")
	}

	close(src.release)
	require.NoError(t, <-started)
	assert.True(t, r.Running())
	require.NoError(t, r.Stop(context.Background()))
	assert.Equal(t, []bool{true, false}, up.tracking)
}

func TestStopWhenIdle(t *testing.T) {
	up := &fakeUploader{}
	r := NewReporter(ReporterConfig{DriverID: "drv-1", Source: &fakeSource{}, Uploader: up})
	assert.NoError(t, r.Stop(context.Background()))
	assert.Empty(t, up.tracking)
}

func TestHTTPUploader(t *testing.T) {
	var paths []string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		paths = append(paths, req.URL.Path)
		auth = req.Header.Get("Authorization")
		if strings.HasSuffix(req.URL.Path, "/stop") {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":"nope"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.URL+"/api/v1/", "tok")
	require.NoError(t, u.UploadLocation(context.Background(), "drv-1", Sample{Latitude: 1, Longitude: 2}))
	require.NoError(t, u.SetTracking(context.Background(), "drv-1", true))
	err := u.SetTracking(context.Background(), "drv-1", false)
	assert.ErrorContains(t, err, "403")

	assert.Equal(t, []string{
		"/api/v1/drivers/drv-1/locations",
		"/api/v1/drivers/drv-1/tracking/start",
		"/api/v1/drivers/drv-1/tracking/stop",
	}, paths)
	assert.Equal(t, "Bearer tok", auth)
}

func TestParseRoute(t *testing.T) {
	in := "# lat,lng,speed\n24.71,46.67,12.5\n24.72, 46.68\n"
	points, err := ParseRoute(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.NotNil(t, points[0].Speed)
	assert.Equal(t, 12.5, *points[0].Speed)
	assert.Nil(t, points[1].Speed)
	assert.Equal(t, 46.68, points[1].Longitude)

	_, err = ParseRoute(strings.NewReader("24.7\n"))
	assert.Error(t, err)
}

func TestReplaySourceWraps(t *testing.T) {
	src, err := NewReplaySource([]Fix{{Latitude: 1}, {Latitude: 2}}, time.Millisecond)
	require.NoError(t, err)
	var got []float64
	for i := 0; i < 3; i++ {
		fix, err := src.Current(context.Background())
		require.NoError(t, err)
		got = append(got, fix.Latitude)
	}
	assert.Equal(t, []float64{1, 2, 1}, got)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := src.Watch(ctx)
	require.NoError(t, err)
	<-ch
	cancel()
	for range ch {
	}
}
