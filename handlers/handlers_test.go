package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"image"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/camden-git/clipcraft/config"
	"github.com/camden-git/clipcraft/database"
	"github.com/camden-git/clipcraft/extraction"
	"github.com/camden-git/clipcraft/frames"
	"github.com/camden-git/clipcraft/media"
	"github.com/camden-git/clipcraft/quality"
	"github.com/camden-git/clipcraft/video"
)

type testServer struct {
	handler http.Handler
	cfg     config.Config
	store   *frames.Store
	service *extraction.Service
	index   *sql.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	root := t.TempDir()
	cfg := config.Config{
		UploadDir:            filepath.Join(root, "uploads"),
		ResultsDir:           filepath.Join(root, "results"),
		FramesDir:            "frames",
		VideosPath:           filepath.Join(root, "uploads", "videos"),
		FramesPath:           filepath.Join(root, "results", "frames"),
		DefaultSampleRate:    5,
		MaxFrames:            10,
		MinQualityScore:      30,
		ThumbnailWidth:       32,
		ThumbnailHeight:      18,
		ThumbnailQuality:     85,
		AvailableSampleRates: []int{1, 5, 10},
		UIMaxDisplayFrames:   50,
		MaxUploadSize:        1 << 20,
		ParallelThreshold:    100,
		CORSOrigins:          []string{"http://localhost:5173"},
	}
	require.NoError(t, os.MkdirAll(cfg.VideosPath, 0755))

	log := zap.NewNop()
	index, err := database.InitDB(filepath.Join(root, "index.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	ls, err := media.NewLocalStorage(cfg.FramesPath, media.DefaultSubDirs, log)
	require.NoError(t, err)
	store := frames.NewStore(ls, log)
	service := extraction.NewService(extraction.NewMemoryTaskStore(), store, extraction.DefaultSettings(cfg), nil, log)

	probe := func(string) (video.Info, error) {
		return video.Info{Width: 640, Height: 360, FPS: 25, FrameCount: 250}, nil
	}
	h := NewRouter(Router{
		Cfg:    cfg,
		Log:    log,
		Frames: &FramesHandler{Service: service, Frames: store, Index: index, Cfg: cfg, Log: log},
		Videos: &VideosHandler{Index: index, Cfg: cfg, Log: log, Probe: probe},
	})
	return &testServer{handler: h, cfg: cfg, store: store, service: service, index: index}
}

func (s *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decode[APIErrorResponse](t, rec)
	require.NotEmpty(t, resp.Errors)
	return resp.Errors[0].Code
}

func frameImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 36))
	for y := 0; y < 36; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 7), B: 60, A: 255})
		}
	}
	return img
}

// seedFrames stores three frames for videoID with descending scores.
func (s *testServer) seedFrames(t *testing.T, videoID string) []frames.Frame {
	t.Helper()
	var cands []frames.Candidate
	for i, id := range []string{"a", "b", "c"} {
		cands = append(cands, frames.Candidate{
			Frame: frames.Frame{
				ID:          id,
				VideoID:     videoID,
				FrameNumber: i * 25,
				Timestamp:   float64(i),
				Metrics:     quality.Metrics{QualityScore: float64(90 - i*10)},
				Width:       64,
				Height:      36,
				CreatedAt:   time.Now().UTC(),
			},
			Verdict: quality.Accepted,
			Image:   frameImage(),
		})
	}
	opts := media.ImageProcessingOptions{MaxWidth: 32, MaxHeight: 18, Quality: 85}
	saved, err := s.store.SaveFrames(context.Background(), videoID, cands, opts)
	require.NoError(t, err)
	require.NoError(t, s.store.SaveMetadata(videoID, saved))
	return saved
}

func TestHealthAndConfig(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "clipcraft-api", health["service"])

	rec = s.do(t, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decode[ConfigResponse](t, rec)
	assert.Equal(t, []int{1, 5, 10}, cfg.AvailableSampleRates)
	assert.Equal(t, 50, cfg.UIMaxDisplayFrames)
}

func TestListFramesEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.seedFrames(t, "vid")

	rec := s.do(t, http.MethodGet, "/api/frames/vid", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[FramesListResponse](t, rec)
	assert.Equal(t, "vid", list.VideoID)
	assert.Equal(t, 3, list.FramesCount)
	require.Len(t, list.Frames, 3)
	assert.Equal(t, "a", list.Frames[0].ID)
	assert.True(t, strings.HasPrefix(list.Frames[0].FileURL, "http://example.com/results/frames/vid/"), list.Frames[0].FileURL)
	assert.Contains(t, list.Frames[0].ThumbnailURL, "/results/frames/vid/thumbnails/")

	rec = s.do(t, http.MethodGet, "/api/frames/unknown", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[FramesListResponse](t, rec)
	assert.Zero(t, empty.FramesCount)
	assert.NotNil(t, empty.Frames)

	rec = s.do(t, http.MethodGet, "/api/frames/vid?selected_only=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFrameAssetsAreServed(t *testing.T) {
	s := newTestServer(t)
	saved := s.seedFrames(t, "vid")

	rec := s.do(t, http.MethodGet, "/results/frames/"+saved[0].FilePath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	rec = s.do(t, http.MethodGet, "/results/../index.db", nil)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestSelectionEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.seedFrames(t, "vid")

	rec := s.do(t, http.MethodPost, "/api/frames/select", SelectionRequest{VideoID: "vid", FrameIDs: []string{"b", "c", "zzz"}})
	require.Equal(t, http.StatusOK, rec.Code)
	sel := decode[SelectionResponse](t, rec)
	assert.Equal(t, 2, sel.SelectedFrames)

	rec = s.do(t, http.MethodGet, "/api/frames/vid/selected", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[FramesListResponse](t, rec)
	require.Len(t, list.Frames, 2)
	assert.Equal(t, "b", list.Frames[0].ID)
	assert.Equal(t, "c", list.Frames[1].ID)

	rec = s.do(t, http.MethodPost, "/api/frames/unselect", SelectionRequest{VideoID: "vid", FrameIDs: []string{"b"}})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/frames/vid?selected_only=true", nil)
	list = decode[FramesListResponse](t, rec)
	require.Len(t, list.Frames, 1)
	assert.Equal(t, "c", list.Frames[0].ID)

	rec = s.do(t, http.MethodPost, "/api/frames/select", SelectionRequest{VideoID: "vid", FrameIDs: []string{"nope"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeFramesNotFound, errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/api/frames/select", SelectionRequest{VideoID: "other", FrameIDs: []string{"a"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/frames/select", SelectionRequest{VideoID: "vid"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteFramesEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.seedFrames(t, "vid")

	rec := s.do(t, http.MethodDelete, "/api/frames/vid?frame_ids=a,b&frame_ids=zzz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, float64(2), body["deleted_frames"])

	rec = s.do(t, http.MethodGet, "/api/frames/vid", nil)
	assert.Equal(t, 1, decode[FramesListResponse](t, rec).FramesCount)

	rec = s.do(t, http.MethodDelete, "/api/frames/vid?frame_ids=", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/frames/vid", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/frames/vid", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[FramesListResponse](t, rec).FramesCount)

	rec = s.do(t, http.MethodDelete, "/api/frames/vid", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDebugEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.seedFrames(t, "vid")
	require.NoError(t, os.WriteFile(filepath.Join(s.cfg.VideosPath, "vid.mp4"), []byte("x"), 0644))

	rec := s.do(t, http.MethodGet, "/api/frames/debug/vid", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["directory_exists"])
	assert.Equal(t, true, body["metadata_exists"])
	assert.Equal(t, float64(3), body["metadata_records"])
	assert.Equal(t, true, body["video_files_exist"])
	assert.Contains(t, body["all_video_dirs"], "vid")
}

func TestExtractUnknownVideo(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/frames/extract", ExtractRequest{VideoID: "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeVideoNotFound, errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/api/frames/extract", ExtractRequest{VideoID: "../etc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/frames/task/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeTaskNotFound, errorCode(t, rec))
}

func TestExtractRejectsUnreadableVideo(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.cfg.VideosPath, "bad.mp4"), []byte("not a video"), 0644))

	rec := s.do(t, http.MethodPost, "/api/frames/extract", ExtractRequest{VideoID: "bad"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, CodeVideoInfoError, errorCode(t, rec))

	zero := 0
	rec = s.do(t, http.MethodPost, "/api/frames/extract", ExtractRequest{VideoID: "bad", Config: &extraction.Config{SampleRate: &zero}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidConfig, errorCode(t, rec))
}

func TestExtractRunsToCompletion(t *testing.T) {
	s := newTestServer(t)
	path := filepath.Join(s.cfg.VideosPath, "clip.avi")
	writer, err := gocv.VideoWriterFile(path, "MJPG", 25, 160, 90, true)
	if err != nil || !writer.IsOpened() {
		t.Skipf("video writer unavailable: %v", err)
	}
	for i := 0; i < 20; i++ {
		frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 120, 200, 0), 90, 160, gocv.MatTypeCV8UC3)
		require.NoError(t, writer.Write(frame))
		frame.Close()
	}
	require.NoError(t, writer.Close())

	rec := s.do(t, http.MethodPost, "/api/frames/extract", ExtractRequest{VideoID: "clip"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	task := decode[extraction.Task](t, rec)
	assert.Equal(t, extraction.StatusPending, task.Status)
	assert.Equal(t, 5, task.Config.SampleRate)

	s.service.Wait()

	rec = s.do(t, http.MethodGet, "/api/frames/task/"+task.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	done := decode[extraction.Task](t, rec)
	assert.Equal(t, extraction.StatusCompleted, done.Status)
	assert.Equal(t, done.TotalFrames, done.FramesProcessed)
	// flat frames fail the sharpness check
	assert.Zero(t, done.FramesExtracted)
}

func multipartUpload(t *testing.T, filename, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestVideoUploadLifecycle(t *testing.T) {
	s := newTestServer(t)

	body, ct := multipartUpload(t, "Holiday.MOV", "video/quicktime", "movie-bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/videos/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	up := decode[UploadResponse](t, rec)
	assert.Equal(t, up.ID+".mov", up.Filename)
	assert.Equal(t, "Holiday.MOV", up.OriginalFilename)
	assert.Equal(t, int64(11), up.Size)
	assert.FileExists(t, filepath.Join(s.cfg.VideosPath, up.Filename))

	rec = s.do(t, http.MethodGet, "/api/videos/"+up.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[VideoResponse](t, rec)
	assert.Equal(t, 640, info.Width)
	assert.Equal(t, "00:10", info.DurationFormatted)

	rec = s.do(t, http.MethodGet, "/api/videos", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, rec)["count"])

	rec = s.do(t, http.MethodDelete, "/api/videos/"+up.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoFileExists(t, filepath.Join(s.cfg.VideosPath, up.Filename))

	rec = s.do(t, http.MethodDelete, "/api/videos/"+up.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVideoUploadRejections(t *testing.T) {
	s := newTestServer(t)

	body, ct := multipartUpload(t, "notes.txt", "text/plain", "hello")
	req := httptest.NewRequest(http.MethodPost, "/api/videos/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartUpload(t, "big.mp4", "video/mp4", strings.Repeat("x", 2<<20))
	req = httptest.NewRequest(http.MethodPost, "/api/videos/upload", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	entries, err := os.ReadDir(s.cfg.VideosPath)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVideoInfoFromDisk(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.cfg.VideosPath, "direct.mp4"), []byte("x"), 0644))

	rec := s.do(t, http.MethodGet, "/api/videos/direct", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 250, decode[VideoResponse](t, rec).FrameCount)

	row, err := database.GetVideo(s.index, "direct")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.cfg.VideosPath, "direct.mp4"), row.Path)

	rec = s.do(t, http.MethodGet, "/api/videos/absent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
