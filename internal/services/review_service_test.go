package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sparkmeet/moderation-worker/internal/config"
	"github.com/sparkmeet/moderation-worker/internal/moderation"
	"github.com/sparkmeet/moderation-worker/internal/models"
)

// --- fakes ---

type fakeBlobStore struct {
	objects map[string][]byte
}

func (f *fakeBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", key)
	}
	return data, nil
}

func (f *fakeBlobStore) Put(_ context.Context, key string, data []byte, _ string) error {
	f.objects[key] = data
	return nil
}

func (f *fakeBlobStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

type fakeVendor struct {
	imageResponses map[string]*moderation.ImageAnalysis
	imageCalls     []string
	textResponse   *moderation.TextAnalysis
	textErr        error
	textCalls      []string
}

func (f *fakeVendor) CheckImage(_ context.Context, filename string, _ []byte) (*moderation.ImageAnalysis, error) {
	f.imageCalls = append(f.imageCalls, filename)
	resp, ok := f.imageResponses[filename]
	if !ok {
		return nil, fmt.Errorf("unexpected image submission: %s", filename)
	}
	return resp, nil
}

func (f *fakeVendor) CheckText(_ context.Context, content string) (*moderation.TextAnalysis, error) {
	f.textCalls = append(f.textCalls, content)
	if f.textErr != nil {
		return nil, f.textErr
	}
	if f.textResponse != nil {
		return f.textResponse, nil
	}
	return &moderation.TextAnalysis{Status: "success"}, nil
}

type fakeLocker struct {
	held     map[uuid.UUID]bool
	acquires int
	releases int
}

func (f *fakeLocker) Acquire(_ context.Context, userID uuid.UUID) (bool, error) {
	f.acquires++
	if f.held[userID] {
		return false, nil
	}
	return true, nil
}

func (f *fakeLocker) Release(_ context.Context, _ uuid.UUID) {
	f.releases++
}

type emittedEvent struct {
	UserID uuid.UUID
	Event  string
}

type fakeEmitter struct {
	events []emittedEvent
}

func (f *fakeEmitter) Emit(userID uuid.UUID, event string, _ any) error {
	f.events = append(f.events, emittedEvent{UserID: userID, Event: event})
	return nil
}

// --- helpers ---

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.ReviewRecord{}, &models.Notification{}))
	return db
}

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func cleanImageAnalysis() *moderation.ImageAnalysis {
	return &moderation.ImageAnalysis{Status: "success", Faces: []moderation.FaceSignal{{}}}
}

type testEnv struct {
	db      *gorm.DB
	blobs   *fakeBlobStore
	vendor  *fakeVendor
	locker  *fakeLocker
	emitter *fakeEmitter
	service *ReviewService
	cfg     *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		db:      openTestDB(t),
		blobs:   &fakeBlobStore{objects: map[string][]byte{}},
		vendor:  &fakeVendor{imageResponses: map[string]*moderation.ImageAnalysis{}},
		locker:  &fakeLocker{held: map[uuid.UUID]bool{}},
		emitter: &fakeEmitter{},
		cfg: &config.Config{
			ReviewPageSize:        100,
			TextModerationEnabled: true,
		},
	}
	notifier := NewNotificationService(env.db, env.emitter)
	env.service = NewReviewService(env.db, env.cfg, env.blobs, env.vendor, env.locker, notifier)
	return env
}

func (e *testEnv) createUser(t *testing.T, user *models.User) *models.User {
	t.Helper()
	if user.Email == "" {
		user.Email = uuid.NewString() + "@example.com"
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) createRecord(t *testing.T, userID uuid.UUID, reviewType string) *models.ReviewRecord {
	t.Helper()
	rec := &models.ReviewRecord{UserID: userID, ReviewType: reviewType}
	require.NoError(t, e.db.Create(rec).Error)
	return rec
}

func (e *testEnv) reloadUser(t *testing.T, id uuid.UUID) *models.User {
	t.Helper()
	var user models.User
	require.NoError(t, e.db.First(&user, "id = ?", id).Error)
	return &user
}

// --- tests ---

func TestProcessBatch_DuplicatePhotoRejected(t *testing.T) {
	env := newTestEnv(t)

	red := pngBytes(t, color.NRGBA{R: 255, A: 255})
	green := pngBytes(t, color.NRGBA{G: 255, A: 255})
	env.blobs.objects["photos/u1/first.png"] = red
	env.blobs.objects["photos/u1/second.png"] = red
	env.blobs.objects["photos/u1/third.png"] = green

	env.vendor.imageResponses["photos/u1/first.png"] = cleanImageAnalysis()
	env.vendor.imageResponses["photos/u1/third.png"] = cleanImageAnalysis()

	user := env.createUser(t, &models.User{
		Photos: []models.UserPhoto{
			{Path: "photos/u1/first.png", SortOrder: 0},
			{Path: "photos/u1/second.png", SortOrder: 1},
			{Path: "photos/u1/third.png", SortOrder: 2},
		},
		NumOfPhotos: 3,
	})
	env.createRecord(t, user.ID, models.ReviewTypeFull)

	result := env.service.ProcessBatch(context.Background())

	assert.Equal(t, 1, result.Processed)
	assert.Zero(t, result.Failed)

	// the duplicate never reached the vendor
	assert.Equal(t, []string{"photos/u1/first.png", "photos/u1/third.png"}, env.vendor.imageCalls)

	reloaded := env.reloadUser(t, user.ID)
	require.Len(t, reloaded.Photos, 3)
	assert.False(t, reloaded.Photos[0].IsRejected)
	assert.True(t, reloaded.Photos[1].IsRejected)
	assert.Equal(t, []string{moderation.MsgDuplicatePhoto}, reloaded.Photos[1].Messages)
	assert.False(t, reloaded.Photos[2].IsRejected)

	// derived fields reconciled
	require.NotNil(t, reloaded.MainPhoto)
	assert.Equal(t, "photos/u1/first.png", *reloaded.MainPhoto)
	assert.Equal(t, 2, reloaded.NumOfPhotos)
	assert.Nil(t, reloaded.SuspendedAt)

	// the record stays for a human because a photo was rejected
	var rec models.ReviewRecord
	require.NoError(t, env.db.First(&rec, "user_id = ?", user.ID).Error)
	require.NotNil(t, rec.NeedsHumanReview)
	assert.True(t, *rec.NeedsHumanReview)

	var analysis reviewAnalysis
	require.NoError(t, json.Unmarshal(rec.Analysis, &analysis))
	require.Len(t, analysis.PhotoViolations, 1)
	assert.Equal(t, "photos/u1/second.png", analysis.PhotoViolations[0].Path)

	// exactly one notification, and the matching realtime event
	var notifications []models.Notification
	require.NoError(t, env.db.Find(&notifications, "recipient_id = ?", user.ID).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationPhotosNotApproved, notifications[0].Type)

	require.Len(t, env.emitter.events, 1)
	assert.Equal(t, "account:photosNotApproved", env.emitter.events[0].Event)

	var outcome PhotoReviewOutcome
	require.NoError(t, json.Unmarshal(notifications[0].Content, &outcome))
	require.Len(t, outcome.Rejected, 1)
	assert.Len(t, outcome.Approved, 2)

	// a flagged record is no longer pending
	again := env.service.ProcessBatch(context.Background())
	assert.Zero(t, again.Processed)
}

func TestProcessBatch_AllApprovedConsumesRecord(t *testing.T) {
	env := newTestEnv(t)

	env.blobs.objects["photos/u2/a.png"] = pngBytes(t, color.NRGBA{B: 255, A: 255})
	env.vendor.imageResponses["photos/u2/a.png"] = cleanImageAnalysis()

	user := env.createUser(t, &models.User{
		Photos:      []models.UserPhoto{{Path: "photos/u2/a.png"}},
		NumOfPhotos: 1,
	})
	env.createRecord(t, user.ID, models.ReviewTypeFull)

	result := env.service.ProcessBatch(context.Background())

	assert.Equal(t, 1, result.Processed)

	var count int64
	require.NoError(t, env.db.Model(&models.ReviewRecord{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Zero(t, count)

	require.Len(t, env.emitter.events, 1)
	assert.Equal(t, "account:photosApproved", env.emitter.events[0].Event)
}

func TestProcessBatch_ImageReviewConsumesRecordDespiteRejection(t *testing.T) {
	env := newTestEnv(t)

	env.blobs.objects["photos/u3/a.png"] = pngBytes(t, color.NRGBA{R: 200, A: 255})
	flagged := cleanImageAnalysis()
	flagged.Weapon = 0.95
	env.vendor.imageResponses["photos/u3/a.png"] = flagged

	user := env.createUser(t, &models.User{
		Photos:      []models.UserPhoto{{Path: "photos/u3/a.png"}},
		NumOfPhotos: 1,
	})
	env.createRecord(t, user.ID, models.ReviewTypeImage)

	result := env.service.ProcessBatch(context.Background())

	assert.Equal(t, 1, result.Processed)

	reloaded := env.reloadUser(t, user.ID)
	assert.True(t, reloaded.Photos[0].IsRejected)
	assert.Equal(t, 0, reloaded.NumOfPhotos)
	assert.Nil(t, reloaded.MainPhoto)

	// image-only reviews always consume their record
	var count int64
	require.NoError(t, env.db.Model(&models.ReviewRecord{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestReviewUser_NuditySuspends(t *testing.T) {
	env := newTestEnv(t)

	env.blobs.objects["photos/u4/a.png"] = pngBytes(t, color.NRGBA{R: 255, A: 255})
	env.blobs.objects["photos/u4/b.png"] = pngBytes(t, color.NRGBA{G: 255, A: 255})
	env.blobs.objects["photos/u4/c.png"] = pngBytes(t, color.NRGBA{B: 255, A: 255})

	env.vendor.imageResponses["photos/u4/a.png"] = cleanImageAnalysis()
	nude := cleanImageAnalysis()
	nude.Nudity = &moderation.NuditySignal{Raw: 0.95}
	env.vendor.imageResponses["photos/u4/b.png"] = nude

	user := env.createUser(t, &models.User{
		Bio: "perfectly fine bio",
		Photos: []models.UserPhoto{
			{Path: "photos/u4/a.png", SortOrder: 0},
			{Path: "photos/u4/b.png", SortOrder: 1},
			{Path: "photos/u4/c.png", SortOrder: 2},
		},
		NumOfPhotos: 3,
	})

	outcome, err := env.service.ReviewUser(context.Background(), user.ID)

	require.NoError(t, err)
	assert.Equal(t, "suspended", outcome)

	// the third photo was never submitted
	assert.Equal(t, []string{"photos/u4/a.png", "photos/u4/b.png"}, env.vendor.imageCalls)
	// suspension also skips bio moderation
	assert.Empty(t, env.vendor.textCalls)

	reloaded := env.reloadUser(t, user.ID)
	require.NotNil(t, reloaded.SuspendedAt)
	assert.Equal(t, SuspensionReason, reloaded.SuspendedReason)

	// the photo set is untouched
	for _, p := range reloaded.Photos {
		assert.False(t, p.IsRejected)
	}
	assert.Equal(t, 3, reloaded.NumOfPhotos)

	// no notification and no event for a suspension
	var count int64
	require.NoError(t, env.db.Model(&models.Notification{}).Where("recipient_id = ?", user.ID).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, env.emitter.events)
}

func TestProcessBatch_OneFailureDoesNotStopOthers(t *testing.T) {
	env := newTestEnv(t)

	// broken's photo is missing from the blob store
	broken := env.createUser(t, &models.User{
		Photos:      []models.UserPhoto{{Path: "photos/broken/a.png"}},
		NumOfPhotos: 1,
	})
	env.createRecord(t, broken.ID, models.ReviewTypeFull)

	env.blobs.objects["photos/ok/a.png"] = pngBytes(t, color.NRGBA{B: 255, A: 255})
	env.vendor.imageResponses["photos/ok/a.png"] = cleanImageAnalysis()
	ok := env.createUser(t, &models.User{
		Photos:      []models.UserPhoto{{Path: "photos/ok/a.png"}},
		NumOfPhotos: 1,
	})
	env.createRecord(t, ok.ID, models.ReviewTypeFull)

	result := env.service.ProcessBatch(context.Background())

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)

	// the failed record stays pending for the next tick
	var count int64
	require.NoError(t, env.db.Model(&models.ReviewRecord{}).Where("user_id = ?", broken.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	require.NoError(t, env.db.Model(&models.ReviewRecord{}).Where("user_id = ?", ok.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProcessBatch_SkipsLockedUser(t *testing.T) {
	env := newTestEnv(t)

	user := env.createUser(t, &models.User{})
	env.createRecord(t, user.ID, models.ReviewTypeFull)
	env.locker.held[user.ID] = true

	result := env.service.ProcessBatch(context.Background())

	assert.Zero(t, result.Processed)
	assert.Equal(t, 1, result.Skipped)

	var count int64
	require.NoError(t, env.db.Model(&models.ReviewRecord{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestProcessBatch_DropsOrphanedRecord(t *testing.T) {
	env := newTestEnv(t)

	rec := &models.ReviewRecord{UserID: uuid.New(), ReviewType: models.ReviewTypeFull}
	require.NoError(t, env.db.Create(rec).Error)

	result := env.service.ProcessBatch(context.Background())

	assert.Zero(t, result.Processed)
	assert.Zero(t, result.Failed)

	var count int64
	require.NoError(t, env.db.Model(&models.ReviewRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestReviewUser_BioViolationFlagsForHuman(t *testing.T) {
	env := newTestEnv(t)

	env.vendor.textResponse = &moderation.TextAnalysis{
		Status:     "success",
		Violations: []moderation.TextViolation{{Type: "personal_number", Match: "555-0100"}},
	}

	user := env.createUser(t, &models.User{Bio: "text me at 555-0100"})

	outcome, err := env.service.ReviewUser(context.Background(), user.ID)

	require.NoError(t, err)
	assert.Equal(t, "flagged", outcome)
	assert.Equal(t, []string{"text me at 555-0100"}, env.vendor.textCalls)

	reloaded := env.reloadUser(t, user.ID)
	assert.True(t, reloaded.IsUnderReview)
	assert.Nil(t, reloaded.SuspendedAt)

	// bio violations create the held record when none existed
	var rec models.ReviewRecord
	require.NoError(t, env.db.First(&rec, "user_id = ?", user.ID).Error)
	require.NotNil(t, rec.NeedsHumanReview)
	assert.True(t, *rec.NeedsHumanReview)

	var analysis reviewAnalysis
	require.NoError(t, json.Unmarshal(rec.Analysis, &analysis))
	require.Len(t, analysis.BioViolations, 1)
	assert.Equal(t, "555-0100", analysis.BioViolations[0].Match)
}

func TestReviewUser_TextVendorFailureIsSoft(t *testing.T) {
	env := newTestEnv(t)

	env.vendor.textErr = fmt.Errorf("vendor unavailable")
	user := env.createUser(t, &models.User{Bio: "hello there"})
	env.createRecord(t, user.ID, models.ReviewTypeContent)

	outcome, err := env.service.ReviewUser(context.Background(), user.ID)

	require.NoError(t, err)
	assert.Equal(t, "approved", outcome)

	reloaded := env.reloadUser(t, user.ID)
	assert.False(t, reloaded.IsUnderReview)

	// treated as clean, so the record is consumed
	var count int64
	require.NoError(t, env.db.Model(&models.ReviewRecord{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestReviewUser_BioSkippedWhenDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.TextModerationEnabled = false

	user := env.createUser(t, &models.User{Bio: "anything at all"})

	outcome, err := env.service.ReviewUser(context.Background(), user.ID)

	require.NoError(t, err)
	assert.Equal(t, "approved", outcome)
	assert.Empty(t, env.vendor.textCalls)
}

func TestReviewUser_UserNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.ReviewUser(context.Background(), uuid.New())

	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestNotifyPhotoReview_AtMostOneLiveNotification(t *testing.T) {
	env := newTestEnv(t)
	notifier := NewNotificationService(env.db, env.emitter)
	userID := uuid.New()

	notifier.NotifyPhotoReview(userID, nil, []models.UserPhoto{{Path: "a"}})
	notifier.NotifyPhotoReview(userID, []models.UserPhoto{{Path: "b", IsRejected: true}}, nil)

	var notifications []models.Notification
	require.NoError(t, env.db.Find(&notifications, "recipient_id = ?", userID).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationPhotosNotApproved, notifications[0].Type)
	assert.Len(t, env.emitter.events, 2)
}
