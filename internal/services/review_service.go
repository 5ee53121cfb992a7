package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sparkmeet/moderation-worker/internal/config"
	"github.com/sparkmeet/moderation-worker/internal/locking"
	"github.com/sparkmeet/moderation-worker/internal/moderation"
	"github.com/sparkmeet/moderation-worker/internal/models"
	"github.com/sparkmeet/moderation-worker/internal/monitoring"
	"github.com/sparkmeet/moderation-worker/internal/similarity"
	"github.com/sparkmeet/moderation-worker/internal/storage"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrUserLocked = errors.New("user review already in progress")

// ModerationClient is the vendor surface the review pipeline depends on.
type ModerationClient interface {
	CheckImage(ctx context.Context, filename string, image []byte) (*moderation.ImageAnalysis, error)
	CheckText(ctx context.Context, content string) (*moderation.TextAnalysis, error)
}

// ReviewService runs the content review pipeline: duplicate detection,
// vendor moderation, decisions, profile reconciliation, and notification.
type ReviewService struct {
	db         *gorm.DB
	cfg        *config.Config
	blobs      storage.BlobStore
	vendor     ModerationClient
	locker     locking.UserLocker
	notifier   *NotificationService
	reconciler *Reconciler
}

func NewReviewService(db *gorm.DB, cfg *config.Config, blobs storage.BlobStore,
	vendor ModerationClient, locker locking.UserLocker, notifier *NotificationService) *ReviewService {
	return &ReviewService{
		db:         db,
		cfg:        cfg,
		blobs:      blobs,
		vendor:     vendor,
		locker:     locker,
		notifier:   notifier,
		reconciler: NewReconciler(db),
	}
}

// BatchResult summarizes one drain of the pending-review backlog.
type BatchResult struct {
	Processed int
	Failed    int
	Skipped   int
	Suspended int
	Flagged   int
}

// ProcessBatch drains the current backlog of pending review records. Each
// consumed record is deleted or flagged, so every page is re-queried from
// offset zero; records that failed this invocation are remembered and skipped
// so the drain always terminates, and they stay pending for the next tick.
// One record's failure never stops the batch.
func (s *ReviewService) ProcessBatch(ctx context.Context) *BatchResult {
	result := &BatchResult{}
	seen := make(map[uuid.UUID]struct{})
	offset := 0

	for {
		var records []models.ReviewRecord
		err := s.db.
			Where("needs_human_review IS NULL OR needs_human_review = ?", false).
			Order("created_at ASC").
			Limit(s.cfg.ReviewPageSize).
			Offset(offset).
			Find(&records).Error
		if err != nil {
			slog.Error("failed to list pending reviews", "error", err)
			sentry.CaptureException(err)
			return result
		}
		if len(records) == 0 {
			return result
		}

		fresh := make([]models.ReviewRecord, 0, len(records))
		for _, rec := range records {
			if _, ok := seen[rec.UserID]; !ok {
				fresh = append(fresh, rec)
			}
		}
		if len(fresh) == 0 {
			// The whole page already failed or was skipped this invocation;
			// move past it instead of spinning.
			offset += len(records)
			continue
		}
		offset = 0

		for _, rec := range fresh {
			seen[rec.UserID] = struct{}{}
			s.processRecord(ctx, rec, result)
		}
	}
}

// ReviewUser performs a full review for one user regardless of any pending
// review record (single-user mode).
func (s *ReviewService) ReviewUser(ctx context.Context, userID uuid.UUID) (string, error) {
	var rec *models.ReviewRecord
	var existing models.ReviewRecord
	if err := s.db.First(&existing, "user_id = ?", userID).Error; err == nil {
		rec = &existing
	}
	return s.reviewWithLock(ctx, userID, models.ReviewTypeFull, rec)
}

func (s *ReviewService) processRecord(ctx context.Context, rec models.ReviewRecord, result *BatchResult) {
	outcome, err := s.reviewWithLock(ctx, rec.UserID, rec.ReviewType, &rec)
	switch {
	case errors.Is(err, ErrUserLocked):
		result.Skipped++
		monitoring.ReviewsProcessed.WithLabelValues(monitoring.OutcomeSkipped).Inc()
	case errors.Is(err, ErrUserNotFound):
		// Orphaned record; the user is gone.
		slog.Warn("dropping review record for missing user", "user_id", rec.UserID)
		if delErr := s.db.Delete(&models.ReviewRecord{}, "id = ?", rec.ID).Error; delErr != nil {
			slog.Error("failed to delete orphaned review record", "user_id", rec.UserID, "error", delErr)
		}
	case err != nil:
		result.Failed++
		slog.Error("user review failed", "user_id", rec.UserID, "action", "review", "error", err)
		sentry.CaptureException(err)
		monitoring.ReviewsProcessed.WithLabelValues(monitoring.OutcomeFailed).Inc()
	default:
		result.Processed++
		switch outcome {
		case monitoring.OutcomeSuspended:
			result.Suspended++
		case monitoring.OutcomeFlagged:
			result.Flagged++
		}
		monitoring.ReviewsProcessed.WithLabelValues(outcome).Inc()
	}
}

func (s *ReviewService) reviewWithLock(ctx context.Context, userID uuid.UUID, reviewType string, rec *models.ReviewRecord) (string, error) {
	ok, err := s.locker.Acquire(ctx, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrUserLocked
	}
	defer s.locker.Release(ctx, userID)

	timer := prometheus.NewTimer(monitoring.ReviewDuration)
	defer timer.ObserveDuration()

	return s.review(ctx, userID, reviewType, rec)
}

func (s *ReviewService) review(ctx context.Context, userID uuid.UUID, reviewType string, rec *models.ReviewRecord) (string, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	outcome := monitoring.OutcomeApproved
	suspended := false
	var decisions []PhotoDecision

	if reviewType == models.ReviewTypeImage || reviewType == models.ReviewTypeFull {
		var err error
		decisions, err = s.reviewPhotos(ctx, &user)
		if err != nil {
			return "", err
		}

		if ShouldSuspend(decisions) {
			// Terminal outcome: the account is disabled and processing for
			// this user stops. No photo-set mutation, no reconciliation, no
			// notification.
			suspended = true
			outcome = monitoring.OutcomeSuspended
			now := time.Now()
			err := s.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
				"suspended_at":     now,
				"suspended_reason": SuspensionReason,
			}).Error
			if err != nil {
				return "", fmt.Errorf("failed to suspend user: %w", err)
			}
			slog.Warn("account suspended after photo review", "user_id", user.ID)
		} else if len(decisions) > 0 {
			updated := ApplyDecisions(user.Photos, decisions)
			err := s.db.Model(&models.User{}).Where("id = ?", user.ID).Update("photos", updated).Error
			if err != nil {
				return "", fmt.Errorf("failed to persist photo decisions: %w", err)
			}
			user.Photos = updated

			if err := s.reconciler.Reconcile(user.ID); err != nil {
				return "", fmt.Errorf("failed to reconcile profile state: %w", err)
			}

			rejected, approved := partitionPhotos(user.Photos, decisions)
			monitoring.PhotosRejected.Add(float64(len(rejected)))
			monitoring.PhotosApproved.Add(float64(len(approved)))
			if len(rejected) > 0 {
				outcome = monitoring.OutcomeRejected
			}
			s.notifier.NotifyPhotoReview(user.ID, rejected, approved)
		}
	}

	var bioViolations []moderation.TextViolation
	if !suspended && s.cfg.TextModerationEnabled &&
		(reviewType == models.ReviewTypeContent || reviewType == models.ReviewTypeFull) &&
		strings.TrimSpace(user.Bio) != "" {
		bioViolations = s.reviewBio(ctx, &user)
		if len(bioViolations) > 0 && outcome == monitoring.OutcomeApproved {
			outcome = monitoring.OutcomeFlagged
		}
	}

	if err := s.finishRecord(reviewType, rec, &user, decisions, bioViolations, suspended); err != nil {
		return "", err
	}
	return outcome, nil
}

// reviewPhotos runs the photo stage over the user's active photo set:
// materialize every image locally, reject near-duplicates without spending a
// vendor call, then submit the rest for analysis. Any I/O or vendor failure
// aborts this user's review.
func (s *ReviewService) reviewPhotos(ctx context.Context, user *models.User) ([]PhotoDecision, error) {
	active := user.ActivePhotos()
	if len(active) == 0 {
		return nil, nil
	}

	workdir, err := storage.NewWorkdir(user.ID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to create review workdir: %w", err)
	}
	defer workdir.Cleanup()

	locals := make(map[string]string, len(active))
	for _, photo := range active {
		local, err := workdir.Materialize(ctx, s.blobs, photo.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to download photo %s: %w", photo.Path, err)
		}
		locals[photo.Path] = local
	}

	detector := similarity.NewDetector()
	decisions := make([]PhotoDecision, 0, len(active))
	kept := make([]string, 0, len(active))

	for _, photo := range active {
		local := locals[photo.Path]

		dup, err := detector.IsDuplicate(local, kept)
		if err != nil {
			return nil, err
		}
		if dup {
			decisions = append(decisions, PhotoDecision{
				Path:     photo.Path,
				Rejected: true,
				Messages: []string{moderation.MsgDuplicatePhoto},
			})
			continue
		}
		kept = append(kept, local)

		data, err := os.ReadFile(local)
		if err != nil {
			return nil, fmt.Errorf("failed to read photo %s: %w", photo.Path, err)
		}
		analysis, err := s.vendor.CheckImage(ctx, photo.Path, data)
		if err != nil {
			monitoring.VendorErrors.WithLabelValues("image").Inc()
			return nil, err
		}
		report, err := moderation.Summarize(analysis)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, DecidePhoto(photo.Path, report))

		// A high-severity violation suspends the account; the remaining
		// photos are never submitted.
		if ShouldSuspend(decisions) {
			break
		}
	}
	return decisions, nil
}

// reviewBio submits the bio to the text-moderation endpoint. Vendor failure
// here is soft: the run proceeds as if no violation was found. Violations
// mark the user under review; they never suspend.
func (s *ReviewService) reviewBio(ctx context.Context, user *models.User) []moderation.TextViolation {
	analysis, err := s.vendor.CheckText(ctx, user.Bio)
	if err != nil {
		monitoring.VendorErrors.WithLabelValues("text").Inc()
		slog.Warn("text moderation unavailable, skipping bio this run", "user_id", user.ID, "error", err)
		return nil
	}
	if len(analysis.Violations) == 0 {
		return nil
	}

	if err := s.db.Model(&models.User{}).Where("id = ?", user.ID).Update("is_under_review", true).Error; err != nil {
		slog.Error("failed to mark user under review", "user_id", user.ID, "error", err)
	}
	return analysis.Violations
}

// reviewAnalysis is the payload attached to a review record held for a human.
type reviewAnalysis struct {
	PhotoViolations []PhotoDecision            `json:"photo_violations,omitempty"`
	BioViolations   []moderation.TextViolation `json:"bio_violations,omitempty"`
}

// finishRecord applies the cleanup rule: image-only reviews always consume
// their record, content/full reviews consume it only when clean. A record
// kept for violations carries the human-review flag and the analysis payload
// until a human clears it out-of-band.
func (s *ReviewService) finishRecord(reviewType string, rec *models.ReviewRecord, user *models.User,
	decisions []PhotoDecision, bioViolations []moderation.TextViolation, suspended bool) error {

	rejected := make([]PhotoDecision, 0, len(decisions))
	for _, d := range decisions {
		if d.Rejected {
			rejected = append(rejected, d)
		}
	}
	violations := suspended || len(rejected) > 0 || len(bioViolations) > 0

	if reviewType == models.ReviewTypeImage || !violations {
		if rec == nil {
			return nil
		}
		return s.db.Delete(&models.ReviewRecord{}, "id = ?", rec.ID).Error
	}

	payload, err := json.Marshal(reviewAnalysis{PhotoViolations: rejected, BioViolations: bioViolations})
	if err != nil {
		return err
	}

	if rec == nil {
		// Records are only created here by the bio path; photo violations
		// alone do not queue new human work.
		if len(bioViolations) == 0 {
			return nil
		}
		human := true
		record := models.ReviewRecord{
			UserID:           user.ID,
			ReviewType:       reviewType,
			NeedsHumanReview: &human,
			Analysis:         datatypes.JSON(payload),
		}
		return s.db.Create(&record).Error
	}

	return s.db.Model(&models.ReviewRecord{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
		"needs_human_review": true,
		"analysis":           datatypes.JSON(payload),
	}).Error
}

// partitionPhotos splits this pass's reviewed photos into rejected and
// approved lists for the outcome notification.
func partitionPhotos(photos []models.UserPhoto, decisions []PhotoDecision) (rejected, approved []models.UserPhoto) {
	reviewed := make(map[string]bool, len(decisions))
	for _, d := range decisions {
		reviewed[d.Path] = true
	}
	for _, p := range photos {
		if !reviewed[p.Path] {
			continue
		}
		if p.IsRejected {
			rejected = append(rejected, p)
		} else {
			approved = append(approved, p)
		}
	}
	return rejected, approved
}
