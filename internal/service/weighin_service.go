package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/dateutil"
	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/metrics"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
	"github.com/bjelicb/kinetix-backend-sub000/internal/storage"
)

const defaultWeighInListLimit = 52

var ErrPhotoUploadUnavailable = fmt.Errorf("%w: photo uploads are not configured", ErrInvalidState)

// PhotoUpload is a presigned PUT target for a weigh-in photo.
type PhotoUpload struct {
	UploadURL string    `json:"uploadUrl"`
	ObjectKey string    `json:"objectKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type WeighInService interface {
	RecordWeighIn(ctx context.Context, clientID primitive.ObjectID, weightKg float64, date time.Time, photoKey string) (*domain.WeighIn, error)
	ListWeighIns(ctx context.Context, clientID primitive.ObjectID, limit int) ([]domain.WeighIn, error)
	RequestPhotoUploadURL(ctx context.Context, clientID primitive.ObjectID, contentType string) (*PhotoUpload, error)
}

type weighInService struct {
	weighInRepo    repository.WeighInRepository
	userRepo       repository.UserRepository
	fileStorage    storage.FileStorage
	clock          dateutil.Clock
	metrics        *metrics.Manager
	spikeThreshold float64
	presignExpiry  time.Duration
	log            *logrus.Entry
}

func NewWeighInService(
	weighInRepo repository.WeighInRepository,
	userRepo repository.UserRepository,
	fileStorage storage.FileStorage,
	clock dateutil.Clock,
	m *metrics.Manager,
	spikeThresholdPercent float64,
	presignExpiry time.Duration,
) WeighInService {
	if presignExpiry <= 0 {
		presignExpiry = storage.DefaultPresignedURLExpiry
	}
	return &weighInService{
		weighInRepo:    weighInRepo,
		userRepo:       userRepo,
		fileStorage:    fileStorage,
		clock:          clock,
		metrics:        m,
		spikeThreshold: spikeThresholdPercent,
		presignExpiry:  presignExpiry,
		log:            logrus.WithField("component", "weigh-ins"),
	}
}

// RecordWeighIn stores the day's weight, linking it to the plan week it falls
// in and comparing it with the most recent earlier weigh-in.
func (s *weighInService) RecordWeighIn(ctx context.Context, clientID primitive.ObjectID, weightKg float64, date time.Time, photoKey string) (*domain.WeighIn, error) {
	if weightKg <= 0 || math.IsNaN(weightKg) || math.IsInf(weightKg, 0) {
		return nil, invalidInput("weight must be a positive number")
	}
	if photoKey != "" && !strings.HasPrefix(photoKey, photoPrefix(clientID)) {
		return nil, invalidInput("photo key does not belong to this client")
	}
	day := dateutil.StartOfDay(s.clock.Now())
	if !date.IsZero() {
		day = dateutil.StartOfDay(date)
	}
	if day.After(dateutil.StartOfDay(s.clock.Now())) {
		return nil, invalidInput("weigh-in date cannot be in the future")
	}

	client, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	w := &domain.WeighIn{
		ClientID:       clientID,
		Date:           day,
		WeightKg:       weightKg,
		PhotoObjectKey: photoKey,
	}
	if entry, ok := client.ActiveEntryAt(day); ok {
		planID := entry.PlanID
		w.PlanID = &planID
		w.IsMandatory = day.Weekday() == time.Monday
	}

	prev, err := s.weighInRepo.GetLatestBefore(ctx, clientID, day)
	switch {
	case err == nil:
		applySpikeCheck(w, prev.WeightKg, s.spikeThreshold)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	if _, err := s.weighInRepo.Create(ctx, w); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrWeighInExists
		}
		return nil, err
	}

	if w.IsWeightSpike {
		s.metrics.CounterWeightSpikes.Inc()
		s.log.WithFields(logrus.Fields{
			"clientId":      clientID.Hex(),
			"changePercent": w.ChangePercent,
		}).Warn("weight spike detected")
	}
	return w, nil
}

// applySpikeCheck fills the comparison fields of w against prevKg.
func applySpikeCheck(w *domain.WeighIn, prevKg, thresholdPercent float64) {
	if prevKg <= 0 {
		return
	}
	p := prevKg
	w.PreviousWeightKg = &p
	w.ChangePercent = (w.WeightKg - prevKg) / prevKg * 100
	if thresholdPercent <= 0 || math.Abs(w.ChangePercent) < thresholdPercent {
		return
	}
	w.IsWeightSpike = true
	w.IsFlagged = true
	direction := "increased"
	if w.ChangePercent < 0 {
		direction = "decreased"
	}
	w.SpikeMessage = fmt.Sprintf("Weight %s by %.1f%% since your last weigh-in (%.1f kg -> %.1f kg)",
		direction, math.Abs(w.ChangePercent), prevKg, w.WeightKg)
}

func (s *weighInService) ListWeighIns(ctx context.Context, clientID primitive.ObjectID, limit int) ([]domain.WeighIn, error) {
	if limit <= 0 {
		limit = defaultWeighInListLimit
	}
	return s.weighInRepo.GetByClient(ctx, clientID, limit)
}

func (s *weighInService) RequestPhotoUploadURL(ctx context.Context, clientID primitive.ObjectID, contentType string) (*PhotoUpload, error) {
	key, err := storage.WeighInPhotoKey(clientID.Hex(), contentType)
	if err != nil {
		return nil, invalidInput("%v", err)
	}
	url, err := s.fileStorage.GeneratePresignedUploadURL(ctx, key, contentType, s.presignExpiry)
	if err != nil {
		if errors.Is(err, storage.ErrStorageDisabled) {
			return nil, ErrPhotoUploadUnavailable
		}
		return nil, err
	}
	return &PhotoUpload{
		UploadURL: url,
		ObjectKey: key,
		ExpiresAt: s.clock.Now().Add(s.presignExpiry),
	}, nil
}

func photoPrefix(clientID primitive.ObjectID) string {
	return "weigh-ins/" + clientID.Hex() + "/"
}
