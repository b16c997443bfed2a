package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
)

// NextWeekRequest is a client waiting on the trainer to assign their next week.
type NextWeekRequest struct {
	ClientID    primitive.ObjectID `json:"clientId"`
	Name        string             `json:"name"`
	Email       string             `json:"email"`
	RequestedAt *time.Time         `json:"requestedAt,omitempty"`
}

type TrainerService interface {
	// Client Management
	AddClientByEmail(ctx context.Context, trainerID primitive.ObjectID, clientEmail string) (*domain.User, error)
	GetManagedClients(ctx context.Context, trainerID primitive.ObjectID) ([]domain.User, error)
	GetManagedClient(ctx context.Context, actor Actor, clientID primitive.ObjectID) (*domain.User, error)
	ListPendingNextWeekRequests(ctx context.Context, trainerID primitive.ObjectID) ([]NextWeekRequest, error)
}

type trainerService struct {
	userRepo repository.UserRepository
	log      *logrus.Entry
}

func NewTrainerService(userRepo repository.UserRepository) TrainerService {
	return &trainerService{
		userRepo: userRepo,
		log:      logrus.WithField("component", "roster"),
	}
}

// AddClientByEmail finds a client by email and assigns them to the trainer.
// Adding a client the trainer already manages is a no-op.
func (s *trainerService) AddClientByEmail(ctx context.Context, trainerID primitive.ObjectID, clientEmail string) (*domain.User, error) {
	clientEmail = strings.ToLower(strings.TrimSpace(clientEmail))
	if trainerID == primitive.NilObjectID || clientEmail == "" {
		return nil, invalidInput("trainer ID and client email are required")
	}

	client, err := s.userRepo.GetByEmail(ctx, clientEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if !client.IsClient() {
		return nil, ErrClientNotRole
	}

	if client.TrainerID != nil && *client.TrainerID != primitive.NilObjectID {
		if *client.TrainerID == trainerID {
			client.PasswordHash = ""
			return client, nil
		}
		return nil, ErrClientAlreadyAssigned
	}

	if err := s.userRepo.AddClientIDToTrainer(ctx, trainerID, client.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTrainerNotFound
		}
		return nil, err
	}
	if err := s.userRepo.SetTrainerForClient(ctx, client.ID, trainerID); err != nil {
		// The trainer's roster already lists the client; the next add retries this step.
		s.log.WithFields(logrus.Fields{
			"trainerId": trainerID.Hex(),
			"clientId":  client.ID.Hex(),
		}).WithError(err).Error("client added to roster but trainer link failed")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"trainerId": trainerID.Hex(), "clientId": client.ID.Hex()}).Info("client added to roster")
	client.TrainerID = &trainerID
	client.PasswordHash = ""
	return client, nil
}

// GetManagedClients retrieves the list of clients managed by the trainer.
func (s *trainerService) GetManagedClients(ctx context.Context, trainerID primitive.ObjectID) ([]domain.User, error) {
	if trainerID == primitive.NilObjectID {
		return nil, invalidInput("trainer ID is required")
	}
	clients, err := s.userRepo.GetClientsByTrainerID(ctx, trainerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTrainerNotFound
		}
		return nil, err
	}
	for i := range clients {
		clients[i].PasswordHash = ""
	}
	return clients, nil
}

func (s *trainerService) GetManagedClient(ctx context.Context, actor Actor, clientID primitive.ObjectID) (*domain.User, error) {
	client, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if !client.IsClient() {
		return nil, ErrClientNotRole
	}
	if !actor.canManageClient(client) {
		return nil, ErrClientNotManaged
	}
	client.PasswordHash = ""
	return client, nil
}

// ListPendingNextWeekRequests returns the trainer's clients who asked for a next
// week that has not been assigned yet.
func (s *trainerService) ListPendingNextWeekRequests(ctx context.Context, trainerID primitive.ObjectID) ([]NextWeekRequest, error) {
	clients, err := s.GetManagedClients(ctx, trainerID)
	if err != nil {
		return nil, err
	}
	requests := make([]NextWeekRequest, 0)
	for _, c := range clients {
		if !c.NextWeekRequested {
			continue
		}
		requests = append(requests, NextWeekRequest{
			ClientID:    c.ID,
			Name:        c.Name,
			Email:       c.Email,
			RequestedAt: c.NextWeekRequestedAt,
		})
	}
	return requests, nil
}
