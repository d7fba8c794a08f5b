package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/pubsub"
	"app/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// HistoryItem is one entry of a user's generation history, with a short-lived
// presigned URL when the image was stored.
type HistoryItem struct {
	Generation model.Generation
	ImageURL   string
}

// AvatarService runs the guarded generation flow: decide entitlement, call
// the external image API, persist the result, then debit.
type AvatarService interface {
	// Generate performs one avatar generation for the user and returns the
	// image as a data URI. Returns ErrEntitlementExhausted when no quota
	// source can cover the request; in that case (and on any generation
	// failure) no counter or credit balance is touched.
	Generate(ctx context.Context, userID, mode, imageB64, description string) (string, error)
	// History lists the user's past generations, newest first.
	History(ctx context.Context, userID string, limit, offset int) ([]HistoryItem, error)
}

type avatarService struct {
	entitlementSvc  EntitlementService
	generator       AvatarGenerator
	generationRepo  repository.GenerationRepository
	s3Client        *s3.Client
	presignClient   *s3.PresignClient
	bucketName      string
	publisher       pubsub.Publisher
	generationTopic string
	logger          zerolog.Logger
}

// NewAvatarService creates a new AvatarService.
func NewAvatarService(
	entitlementSvc EntitlementService,
	generator AvatarGenerator,
	generationRepo repository.GenerationRepository,
	s3Client *s3.Client,
	bucketName string,
	publisher pubsub.Publisher,
	generationTopic string,
	logger zerolog.Logger,
) AvatarService {
	var presign *s3.PresignClient
	if s3Client != nil {
		presign = s3.NewPresignClient(s3Client)
	}
	return &avatarService{
		entitlementSvc:  entitlementSvc,
		generator:       generator,
		generationRepo:  generationRepo,
		s3Client:        s3Client,
		presignClient:   presign,
		bucketName:      bucketName,
		publisher:       publisher,
		generationTopic: generationTopic,
		logger:          logger.With().Str("service", "AvatarService").Logger(),
	}
}

func (s *avatarService) Generate(ctx context.Context, userID, mode, imageB64, description string) (string, error) {
	decision, err := s.entitlementSvc.Decide(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("entitlement check: %w", err)
	}
	if !decision.Allowed {
		return "", ErrEntitlementExhausted
	}

	// The external call can take seconds; nothing is held or debited while it
	// runs. On failure the caller sees the error and no quota moved.
	var img []byte
	var inputKind string
	switch mode {
	case model.ModePhotoToAvatar:
		inputKind = "photo"
		img, err = s.generator.GenerateFromPhoto(ctx, imageB64)
	case model.ModeTextToAvatar:
		inputKind = "text"
		img, err = s.generator.GenerateFromText(ctx, description)
	default:
		return "", fmt.Errorf("invalid mode: %s", mode)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("mode", mode).Msg("Avatar generation failed")
		return "", fmt.Errorf("generate avatar: %w", err)
	}

	// Storage feeds the history view only; a storage fault must not discard a
	// generation the user already paid the external call for.
	var storagePath *string
	path := fmt.Sprintf("avatars/%s/%d.png", userID, time.Now().UnixNano())
	if err := s.storeImage(ctx, path, img); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("path", path).Msg("Failed to store generated avatar")
	} else {
		storagePath = &path
	}

	gen := &model.Generation{
		UserID:      userID,
		Mode:        mode,
		InputKind:   inputKind,
		StoragePath: storagePath,
	}
	if err := s.generationRepo.InsertGeneration(ctx, gen); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to record generation")
	}

	if err := s.entitlementSvc.Debit(ctx, userID, decision.Source); err != nil {
		// The user already has the image; log loudly rather than fail the
		// response over a lost debit.
		s.logger.Error().Err(err).Str("user_id", userID).Str("source", string(decision.Source)).Msg("Failed to apply debit after successful generation")
	}

	s.publishGenerationEvent(ctx, userID, mode, decision.Source)

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(img), nil
}

func (s *avatarService) storeImage(ctx context.Context, path string, img []byte) error {
	if s.s3Client == nil {
		return fmt.Errorf("storage not configured")
	}
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(path),
		Body:        bytes.NewReader(img),
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return fmt.Errorf("put avatar object %s: %w", path, err)
	}
	return nil
}

func (s *avatarService) publishGenerationEvent(ctx context.Context, userID, mode string, source model.DebitSource) {
	if s.publisher == nil || s.generationTopic == "" {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"user_id":      userID,
		"mode":         mode,
		"debit_source": string(source),
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, s.generationTopic, payload); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to publish generation event")
	}
}

func (s *avatarService) History(ctx context.Context, userID string, limit, offset int) ([]HistoryItem, error) {
	gens, err := s.generationRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]HistoryItem, 0, len(gens))
	for _, g := range gens {
		item := HistoryItem{Generation: g}
		if g.StoragePath != nil && s.presignClient != nil {
			url, err := s.presignedGetURL(ctx, *g.StoragePath)
			if err != nil {
				s.logger.Warn().Err(err).Str("path", *g.StoragePath).Msg("Failed to presign avatar URL")
			} else {
				item.ImageURL = url
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *avatarService) presignedGetURL(ctx context.Context, path string) (string, error) {
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", fmt.Errorf("presign get for %s: %w", path, err)
	}
	return req.URL, nil
}
