package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trend-launch/internal/domain"
)

// Disclosure — обязательный текст раскрытия рекламного характера эфира.
const Disclosure = "Paid promotion. This live show features a product we sell; prices, stock and delivery terms are shown on the product page."

// DefaultGeneratorTimeout ограничивает каждый вызов генератора контента.
const DefaultGeneratorTimeout = 90 * time.Second

// Service генерирует материалы шоу для запуска.
type Service struct {
	launches  domain.LaunchRepo
	packs     domain.AssetPackRepo
	generator domain.ContentGenerator
	advancer  domain.LaunchAdvancer
	jobs      domain.JobQueue
	locker    domain.Locker
	clock     domain.Clock
	log       zerolog.Logger
	timeout   time.Duration
}

// NewService создаёт конвейер материалов.
func NewService(launches domain.LaunchRepo, packs domain.AssetPackRepo, generator domain.ContentGenerator, advancer domain.LaunchAdvancer, jobs domain.JobQueue, locker domain.Locker, clock domain.Clock, logger zerolog.Logger, timeout time.Duration) *Service {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if timeout <= 0 {
		timeout = DefaultGeneratorTimeout
	}
	return &Service{
		launches:  launches,
		packs:     packs,
		generator: generator,
		advancer:  advancer,
		jobs:      jobs,
		locker:    locker,
		clock:     clock,
		log:       logger.With().Str("component", "assets").Logger(),
		timeout:   timeout,
	}
}

func (s *Service) activeLaunch(ctx context.Context, launchID string) (domain.Launch, error) {
	launch, err := s.launches.GetLaunch(ctx, launchID)
	if err != nil {
		return domain.Launch{}, fmt.Errorf("получение запуска: %w", err)
	}
	if launch.Status.Terminal() || launch.Status.Stage() >= domain.LaunchStatusLive.Stage() {
		return domain.Launch{}, domain.Preconditionf("launch %s is %s", launchID, launch.Status)
	}
	return launch, nil
}

func normalizePlatform(platform string) (string, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		return "", domain.Validationf("platform is required")
	}
	return platform, nil
}

// Request ставит генерацию материалов в очередь.
func (s *Service) Request(ctx context.Context, launchID, platform string) (domain.AutomationJob, error) {
	platform, err := normalizePlatform(platform)
	if err != nil {
		return domain.AutomationJob{}, err
	}
	if _, err := s.activeLaunch(ctx, launchID); err != nil {
		return domain.AutomationJob{}, err
	}
	job, err := domain.NewJob(domain.JobAssetGeneration, domain.JobPayload{LaunchID: launchID, Platform: platform})
	if err != nil {
		return domain.AutomationJob{}, fmt.Errorf("сборка задачи: %w", err)
	}
	job, err = s.jobs.Enqueue(ctx, job)
	if err != nil {
		return domain.AutomationJob{}, fmt.Errorf("постановка генерации: %w", err)
	}
	return job, nil
}

// Generate вызывает генератор контента и сохраняет пакет целиком или не сохраняет ничего.
func (s *Service) Generate(ctx context.Context, launchID, platform string) (domain.AssetPack, error) {
	platform, err := normalizePlatform(platform)
	if err != nil {
		return domain.AssetPack{}, err
	}
	release, err := s.locker.Acquire(ctx, "assets:"+launchID+":"+platform)
	if err != nil {
		return domain.AssetPack{}, err
	}
	defer release()

	launch, err := s.activeLaunch(ctx, launchID)
	if err != nil {
		return domain.AssetPack{}, err
	}
	req := domain.ContentRequest{Product: launch.Product, Platform: platform, Segments: domain.Segments}

	scripts, err := s.generateScripts(ctx, req)
	if err != nil {
		return domain.AssetPack{}, err
	}
	playbook, err := s.generatePlaybook(ctx, req)
	if err != nil {
		return domain.AssetPack{}, err
	}
	if err := validate(scripts, playbook); err != nil {
		s.log.Warn().Err(err).Str("launch_id", launchID).Str("platform", platform).Msg("assets: ответ генератора отклонён")
		return domain.AssetPack{}, fmt.Errorf("%w: %v", domain.ErrAssetGenerationFailed, err)
	}

	now := s.clock.Now()
	pack, err := s.packs.SaveAssetPack(ctx, domain.AssetPack{
		ID:                 uuid.NewString(),
		LaunchID:           launchID,
		Platform:           platform,
		Scripts:            scripts,
		Playbook:           playbook,
		Disclosure:         Disclosure,
		ComplianceApproved: true,
		Status:             domain.AssetPackStatusReady,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if err != nil {
		return domain.AssetPack{}, fmt.Errorf("сохранение пакета: %w", err)
	}
	if _, err := s.advancer.Advance(ctx, launchID, domain.LaunchStatusAssetsGenerating); err != nil {
		return domain.AssetPack{}, fmt.Errorf("продвижение запуска: %w", err)
	}
	s.log.Info().Str("launch_id", launchID).Str("platform", platform).Int("version", pack.Version).Msg("assets: пакет готов")
	return pack, nil
}

func (s *Service) generateScripts(ctx context.Context, req domain.ContentRequest) (domain.PresenterScripts, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	scripts, err := s.generator.GenerateScripts(callCtx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: scripts: %v", domain.ErrAssetGenerationFailed, err)
	}
	return scripts, nil
}

func (s *Service) generatePlaybook(ctx context.Context, req domain.ContentRequest) (domain.ModeratorPlaybook, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	playbook, err := s.generator.GenerateModeratorPlaybook(callCtx, req)
	if err != nil {
		return domain.ModeratorPlaybook{}, fmt.Errorf("%w: playbook: %v", domain.ErrAssetGenerationFailed, err)
	}
	return playbook, nil
}

var errInvalidContent = errors.New("invalid generated content")

func validate(scripts domain.PresenterScripts, playbook domain.ModeratorPlaybook) error {
	for _, segment := range domain.Segments {
		if strings.TrimSpace(scripts[segment]) == "" {
			return fmt.Errorf("%w: segment %s is empty", errInvalidContent, segment)
		}
	}
	if len(scripts) != len(domain.Segments) {
		return fmt.Errorf("%w: unexpected segments", errInvalidContent)
	}
	for _, phrase := range playbook.ProhibitedPhrases {
		needle := strings.ToLower(strings.TrimSpace(phrase))
		if needle == "" {
			continue
		}
		for segment, text := range scripts {
			if strings.Contains(strings.ToLower(text), needle) {
				return fmt.Errorf("%w: segment %s contains prohibited phrase %q", errInvalidContent, segment, phrase)
			}
		}
	}
	return nil
}

// Get возвращает пакет материалов.
func (s *Service) Get(ctx context.Context, packID string) (domain.AssetPack, error) {
	pack, err := s.packs.GetAssetPack(ctx, packID)
	if err != nil {
		return domain.AssetPack{}, fmt.Errorf("получение пакета: %w", err)
	}
	return pack, nil
}

// List возвращает пакеты запуска.
func (s *Service) List(ctx context.Context, launchID string) ([]domain.AssetPack, error) {
	packs, err := s.packs.ListAssetPacks(ctx, launchID)
	if err != nil {
		return nil, fmt.Errorf("список пакетов: %w", err)
	}
	return packs, nil
}
