package jobs

import (
	"context"

	"trend-launch/internal/domain"
	"trend-launch/internal/usecase/assets"
	"trend-launch/internal/usecase/hosts"
	"trend-launch/internal/usecase/liveshow"
	"trend-launch/internal/usecase/profit"
	"trend-launch/internal/usecase/teststream"
)

// Services — сервисы, которые выполняют работу конвейера.
type Services struct {
	Assets      *assets.Service
	TestStreams *teststream.Service
	Shows       *liveshow.Service
	Profit      *profit.Service
	Hosts       *hosts.Service
}

// RegisterPipeline привязывает все типы задач конвейера к сервисам.
func RegisterPipeline(w *Worker, s Services) {
	w.Handle(domain.JobAssetGeneration, func(ctx context.Context, _ domain.AutomationJob, p domain.JobPayload) error {
		_, err := s.Assets.Generate(ctx, p.LaunchID, p.Platform)
		return err
	})
	w.Handle(domain.JobTestStream, func(ctx context.Context, _ domain.AutomationJob, p domain.JobPayload) error {
		_, err := s.TestStreams.Run(ctx, p.TestStreamID)
		return err
	})
	w.Handle(domain.JobBroadcastProvision, func(ctx context.Context, _ domain.AutomationJob, p domain.JobPayload) error {
		_, err := s.Shows.Provision(ctx, p.ShowID)
		return err
	})
	w.Handle(domain.JobBroadcastStart, func(ctx context.Context, _ domain.AutomationJob, p domain.JobPayload) error {
		return s.Shows.StartBroadcast(ctx, p.ShowID)
	})
	w.Handle(domain.JobBroadcastStop, func(ctx context.Context, _ domain.AutomationJob, p domain.JobPayload) error {
		return s.Shows.StopBroadcast(ctx, p.ShowID)
	})
	w.Handle(domain.JobClipExtraction, func(ctx context.Context, _ domain.AutomationJob, p domain.JobPayload) error {
		_, err := s.Shows.ExtractClips(ctx, p.ShowID)
		return err
	})
	w.Handle(domain.JobProfitCalculation, func(ctx context.Context, _ domain.AutomationJob, p domain.JobPayload) error {
		_, err := s.Profit.Calculate(ctx, p.LaunchID)
		return err
	})
	w.Handle(domain.JobHostPerformance, func(ctx context.Context, _ domain.AutomationJob, p domain.JobPayload) error {
		return s.Hosts.RecordShowPerformance(ctx, p.ShowID)
	})
}
