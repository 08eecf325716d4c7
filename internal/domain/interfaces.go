package domain

import (
	"context"
	"time"
)

// TrendRepo хранит трендовые продукты.
type TrendRepo interface {
	CreateTrend(ctx context.Context, trend TrendProduct) error
	GetTrend(ctx context.Context, id string) (TrendProduct, error)
	GetTrendByURL(ctx context.Context, sourceURL string) (TrendProduct, error)
	UpdateTrend(ctx context.Context, trend TrendProduct) error
	// UpdateTrendIfStatus перезаписывает тренд только если его статус всё ещё равен status, иначе ErrConcurrencyConflict.
	UpdateTrendIfStatus(ctx context.Context, trend TrendProduct, status TrendStatus) error
	ListTrends(ctx context.Context, filter TrendFilter) ([]TrendProduct, error)
}

// ShortlistRepo фиксирует шортлисты вместе с повышением статусов трендов.
type ShortlistRepo interface {
	// CommitShortlist атомарно сохраняет снимок и переводит тренды в SHORTLISTED с рангом.
	// Меняются только статус, ранг и время обновления; тренд, покинувший ANALYZING, даёт ErrConcurrencyConflict.
	CommitShortlist(ctx context.Context, shortlist DailyShortlist, promoted []TrendProduct) error
	LatestShortlist(ctx context.Context) (DailyShortlist, error)
}

// LaunchRepo хранит запуски.
type LaunchRepo interface {
	// CreateLaunch атомарно сохраняет запуск и переводит исходный тренд в LAUNCHED.
	// У тренда меняются только статус и время обновления; уже запущенный, отклонённый или архивный тренд даёт ErrConcurrencyConflict.
	CreateLaunch(ctx context.Context, launch Launch, source TrendProduct) error
	GetLaunch(ctx context.Context, id string) (Launch, error)
	ListLaunches(ctx context.Context, filter LaunchFilter) ([]Launch, error)
	// UpdateLaunchStatus меняет статус только если текущий равен from, иначе ErrConcurrencyConflict.
	UpdateLaunchStatus(ctx context.Context, id string, from, to LaunchStatus, reason string, at time.Time) error
	SetLaunchHost(ctx context.Context, id, hostID string) error
}

// AssetPackRepo хранит пакеты материалов.
type AssetPackRepo interface {
	// SaveAssetPack делает upsert по паре (launch, platform) и возвращает сохранённую версию.
	SaveAssetPack(ctx context.Context, pack AssetPack) (AssetPack, error)
	GetAssetPack(ctx context.Context, id string) (AssetPack, error)
	ListAssetPacks(ctx context.Context, launchID string) ([]AssetPack, error)
}

// TestStreamRepo хранит репетиции.
type TestStreamRepo interface {
	CreateTestStream(ctx context.Context, stream TestStream) error
	GetTestStream(ctx context.Context, id string) (TestStream, error)
	UpdateTestStream(ctx context.Context, stream TestStream) error
	ListTestStreams(ctx context.Context, launchID string) ([]TestStream, error)
}

// ReadinessRepo хранит по одной записи готовности на запуск.
type ReadinessRepo interface {
	UpsertReadiness(ctx context.Context, readiness GoLiveReadiness) error
	GetReadiness(ctx context.Context, launchID string) (GoLiveReadiness, error)
}

// HostRepo хранит ведущих и пакеты передачи.
type HostRepo interface {
	CreateHost(ctx context.Context, host Host) error
	GetHost(ctx context.Context, id string) (Host, error)
	UpdateHost(ctx context.Context, host Host) error
	ListHosts(ctx context.Context) ([]Host, error)
	CreateHandoffPack(ctx context.Context, pack HostHandoffPack) error
	GetHandoffPack(ctx context.Context, id string) (HostHandoffPack, error)
	UpdateHandoffPack(ctx context.Context, pack HostHandoffPack) error
	ListHandoffPacks(ctx context.Context, launchID string) ([]HostHandoffPack, error)
	// RecordHostPerformance атомарно обновляет накопительные итоги ведущего и помечает эфир учтённым.
	RecordHostPerformance(ctx context.Context, host Host, show LiveShow) error
}

// LiveShowRepo хранит эфиры, отметки и клипы.
type LiveShowRepo interface {
	CreateLiveShow(ctx context.Context, show LiveShow) error
	GetLiveShow(ctx context.Context, id string) (LiveShow, error)
	UpdateLiveShow(ctx context.Context, show LiveShow) error
	ListLiveShows(ctx context.Context, filter LiveShowFilter) ([]LiveShow, error)
	AddTimestamp(ctx context.Context, ts LiveShowTimestamp) error
	ListTimestamps(ctx context.Context, showID string) ([]LiveShowTimestamp, error)
	ReplaceClips(ctx context.Context, showID string, clips []PostLiveClip) error
	ListClips(ctx context.Context, showID string) ([]PostLiveClip, error)
}

// ProfitRepo — журнал расчётов прибыли.
type ProfitRepo interface {
	AppendProfit(ctx context.Context, record ProfitTracking) error
	ListProfit(ctx context.Context, launchID string) ([]ProfitTracking, error)
}

// JobQueue — приоритетная очередь задач. Claim атомарно переводит задачу QUEUED→RUNNING.
type JobQueue interface {
	Enqueue(ctx context.Context, job AutomationJob) (AutomationJob, error)
	// Claim возвращает ErrNotFound, если готовых задач нет.
	Claim(ctx context.Context) (AutomationJob, error)
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, cause string) error
	// Cancel помечает задачу CANCELLED, если она ещё не выполнялась.
	Cancel(ctx context.Context, id string) error
	CancelByLaunch(ctx context.Context, launchID string) (int, error)
	Get(ctx context.Context, id string) (AutomationJob, error)
	List(ctx context.Context, filter JobFilter) ([]AutomationJob, error)
}

// ContentGenerator — внешний генератор текстов.
type ContentGenerator interface {
	GenerateScripts(ctx context.Context, req ContentRequest) (PresenterScripts, error)
	GenerateModeratorPlaybook(ctx context.Context, req ContentRequest) (ModeratorPlaybook, error)
}

// Room — комната трансляции у провайдера.
type Room struct {
	ID      string
	Private bool
}

// Recording — запись эфира у провайдера.
type Recording struct {
	URL       string
	StartedAt time.Time
}

// BroadcastProvider — внешняя видеоинфраструктура.
type BroadcastProvider interface {
	CreateRoom(ctx context.Context, name string, private bool) (Room, error)
	StartBroadcast(ctx context.Context, roomID string) error
	StopBroadcast(ctx context.Context, roomID string) error
	ListParticipants(ctx context.Context, roomID string) (int, error)
	ListRecordings(ctx context.Context, roomID string) ([]Recording, error)
}

// HealthChecker возвращает внешние сигналы готовности запуска.
type HealthChecker interface {
	Check(ctx context.Context, launch Launch) (HealthSignals, error)
}

// Clock — источник текущего времени.
type Clock interface {
	Now() time.Time
}

// SystemClock возвращает системное время в UTC.
type SystemClock struct{}

// Now реализует Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Locker сериализует операции над одной сущностью.
type Locker interface {
	// Acquire возвращает функцию освобождения или ErrConcurrencyConflict, если ключ занят дольше допустимого.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Notifier доставляет уведомления операторам.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// EventPublisher публикует события конвейера.
type EventPublisher interface {
	Publish(ctx context.Context, event PipelineEvent) error
}

// TrendSource собирает сигналы о трендовых товарах.
type TrendSource interface {
	Collect(ctx context.Context, since time.Time) ([]TrendFacts, error)
}

// NopNotifier игнорирует уведомления.
type NopNotifier struct{}

// Notify реализует Notifier.
func (NopNotifier) Notify(context.Context, Alert) error { return nil }

// NopPublisher игнорирует события.
type NopPublisher struct{}

// Publish реализует EventPublisher.
func (NopPublisher) Publish(context.Context, PipelineEvent) error { return nil }

// LaunchAdvancer продвигает запуск по линейному автомату статусов.
type LaunchAdvancer interface {
	Advance(ctx context.Context, launchID string, to LaunchStatus) (Launch, error)
}
