package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"trend-launch/internal/domain"
	"trend-launch/internal/usecase/assets"
	"trend-launch/internal/usecase/hosts"
	"trend-launch/internal/usecase/launch"
	"trend-launch/internal/usecase/liveshow"
	"trend-launch/internal/usecase/profit"
	"trend-launch/internal/usecase/readiness"
	"trend-launch/internal/usecase/shortlist"
	"trend-launch/internal/usecase/teststream"
	"trend-launch/internal/usecase/trends"
)

// Services — use case'ы, которые публикует операторский API.
type Services struct {
	Trends      *trends.Service
	Shortlist   *shortlist.Service
	Launches    *launch.Service
	Assets      *assets.Service
	TestStreams *teststream.Service
	Readiness   *readiness.Service
	Hosts       *hosts.Service
	Shows       *liveshow.Service
	Profit      *profit.Service
	Jobs        domain.JobQueue

	// ShortlistMinScore применяется, когда запрос не задаёт порог.
	ShortlistMinScore int
}

// API — JSON-обработчики операций конвейера.
type API struct {
	svc Services
	log zerolog.Logger
}

// NewAPI создаёт обработчики.
func NewAPI(svc Services, logger zerolog.Logger) *API {
	return &API{svc: svc, log: logger.With().Str("component", "api").Logger()}
}

// Mount регистрирует маршруты /api/v1.
func (a *API) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/trends", a.ingestTrend)
		r.Get("/trends", a.listTrends)
		r.Get("/trends/{id}", a.getTrend)
		r.Patch("/trends/{id}/scoring", a.updateScoring)
		r.Post("/trends/{id}/archive", a.archiveTrend)
		r.Post("/trends/{id}/reject", a.rejectTrend)

		r.Post("/shortlists", a.generateShortlist)
		r.Get("/shortlists/latest", a.latestShortlist)

		r.Post("/launches", a.createLaunch)
		r.Get("/launches", a.listLaunches)
		r.Get("/launches/{id}", a.getLaunch)
		r.Post("/launches/{id}/cancel", a.cancelLaunch)
		r.Post("/launches/{id}/assets", a.requestAssets)
		r.Get("/launches/{id}/assets", a.listAssets)
		r.Post("/launches/{id}/test-streams", a.enqueueTestStream)
		r.Get("/launches/{id}/test-streams", a.listTestStreams)
		r.Post("/launches/{id}/host", a.assignHost)
		r.Get("/launches/{id}/handoffs", a.listHandoffs)
		r.Get("/launches/{id}/readiness", a.getReadiness)
		r.Post("/launches/{id}/readiness/check", a.checkReadiness)
		r.Post("/launches/{id}/readiness/arm", a.armReadiness)
		r.Post("/launches/{id}/readiness/override", a.overrideReadiness)
		r.Post("/launches/{id}/profit", a.calculateProfit)
		r.Get("/launches/{id}/profit", a.profitHistory)

		r.Get("/asset-packs/{id}", a.getAssetPack)
		r.Get("/test-streams/{id}", a.getTestStream)
		r.Post("/test-streams/{id}/verdict", a.recordVerdict)

		r.Post("/hosts", a.registerHost)
		r.Get("/hosts", a.listHosts)
		r.Get("/hosts/{id}", a.getHost)
		r.Patch("/hosts/{id}/scores", a.scoreHost)
		r.Post("/hosts/{id}/performance", a.recordPerformance)
		r.Post("/handoffs/{id}/confirm", a.confirmHandoff)

		r.Post("/shows", a.createShow)
		r.Get("/shows", a.listShows)
		r.Get("/shows/{id}", a.getShow)
		r.Post("/shows/{id}/start", a.startShow)
		r.Post("/shows/{id}/end", a.endShow)
		r.Post("/shows/{id}/metrics", a.updateMetrics)
		r.Post("/shows/{id}/timestamps", a.markTimestamp)
		r.Get("/shows/{id}/clips", a.listClips)

		r.Get("/jobs", a.listJobs)
		r.Get("/jobs/{id}", a.getJob)
	})
}

// statusFor сопоставляет доменные ошибки кодам ответа.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrPreconditionFailed):
		return http.StatusUnprocessableEntity, "precondition_failed"
	case errors.Is(err, domain.ErrEmptyResult):
		return http.StatusUnprocessableEntity, "empty_result"
	case errors.Is(err, domain.ErrExternalDependency):
		return http.StatusBadGateway, "external_dependency"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.log.Error().Err(err).Str("path", r.URL.Path).Msg("api: внутренняя ошибка")
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}

func (a *API) reply(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func decode(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Validationf("invalid request body: %v", err)
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Validationf("%s must be an integer", key)
	}
	return v, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func (a *API) ingestTrend(w http.ResponseWriter, r *http.Request) {
	var facts domain.TrendFacts
	if err := decode(r, &facts); err != nil {
		a.fail(w, r, err)
		return
	}
	trend, err := a.svc.Trends.Ingest(r.Context(), facts)
	a.reply(w, r, trend, err)
}

func (a *API) listTrends(w http.ResponseWriter, r *http.Request) {
	minScore, err := queryInt(r, "min_score")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.svc.Trends.List(r.Context(), domain.TrendFilter{
		Status:   domain.TrendStatus(r.URL.Query().Get("status")),
		MinScore: minScore,
		Limit:    limit,
	})
	a.reply(w, r, out, err)
}

func (a *API) getTrend(w http.ResponseWriter, r *http.Request) {
	trend, err := a.svc.Trends.Get(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, trend, err)
}

func (a *API) updateScoring(w http.ResponseWriter, r *http.Request) {
	var signals domain.ScoringSignals
	if err := decode(r, &signals); err != nil {
		a.fail(w, r, err)
		return
	}
	trend, err := a.svc.Trends.UpdateScoring(r.Context(), chi.URLParam(r, "id"), signals)
	a.reply(w, r, trend, err)
}

func (a *API) archiveTrend(w http.ResponseWriter, r *http.Request) {
	trend, err := a.svc.Trends.Archive(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, trend, err)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (a *API) rejectTrend(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	trend, err := a.svc.Trends.Reject(r.Context(), chi.URLParam(r, "id"), req.Reason)
	a.reply(w, r, trend, err)
}

type shortlistRequest struct {
	MinScore *int `json:"min_score"`
}

func (a *API) generateShortlist(w http.ResponseWriter, r *http.Request) {
	var req shortlistRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	minScore := a.svc.ShortlistMinScore
	if minScore == 0 {
		minScore = shortlist.DefaultMinScore
	}
	if req.MinScore != nil {
		minScore = *req.MinScore
	}
	out, err := a.svc.Shortlist.Generate(r.Context(), minScore)
	a.reply(w, r, out, err)
}

func (a *API) latestShortlist(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Shortlist.Latest(r.Context())
	a.reply(w, r, out, err)
}

type createLaunchRequest struct {
	TrendID    string    `json:"trend_id"`
	Name       string    `json:"name"`
	LaunchDate time.Time `json:"launch_date"`
}

func (a *API) createLaunch(w http.ResponseWriter, r *http.Request) {
	var req createLaunchRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.svc.Launches.Create(r.Context(), req.TrendID, req.Name, req.LaunchDate)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (a *API) listLaunches(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.svc.Launches.List(r.Context(), domain.LaunchFilter{
		Status: domain.LaunchStatus(r.URL.Query().Get("status")),
		Limit:  limit,
	})
	a.reply(w, r, out, err)
}

func (a *API) getLaunch(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Launches.Get(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, out, err)
}

func (a *API) cancelLaunch(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.svc.Launches.Cancel(r.Context(), chi.URLParam(r, "id"), req.Reason)
	a.reply(w, r, out, err)
}

type assetsRequest struct {
	Platform string `json:"platform"`
}

func (a *API) requestAssets(w http.ResponseWriter, r *http.Request) {
	var req assetsRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	job, err := a.svc.Assets.Request(r.Context(), chi.URLParam(r, "id"), req.Platform)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (a *API) listAssets(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Assets.List(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, out, err)
}

func (a *API) getAssetPack(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Assets.Get(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, out, err)
}

type testStreamRequest struct {
	AssetPackID     string `json:"asset_pack_id"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (a *API) enqueueTestStream(w http.ResponseWriter, r *http.Request) {
	var req testStreamRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.svc.TestStreams.Enqueue(r.Context(), chi.URLParam(r, "id"), req.AssetPackID, req.DurationMinutes)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, out)
}

func (a *API) listTestStreams(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.TestStreams.List(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, out, err)
}

func (a *API) getTestStream(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.TestStreams.Get(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, out, err)
}

type verdictRequest struct {
	Verdict domain.Verdict `json:"verdict"`
	Reason  string         `json:"reason"`
}

func (a *API) recordVerdict(w http.ResponseWriter, r *http.Request) {
	var req verdictRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.svc.TestStreams.RecordVerdict(r.Context(), chi.URLParam(r, "id"), req.Verdict, req.Reason)
	a.reply(w, r, out, err)
}

type assignHostRequest struct {
	HostID string `json:"host_id"`
}

func (a *API) assignHost(w http.ResponseWriter, r *http.Request) {
	var req assignHostRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.svc.Hosts.Assign(r.Context(), chi.URLParam(r, "id"), req.HostID)
	a.reply(w, r, out, err)
}

func (a *API) listHandoffs(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Hosts.ListHandoffPacks(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, out, err)
}

func (a *API) confirmHandoff(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Hosts.ConfirmHandoff(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, out, err)
}

func (a *API) getReadiness(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Readiness.Get(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, out, err)
}

func (a *API) checkReadiness(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Readiness.Check(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, out, err)
}

func (a *API) armReadiness(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Readiness.Arm(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, out, err)
}

type overrideRequest struct {
	Reason   string `json:"reason"`
	Approver string `json:"approver"`
}

func (a *API) overrideReadiness(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.svc.Readiness.Override(r.Context(), chi.URLParam(r, "id"), req.Reason, req.Approver)
	a.reply(w, r, out, err)
}

func (a *API) calculateProfit(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Profit.Calculate(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, out, err)
}

func (a *API) profitHistory(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Profit.History(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, out, err)
}

func (a *API) registerHost(w http.ResponseWriter, r *http.Request) {
	var profile domain.HostProfile
	if err := decode(r, &profile); err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.svc.Hosts.Register(r.Context(), profile)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (a *API) listHosts(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Hosts.List(r.Context())
	a.reply(w, r, out, err)
}

func (a *API) getHost(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Hosts.Get(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, out, err)
}

type scoreHostRequest struct {
	Energy       *int `json:"energy"`
	Clarity      *int `json:"clarity"`
	Authenticity *int `json:"authenticity"`
}

func (a *API) scoreHost(w http.ResponseWriter, r *http.Request) {
	var req scoreHostRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.svc.Hosts.ScoreHost(r.Context(), chi.URLParam(r, "id"), req.Energy, req.Clarity, req.Authenticity)
	a.reply(w, r, out, err)
}

type performanceRequest struct {
	ShowID string `json:"show_id"`
}

func (a *API) recordPerformance(w http.ResponseWriter, r *http.Request) {
	var req performanceRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.svc.Hosts.RecordPerformance(r.Context(), chi.URLParam(r, "id"), req.ShowID)
	a.reply(w, r, out, err)
}

func (a *API) createShow(w http.ResponseWriter, r *http.Request) {
	var req liveshow.CreateShowParams
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.svc.Shows.Create(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (a *API) listShows(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Shows.List(r.Context(), domain.LiveShowFilter{
		LaunchID: r.URL.Query().Get("launch_id"),
		Status:   domain.LiveShowStatus(r.URL.Query().Get("status")),
	})
	a.reply(w, r, out, err)
}

func (a *API) getShow(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Shows.Get(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, out, err)
}

func (a *API) startShow(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Shows.Start(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, out, err)
}

func (a *API) endShow(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Shows.End(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, out, err)
}

func (a *API) updateMetrics(w http.ResponseWriter, r *http.Request) {
	var req domain.LiveMetrics
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.svc.Shows.UpdateLiveMetrics(r.Context(), chi.URLParam(r, "id"), req)
	a.reply(w, r, out, err)
}

func (a *API) markTimestamp(w http.ResponseWriter, r *http.Request) {
	var req liveshow.TimestampInput
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.svc.Shows.MarkTimestamp(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (a *API) listClips(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Shows.Clips(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, out, err)
}

func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.svc.Jobs.List(r.Context(), domain.JobFilter{
		LaunchID: r.URL.Query().Get("launch_id"),
		Status:   domain.JobStatus(r.URL.Query().Get("status")),
		Limit:    limit,
	})
	a.reply(w, r, out, err)
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Jobs.Get(r.Context(), chi.URLParam(r, "id"))
	a.reply(w, r, out, err)
}
