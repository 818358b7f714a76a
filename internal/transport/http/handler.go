package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"feedhub/internal/adapter/analytics"
	"feedhub/internal/adapter/syndication"
	"feedhub/internal/domain"
	"feedhub/internal/usecase"
)

// DeviceHeader carries the reader's device id, reported as the analytics client id.
const DeviceHeader = "X-Device-Uid"

type feedAggregator interface {
	Aggregate(ctx context.Context, group string, now time.Time) (*domain.AggregateFeed, error)
}

type readTracker interface {
	RecordRead(ctx context.Context, url string) error
	TopRead(ctx context.Context, recentDays, n int) ([]domain.ReadCount, error)
}

type Handler struct {
	log          *slog.Logger
	aggregator   feedAggregator
	reads        readTracker
	reporter     analytics.Reporter
	defaultGroup string
	publicURL    string
	now          func() time.Time
}

type HandlerOptions struct {
	DefaultGroup string
	// PublicURL overrides the scheme and host of the channel link.
	PublicURL string
	Now       func() time.Time
}

func NewHandler(log *slog.Logger, aggregator feedAggregator, reads readTracker, reporter analytics.Reporter, opts HandlerOptions) *Handler {
	if reporter == nil {
		reporter = analytics.Noop{}
	}
	if opts.DefaultGroup == "" {
		opts.DefaultGroup = "dev"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Handler{
		log:          log,
		aggregator:   aggregator,
		reads:        reads,
		reporter:     reporter,
		defaultGroup: opts.DefaultGroup,
		publicURL:    strings.TrimSuffix(opts.PublicURL, "/"),
		now:          opts.Now,
	}
}

// getFeed serves GET /feeds and GET /feeds/{group}.
func (h *Handler) getFeed(w http.ResponseWriter, r *http.Request) {
	const op = "transport.http/getFeed"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", getRequestID(r.Context())),
	)

	group, format, ok := h.negotiate(r)
	if !ok {
		log.Warn("unsupported feed format", slog.String("format", r.URL.Query().Get("format")))
		respondWithError(w, http.StatusBadRequest, "Unsupported 'format' parameter")
		return
	}
	log = log.With(slog.String("group", group), slog.String("format", string(format)))

	feed, err := h.aggregator.Aggregate(r.Context(), group, h.now())
	switch {
	case errors.Is(err, domain.ErrUnknownGroup), errors.Is(err, domain.ErrUnknownCategory):
		log.Warn("unknown group")
		respondWithError(w, http.StatusNotFound, "Unknown group '"+group+"'")
		return
	case err != nil:
		log.Error("Failed to aggregate feed", slog.Any("error", err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	feed.Link = h.requestURL(r)

	body, err := syndication.Render(feed, format)
	if err != nil {
		log.Error("Failed to render feed", slog.Any("error", err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	h.reporter.Report(analytics.Hit{
		ClientID:    r.Header.Get(DeviceHeader),
		Title:       group,
		UserAgent:   r.UserAgent(),
		DocumentURL: feed.Link,
	})

	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// negotiate picks the group and output format of a feed request. The format
// comes from ?format=, then a .json/.xml/.atom/.rss suffix on the group,
// then the Accept header, and defaults to Atom.
func (h *Handler) negotiate(r *http.Request) (string, syndication.Format, bool) {
	group := r.PathValue("group")
	var format syndication.Format
	if ext := path.Ext(group); ext != "" {
		if f, ok := syndication.ParseFormat(ext); ok {
			format = f
			group = strings.TrimSuffix(group, ext)
		}
	}
	if group == "" {
		group = h.defaultGroup
	}
	if q := r.URL.Query().Get("format"); q != "" {
		f, ok := syndication.ParseFormat(q)
		if !ok {
			return group, "", false
		}
		format = f
	}
	if format == "" {
		format = formatFromAccept(r.Header.Get("Accept"))
	}
	return group, format, true
}

func formatFromAccept(accept string) syndication.Format {
	accept = strings.ToLower(accept)
	switch {
	case strings.Contains(accept, "json"):
		return syndication.JSON
	case strings.Contains(accept, "rss"):
		return syndication.RSS
	default:
		return syndication.Atom
	}
}

func (h *Handler) requestURL(r *http.Request) string {
	base := h.publicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
			scheme = fwd
		}
		base = scheme + "://" + r.Host
	}
	return base + r.URL.RequestURI()
}

// recordRead serves GET|POST /read?url=.
func (h *Handler) recordRead(w http.ResponseWriter, r *http.Request) {
	const op = "transport.http/recordRead"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", getRequestID(r.Context())),
	)
	url := r.URL.Query().Get("url")
	if url == "" && r.Method == http.MethodPost {
		url = r.PostFormValue("url")
	}
	if err := h.reads.RecordRead(r.Context(), url); err != nil {
		log.Error("Failed to record read", slog.String("url", url), slog.Any("error", err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"status": 0})
}

// topReads serves GET /top?recent_days=&n=.
func (h *Handler) topReads(w http.ResponseWriter, r *http.Request) {
	const op = "transport.http/topReads"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", getRequestID(r.Context())),
	)
	recentDays, err := intParam(r, "recent_days", usecase.DefaultRecentDays)
	if err != nil {
		log.Warn("invalid recent_days parameter", slog.String("recent_days", r.URL.Query().Get("recent_days")))
		respondWithError(w, http.StatusBadRequest, "Invalid 'recent_days' parameter")
		return
	}
	n, err := intParam(r, "n", usecase.DefaultTopN)
	if err != nil {
		log.Warn("invalid n parameter", slog.String("n", r.URL.Query().Get("n")))
		respondWithError(w, http.StatusBadRequest, "Invalid 'n' parameter")
		return
	}

	top, err := h.reads.TopRead(r.Context(), recentDays, n)
	if err != nil {
		log.Error("Failed to get top reads", slog.Any("error", err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondWithJSON(w, http.StatusOK, rankedReads(top))
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// rankedReads encodes as a JSON object whose keys keep the ranking order.
type rankedReads []domain.ReadCount

func (rr rankedReads) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, rc := range rr {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(rc.URL)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, rc.Count, 10)
	}
	return append(buf, '}'), nil
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
