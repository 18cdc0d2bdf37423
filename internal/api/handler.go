package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"gomodel/internal/admission"
	"gomodel/internal/apierror"
	"gomodel/internal/logrecord"
	"gomodel/internal/storage"
)

const rfc3339Nano = time.RFC3339Nano

func nowUTC() time.Time {
	return time.Now().UTC()
}

// Handler serves the query API's read/write endpoints over a store.
type Handler struct {
	store       *storage.Store
	admission   admission.Cache
	maxLogLen   int
	maxLogCount int
}

// Health handles GET /health.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Hashes godoc
//
//	@Summary		List known stream hashes
//	@Description	Returns every distinct stream hash currently held in the store.
//	@Produce		json
//	@Success		200	{array}	string
//	@Router			/api/hashes [get]
func (h *Handler) Hashes(c echo.Context) error {
	hashes, err := h.store.DistinctHashes()
	if err != nil {
		return handleError(c, apierror.NewStoreError(err))
	}
	if hashes == nil {
		hashes = []string{}
	}
	return c.JSON(http.StatusOK, hashes)
}

// dateRangeResponse is the response shape for GET /api/date_range.
type dateRangeResponse struct {
	MinDate string `json:"min_date"`
	MaxDate string `json:"max_date"`
}

// DateRange godoc
//
//	@Summary		Report the overall time span of stored logs
//	@Description	Returns the earliest and latest timestamp across every stream. Falls back to a trailing 7-day window ending now when the store is empty.
//	@Produce		json
//	@Success		200	{object}	dateRangeResponse
//	@Router			/api/date_range [get]
func (h *Handler) DateRange(c echo.Context) error {
	minTS, ok, err := h.store.MinTimestamp()
	if err != nil {
		return handleError(c, apierror.NewStoreError(err))
	}
	if !ok {
		now := nowUTC()
		return c.JSON(http.StatusOK, dateRangeResponse{
			MinDate: now.AddDate(0, 0, -7).Format(rfc3339Nano),
			MaxDate: now.Format(rfc3339Nano),
		})
	}

	maxTS, _, err := h.store.MaxTimestamp()
	if err != nil {
		return handleError(c, apierror.NewStoreError(err))
	}

	return c.JSON(http.StatusOK, dateRangeResponse{MinDate: minTS, MaxDate: maxTS})
}

// LogsByHash godoc
//
//	@Summary		Fetch logs for one stream
//	@Description	Returns records for the given hash, newest first, optionally bounded by a time window and row count.
//	@Produce		json
//	@Param			hash	path		string	true	"Stream hash"
//	@Param			count	query		int		false	"Maximum rows to return"
//	@Param			start	query		string	false	"RFC3339 lower bound (inclusive)"
//	@Param			end		query		string	false	"RFC3339 upper bound (inclusive)"
//	@Success		200	{array}	logrecord.Record
//	@Failure		400	{object}	apierror.APIError
//	@Router			/api/logs/{hash} [get]
func (h *Handler) LogsByHash(c echo.Context) error {
	hash := c.Param("hash")
	if hash == "" {
		return handleError(c, apierror.NewInvalidRequest("hash path parameter is required", nil))
	}

	var start, end *string
	if s := c.QueryParam("start"); s != "" {
		start = &s
	}
	if e := c.QueryParam("end"); e != "" {
		end = &e
	}

	var limit *int
	if cParam := c.QueryParam("count"); cParam != "" {
		n, err := strconv.Atoi(cParam)
		if err != nil || n < 0 {
			return handleError(c, apierror.NewInvalidRequest("count must be a non-negative integer", err))
		}
		limit = &n
	}

	records, err := h.store.SelectByHash(hash, start, end, limit)
	if err != nil {
		return handleError(c, apierror.NewStoreError(err))
	}
	if records == nil {
		records = []logrecord.Record{}
	}
	return c.JSON(http.StatusOK, records)
}

// logInfoResponse is the response shape for GET /api/log_info.
type logInfoResponse struct {
	DBSizeBytes    int64    `json:"db_size_bytes"`
	TotalLogCount  int64    `json:"total_log_count"`
	NumberOfHashes int      `json:"number_of_hashes"`
	MinDate        *string  `json:"min_date,omitempty"`
	MaxDate        *string  `json:"max_date,omitempty"`
	HashList       []string `json:"hash_list"`
}

// LogInfo godoc
//
//	@Summary		Summarize the store
//	@Description	Aggregates database size, total row count, distinct hash count, and time span.
//	@Produce		json
//	@Success		200	{object}	logInfoResponse
//	@Router			/api/log_info [get]
func (h *Handler) LogInfo(c echo.Context) error {
	size, err := storage.FileSize(h.store.Path())
	if err != nil {
		return handleError(c, apierror.NewStoreError(err))
	}

	total, err := h.store.TotalCount()
	if err != nil {
		return handleError(c, apierror.NewStoreError(err))
	}

	hashes, err := h.store.DistinctHashes()
	if err != nil {
		return handleError(c, apierror.NewStoreError(err))
	}
	if hashes == nil {
		hashes = []string{}
	}

	resp := logInfoResponse{
		DBSizeBytes:    size,
		TotalLogCount:  total,
		NumberOfHashes: len(hashes),
		HashList:       hashes,
	}

	if minTS, ok, err := h.store.MinTimestamp(); err != nil {
		return handleError(c, apierror.NewStoreError(err))
	} else if ok {
		resp.MinDate = &minTS
	}

	if maxTS, ok, err := h.store.MaxTimestamp(); err != nil {
		return handleError(c, apierror.NewStoreError(err))
	} else if ok {
		resp.MaxDate = &maxTS
	}

	return c.JSON(http.StatusOK, resp)
}

// PurgeLogs godoc
//
//	@Summary		Delete every stored log
//	@Description	Irreversibly clears the store. Operator-facing only; never called by the retention sweeper.
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/api/purge_logs [post]
func (h *Handler) PurgeLogs(c echo.Context) error {
	if err := h.store.PurgeAll(); err != nil {
		return handleError(c, apierror.NewStoreError(err))
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "purged"})
}

// InsertLog godoc
//
//	@Summary		Insert one log record synchronously
//	@Description	The HTTP-path variant of TCP ingestion: truncate, admit, insert inline, then trim if the stream is now over its cap. Bypasses the writer channel entirely, unlike the TCP path.
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Failure		400	{object}	apierror.APIError
//	@Router			/api/insert_log [post]
func (h *Handler) InsertLog(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return handleError(c, apierror.NewInvalidRequest("failed to read request body", err))
	}

	rec, ok := logrecord.Decode(body)
	if !ok {
		return handleError(c, apierror.NewInvalidRequest("malformed log record or missing hash", nil))
	}
	rec.Message = logrecord.Truncate(rec.Message, h.maxLogLen)

	if !h.admission.Admit(rec.Hash) {
		return c.JSON(http.StatusOK, map[string]string{"status": "rejected_cardinality_cap"})
	}

	if err := h.store.InsertBatch([]logrecord.Record{rec}); err != nil {
		return handleError(c, apierror.NewStoreError(err))
	}

	if h.maxLogCount > 0 {
		if count, err := h.store.CountForHash(rec.Hash); err == nil && count > int64(h.maxLogCount) {
			_ = h.store.TrimHash(rec.Hash, count-int64(h.maxLogCount))
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "inserted"})
}

// handleError converts an error to the appropriate HTTP response,
// matching the format used by every endpoint in this package.
func handleError(c echo.Context, err error) error {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return c.JSON(apiErr.HTTPStatusCode(), apiErr.ToJSON())
	}

	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}
