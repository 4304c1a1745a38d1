package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	icalfeed "resortadmin/internal/adapters/ical"
	"resortadmin/internal/app"
	"resortadmin/internal/domain"
)

type Handlers struct {
	Auth      *app.AuthService
	Rooms     *app.RoomService
	Bookings  *app.BookingService
	Analytics *app.AnalyticsService
	Export    *app.ExportService
	Users     *app.UserService
	History   *app.HistoryService
}

const dateLayout = "2006-01-02"

// ---- wire types ----

type problem struct {
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Status    int            `json:"status"`
	Detail    string         `json:"detail,omitempty"`
	Kind      string         `json:"kind,omitempty"`
	Conflicts []conflictJSON `json:"conflicts,omitempty"`
}

type conflictJSON struct {
	ID        int64  `json:"id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	GuestName string `json:"guest_name,omitempty"`
}

type roomJSON struct {
	ID           int64  `json:"id"`
	Number       string `json:"number"`
	Type         string `json:"type"`
	Capacity     int    `json:"capacity"`
	NightlyPrice int64  `json:"nightly_price"`
	Occupied     bool   `json:"occupied"`
}

type bookingJSON struct {
	ID        int64  `json:"id"`
	RoomID    int64  `json:"room_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	GuestName string `json:"guest_name,omitempty"`
	Notes     string `json:"notes,omitempty"`
	Nights    int    `json:"nights"`
	CreatedBy int64  `json:"created_by"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type availabilityJSON struct {
	RoomID    int64          `json:"room_id"`
	StartDate string         `json:"start_date"`
	EndDate   string         `json:"end_date"`
	Available bool           `json:"available"`
	Conflicts []conflictJSON `json:"conflicts"`
}

type userJSON struct {
	ID         int64  `json:"id"`
	TelegramID int64  `json:"telegram_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name,omitempty"`
	Username   string `json:"username,omitempty"`
	Role       string `json:"role"`
	IsActive   bool   `json:"is_active"`
	LastLogin  string `json:"last_login,omitempty"`
}

func toConflicts(refs []domain.BookingRef) []conflictJSON {
	out := make([]conflictJSON, 0, len(refs))
	for _, ref := range refs {
		out = append(out, conflictJSON{
			ID:        ref.ID,
			StartDate: ref.StartDate.Format(dateLayout),
			EndDate:   ref.EndDate.Format(dateLayout),
			GuestName: ref.GuestName,
		})
	}
	return out
}

func toRoomJSON(st domain.RoomStatus) roomJSON {
	return roomJSON{
		ID:           st.ID,
		Number:       st.Number,
		Type:         st.Type,
		Capacity:     st.Capacity,
		NightlyPrice: st.NightlyPrice,
		Occupied:     st.Occupied,
	}
}

func toBookingJSON(b domain.Booking) bookingJSON {
	return bookingJSON{
		ID:        b.ID,
		RoomID:    b.RoomID,
		StartDate: b.StartDate.Format(dateLayout),
		EndDate:   b.EndDate.Format(dateLayout),
		GuestName: b.GuestName,
		Notes:     b.Notes,
		Nights:    b.Nights(),
		CreatedBy: b.CreatedBy,
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: b.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toUserJSON(u domain.User) userJSON {
	out := userJSON{
		ID:         u.ID,
		TelegramID: u.TelegramID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Username:   u.Username,
		Role:       string(u.Role),
		IsActive:   u.IsActive,
	}
	if !u.LastLogin.IsZero() {
		out.LastLogin = u.LastLogin.UTC().Format(time.RFC3339)
	}
	return out
}

// ---- routing ----

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/v1/auth/telegram", h.login)

	s.mux.Group(func(r chi.Router) {
		r.Use(Auth(h.Auth))

		r.Get("/v1/rooms", h.listRooms)
		r.Get("/v1/rooms/{id}", h.getRoom)
		r.Get("/v1/rooms/{id}/availability", h.availability)
		r.Get("/v1/rooms/{id}/calendar.ics", h.roomCalendar)

		r.Get("/v1/bookings", h.listBookings)
		r.Post("/v1/bookings", h.createBooking)
		r.Get("/v1/bookings/{id}", h.getBooking)
		r.Patch("/v1/bookings/{id}", h.updateBooking)
		r.Put("/v1/bookings/{id}", h.updateBooking)
		r.Delete("/v1/bookings/{id}", h.deleteBooking)

		r.Route("/v1/analytics", func(r chi.Router) {
			r.Use(RequirePermission(domain.PermViewAnalytics))
			r.Get("/occupancy", h.analyticsOccupancy)
			r.Get("/room-types", h.analyticsRoomTypes)
			r.Get("/trends", h.analyticsTrends)
			r.Get("/users", h.analyticsUsers)
			r.Get("/revenue-forecast", h.analyticsRevenue)
		})

		r.Route("/v1/export", func(r chi.Router) {
			r.Use(RequirePermission(domain.PermExport))
			r.Get("/rooms", h.exportRooms)
			r.Get("/bookings", h.exportBookings)
			r.Get("/analytics", h.exportAnalytics)
		})

		r.Route("/v1/history", func(r chi.Router) {
			r.Use(RequirePermission(domain.PermViewAnalytics))
			r.Get("/recent", h.historyRecent)
			r.Get("/entity/{type}/{id}", h.historyEntity)
			r.Get("/user/{id}", h.historyUser)
		})

		r.Route("/v1/users", func(r chi.Router) {
			r.Use(RequirePermission(domain.PermManageUsers))
			r.Get("/", h.listUsers)
			r.Patch("/{id}", h.updateUser)
			r.Post("/{id}/activate", h.activateUser)
			r.Post("/{id}/deactivate", h.deactivateUser)
		})
	})
}

// ---- error mapping ----

func writeProblem(w http.ResponseWriter, status int, title, detail, kind string, conflicts []conflictJSON) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	p := problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Kind: kind, Conflicts: conflicts}
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeError(w http.ResponseWriter, err error) {
	if ce, ok := domain.AsConflict(err); ok {
		writeProblem(w, http.StatusConflict, "Conflict", ce.Error(), "booking_conflict", toConflicts(ce.Conflicts))
		return
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "resource not found", "not_found", nil)
	case errors.Is(err, domain.ErrInvalidRange):
		writeProblem(w, http.StatusBadRequest, "Invalid Range", "end date must be after start date", "invalid_range", nil)
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", "operation not allowed for this role", "forbidden", nil)
	case errors.Is(err, domain.ErrUnauthorized):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired credentials", "unauthorized", nil)
	case errors.Is(err, domain.ErrStorageUnavailable):
		writeProblem(w, http.StatusServiceUnavailable, "Storage Unavailable", "try again shortly", "storage_unavailable", nil)
	default:
		log.Error().Err(err).Msg("unhandled handler error")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "", "internal", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSONWithETag(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

// ---- param helpers ----

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// optionalDate parses query/body dates; empty means zero time.
func optionalDate(s string) (time.Time, bool, error) {
	if s == "" {
		return time.Time{}, false, nil
	}
	t, err := parseDate(s)
	return t, err == nil, err
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

// ---- auth ----

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InitData string `json:"init_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InitData == "" {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "init_data is required", "bad_request", nil)
		return
	}
	token, u, err := h.Auth.Login(r.Context(), req.InitData)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  toUserJSON(u),
	})
}

// ---- rooms ----

func (h *Handlers) listRooms(w http.ResponseWriter, r *http.Request) {
	q := domain.RoomsQuery{
		Type:   r.URL.Query().Get("type"),
		Status: r.URL.Query().Get("status"),
	}
	if q.Status != "" && q.Status != "available" && q.Status != "occupied" {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "status must be available or occupied", "bad_request", nil)
		return
	}
	rooms, err := h.Rooms.List(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]roomJSON, 0, len(rooms))
	for _, st := range rooms {
		out = append(out, toRoomJSON(st))
	}
	writeJSONWithETag(w, r, out)
}

func (h *Handlers) getRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a number", "bad_request", nil)
		return
	}
	st, err := h.Rooms.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONWithETag(w, r, toRoomJSON(st))
}

func (h *Handlers) availability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a number", "bad_request", nil)
		return
	}
	start, err := parseDate(r.URL.Query().Get("start"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "start must be YYYY-MM-DD", "bad_request", nil)
		return
	}
	end, err := parseDate(r.URL.Query().Get("end"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "end must be YYYY-MM-DD", "bad_request", nil)
		return
	}
	var exclude int64
	if es := r.URL.Query().Get("exclude_booking_id"); es != "" {
		exclude, err = strconv.ParseInt(es, 10, 64)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Bad Request", "exclude_booking_id must be a number", "bad_request", nil)
			return
		}
	}

	av, err := h.Bookings.CheckAvailability(r.Context(), id, start, end, exclude)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityJSON{
		RoomID:    av.RoomID,
		StartDate: av.StartDate.Format(dateLayout),
		EndDate:   av.EndDate.Format(dateLayout),
		Available: av.Available,
		Conflicts: toConflicts(av.Conflicts),
	})
}

func (h *Handlers) roomCalendar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a number", "bad_request", nil)
		return
	}
	st, err := h.Rooms.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	bookings, err := h.Bookings.List(r.Context(), domain.BookingsQuery{RoomID: id, Limit: 500})
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := icalfeed.Feed(st.Room, bookings)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=room-%s.ics", st.Number))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// ---- bookings ----

func (h *Handlers) listBookings(w http.ResponseWriter, r *http.Request) {
	q := domain.BookingsQuery{
		RoomID: int64(queryInt(r, "room_id")),
		Limit:  queryInt(r, "limit"),
		Skip:   queryInt(r, "skip"),
	}
	var err error
	if q.From, _, err = optionalDate(r.URL.Query().Get("from")); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "from must be YYYY-MM-DD", "bad_request", nil)
		return
	}
	if q.To, _, err = optionalDate(r.URL.Query().Get("to")); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "to must be YYYY-MM-DD", "bad_request", nil)
		return
	}
	bookings, err := h.Bookings.List(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]bookingJSON, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingJSON(b))
	}
	writeJSONWithETag(w, r, out)
}

type bookingRequest struct {
	RoomID    int64  `json:"room_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	GuestName string `json:"guest_name"`
	Notes     string `json:"notes"`
}

func (h *Handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body", "bad_request", nil)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "start_date must be YYYY-MM-DD", "bad_request", nil)
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "end_date must be YYYY-MM-DD", "bad_request", nil)
		return
	}

	b, err := h.Bookings.Create(r.Context(), currentUser(r), app.CreateBookingInput{
		RoomID:    req.RoomID,
		StartDate: start,
		EndDate:   end,
		GuestName: req.GuestName,
		Notes:     req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingJSON(b))
}

func (h *Handlers) getBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a number", "bad_request", nil)
		return
	}
	b, err := h.Bookings.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONWithETag(w, r, toBookingJSON(b))
}

type bookingPatch struct {
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
	GuestName *string `json:"guest_name"`
	Notes     *string `json:"notes"`
}

func (h *Handlers) updateBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a number", "bad_request", nil)
		return
	}
	var req bookingPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body", "bad_request", nil)
		return
	}

	var in app.UpdateBookingInput
	if req.StartDate != nil {
		t, err := parseDate(*req.StartDate)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Bad Request", "start_date must be YYYY-MM-DD", "bad_request", nil)
			return
		}
		in.StartDate = &t
	}
	if req.EndDate != nil {
		t, err := parseDate(*req.EndDate)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Bad Request", "end_date must be YYYY-MM-DD", "bad_request", nil)
			return
		}
		in.EndDate = &t
	}
	in.GuestName = req.GuestName
	in.Notes = req.Notes

	b, err := h.Bookings.Update(r.Context(), currentUser(r), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingJSON(b))
}

func (h *Handlers) deleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a number", "bad_request", nil)
		return
	}
	if err := h.Bookings.Delete(r.Context(), currentUser(r), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- analytics ----

func (h *Handlers) windowParams(r *http.Request) (time.Time, time.Time, error) {
	start, _, err := optionalDate(r.URL.Query().Get("start"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, _, err := optionalDate(r.URL.Query().Get("end"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func (h *Handlers) analyticsOccupancy(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.windowParams(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "dates must be YYYY-MM-DD", "bad_request", nil)
		return
	}
	stats, err := h.Analytics.Occupancy(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) analyticsRoomTypes(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.windowParams(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "dates must be YYYY-MM-DD", "bad_request", nil)
		return
	}
	stats, err := h.Analytics.RoomTypes(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) analyticsTrends(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Analytics.Trends(r.Context(), queryInt(r, "months"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) analyticsUsers(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Analytics.UserActivity(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) analyticsRevenue(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Analytics.RevenueForecast(r.Context(), queryInt(r, "days"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ---- export ----

func writeXLSX(w http.ResponseWriter, f *excelize.File, name string) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", name))
	w.WriteHeader(http.StatusOK)
	if err := f.Write(w); err != nil {
		log.Error().Err(err).Str("file", name).Msg("failed to stream workbook")
	}
	_ = f.Close()
}

func (h *Handlers) exportRooms(w http.ResponseWriter, r *http.Request) {
	f, err := h.Export.Rooms(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeXLSX(w, f, "rooms")
}

func (h *Handlers) exportBookings(w http.ResponseWriter, r *http.Request) {
	from, _, err := optionalDate(r.URL.Query().Get("from"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "from must be YYYY-MM-DD", "bad_request", nil)
		return
	}
	to, _, err := optionalDate(r.URL.Query().Get("to"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "to must be YYYY-MM-DD", "bad_request", nil)
		return
	}
	f, err := h.Export.Bookings(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeXLSX(w, f, "bookings")
}

func (h *Handlers) exportAnalytics(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.windowParams(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "dates must be YYYY-MM-DD", "bad_request", nil)
		return
	}
	f, err := h.Export.Analytics(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeXLSX(w, f, "analytics")
}

// ---- history ----

type historyJSON struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	EntityType  string          `json:"entity_type"`
	EntityID    int64           `json:"entity_id"`
	Action      string          `json:"action"`
	Changes     json.RawMessage `json:"changes,omitempty"`
	Description string          `json:"description,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

func toHistoryJSON(entries []domain.HistoryEntry) []historyJSON {
	out := make([]historyJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyJSON{
			ID:          e.ID,
			UserID:      e.UserID,
			EntityType:  e.EntityType,
			EntityID:    e.EntityID,
			Action:      e.Action,
			Changes:     json.RawMessage(e.ChangesJSON),
			Description: e.Description,
			CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func (h *Handlers) historyRecent(w http.ResponseWriter, r *http.Request) {
	entries, err := h.History.Recent(r.Context(), queryInt(r, "hours"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryJSON(entries))
}

func (h *Handlers) historyEntity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a number", "bad_request", nil)
		return
	}
	entries, err := h.History.ForEntity(r.Context(), chi.URLParam(r, "type"), id, queryInt(r, "limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryJSON(entries))
}

func (h *Handlers) historyUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a number", "bad_request", nil)
		return
	}
	entries, err := h.History.ForUser(r.Context(), id, queryInt(r, "limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryJSON(entries))
}

// ---- users ----

func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.List(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]userJSON, 0, len(users))
	for _, u := range users {
		out = append(out, toUserJSON(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a number", "bad_request", nil)
		return
	}
	var req struct {
		Role     *string `json:"role"`
		IsActive *bool   `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body", "bad_request", nil)
		return
	}
	var in app.UpdateUserInput
	if req.Role != nil {
		role := domain.Role(*req.Role)
		if !role.Valid() {
			writeProblem(w, http.StatusBadRequest, "Bad Request", "unknown role", "bad_request", nil)
			return
		}
		in.Role = &role
	}
	in.IsActive = req.IsActive

	u, err := h.Users.Update(r.Context(), currentUser(r), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(u))
}

func (h *Handlers) activateUser(w http.ResponseWriter, r *http.Request)   { h.setActive(w, r, true) }
func (h *Handlers) deactivateUser(w http.ResponseWriter, r *http.Request) { h.setActive(w, r, false) }

func (h *Handlers) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := pathID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a number", "bad_request", nil)
		return
	}
	u, err := h.Users.SetActive(r.Context(), currentUser(r), id, active)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(u))
}
