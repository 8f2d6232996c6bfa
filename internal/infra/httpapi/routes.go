package httpapi

import (
	"errors"
	"net/http"
	"time"

	"lowkey_bot/internal/app"
	"lowkey_bot/internal/domain/notification"
	idb "lowkey_bot/internal/infra/database"

	"github.com/go-chi/chi/v5"
)

type admissionJSON struct {
	Identifier string    `json:"identifier"`
	ContactID  string    `json:"contact_id"`
	FireAt     time.Time `json:"fire_at"`
	Score      float64   `json:"score"`
}

type reportJSON struct {
	PermissionGranted bool            `json:"permission_granted"`
	Admitted          []admissionJSON `json:"admitted"`
	Reserved          int             `json:"reserved"`
	Failed            int             `json:"failed"`
	Advanced          []string        `json:"advanced"`
}

type reservationJSON struct {
	Identifier  string    `json:"identifier"`
	ContactID   string    `json:"contact_id"`
	DisplayText string    `json:"display_text"`
	FireAt      time.Time `json:"fire_at"`
}

func toReportJSON(r *app.RefreshReport) reportJSON {
	out := reportJSON{
		PermissionGranted: r.PermissionGranted,
		Admitted:          make([]admissionJSON, 0, len(r.Result.Admitted)),
		Reserved:          r.Reserved,
		Failed:            r.Failed,
		Advanced:          r.Advanced,
	}
	if out.Advanced == nil {
		out.Advanced = []string{}
	}
	for _, a := range r.Result.Admitted {
		out.Admitted = append(out.Admitted, admissionJSON{
			Identifier: a.Identifier,
			ContactID:  a.ContactID,
			FireAt:     a.At,
			Score:      a.Score,
		})
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.db.PingContext(r.Context()) == nil

	pending := -1
	if rs, err := s.publisher.ListPending(r.Context()); err == nil {
		pending = len(rs)
	}

	status := http.StatusOK
	if !dbOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":   map[bool]string{true: "ok", false: "degraded"}[dbOK],
		"uptime":   time.Since(s.started).Seconds(),
		"db":       dbOK,
		"pending":  pending,
		"capacity": s.capacity,
	})
}

func (s *Server) handleFullRefresh(w http.ResponseWriter, r *http.Request) {
	report, err := s.refresher.FullRefresh(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Full refresh via API failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toReportJSON(report))
}

func (s *Server) handleContactRefresh(w http.ResponseWriter, r *http.Request) {
	contactID := chi.URLParam(r, "contactID")

	report, err := s.refresher.RefreshContact(r.Context(), contactID)
	if err != nil {
		if errors.Is(err, idb.ErrContactNotFound) {
			writeError(w, http.StatusNotFound, "contact not found")
			return
		}
		s.logger.WithError(err).WithField("contact_id", contactID).Error("Contact refresh via API failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toReportJSON(report))
}

func (s *Server) handleListReservations(w http.ResponseWriter, r *http.Request) {
	pending, err := s.publisher.ListPending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	contactID := r.URL.Query().Get("contact_id")
	out := make([]reservationJSON, 0, len(pending))
	for _, res := range pending {
		if contactID != "" && res.ContactID != contactID {
			continue
		}
		out = append(out, toReservationJSON(res))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":        len(out),
		"capacity":     s.capacity,
		"reservations": out,
	})
}

func toReservationJSON(r notification.Reservation) reservationJSON {
	return reservationJSON{
		Identifier:  r.Identifier,
		ContactID:   r.ContactID,
		DisplayText: r.DisplayText,
		FireAt:      r.FireAt,
	}
}
